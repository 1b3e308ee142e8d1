package entity

import "time"

// Batch groups one persist operation.
type Batch struct {
	BatchID   string    `json:"batch_id"`
	CreatedAt time.Time `json:"created_at"`
	Note      string    `json:"note"`
	Account   string    `json:"account"`
	LineCount int       `json:"line_count"`
}

// BatchMeta is the caller-supplied metadata for a persist call.
type BatchMeta struct {
	BatchID string
	Note    string
	Account string
}

// PersistedRow is an OrderLine as stored under a batch.
type PersistedRow struct {
	ID        int64     `json:"id"`
	BatchID   string    `json:"batch_id"`
	RowHash   string    `json:"row_hash"`
	CreatedAt time.Time `json:"created_at"`
	OrderLine
}

// BatchStats summarizes the store.
type BatchStats struct {
	TotalBatches int    `json:"total_batches"`
	TotalLines   int    `json:"total_lines"`
	LatestBatch  *Batch `json:"latest_batch,omitempty"`
}
