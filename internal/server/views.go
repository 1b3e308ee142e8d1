package server

import (
	"github.com/joseph-ayodele/order-intake/internal/entity"
	"github.com/joseph-ayodele/order-intake/internal/pipeline"
	"github.com/joseph-ayodele/order-intake/internal/services/intake"
)

// OutcomeView is the wire form of one file outcome.
type OutcomeView struct {
	File     string   `json:"file"`
	Format   string   `json:"format,omitempty"`
	Source   string   `json:"source,omitempty"`
	Encoding string   `json:"encoding,omitempty"`
	Lines    int      `json:"lines"`
	Dropped  int      `json:"dropped,omitempty"`
	Review   int      `json:"needs_review,omitempty"`
	Band     string   `json:"band,omitempty"`
	FellBack bool     `json:"fell_back,omitempty"`
	Skipped  bool     `json:"skipped,omitempty"`
	Error    string   `json:"error,omitempty"`
	Message  string   `json:"message,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ResultView is the wire form of an intake result.
type ResultView struct {
	Outcomes []OutcomeView           `json:"outcomes"`
	Lines    []entity.OrderLine      `json:"lines"`
	Summary  []entity.AggregationRow `json:"summary"`
	Messages []string                `json:"messages"`
	Batch    *entity.Batch           `json:"batch,omitempty"`
}

func newOutcomeView(o pipeline.Outcome) OutcomeView {
	v := OutcomeView{
		File:     o.File,
		Format:   string(o.Format),
		Source:   string(o.Source),
		Encoding: string(o.Encoding),
		Lines:    len(o.Lines),
		Dropped:  o.Dropped,
		Band:     string(o.Band),
		FellBack: o.FellBack,
		Skipped:  o.Skipped,
		Message:  o.Message,
		Warnings: o.Warnings,
	}
	for _, l := range o.Lines {
		if l.NeedsReview() {
			v.Review++
		}
	}
	if o.Err != nil {
		v.Error = o.Err.Error()
	}
	return v
}

func newResultView(res *intake.IngestResult) *ResultView {
	v := &ResultView{
		Outcomes: make([]OutcomeView, 0, len(res.Outcomes)),
		Lines:    res.Lines,
		Summary:  res.Summary,
		Messages: res.Messages(),
		Batch:    res.Batch,
	}
	for _, o := range res.Outcomes {
		v.Outcomes = append(v.Outcomes, newOutcomeView(o))
	}
	if v.Lines == nil {
		v.Lines = []entity.OrderLine{}
	}
	if v.Summary == nil {
		v.Summary = []entity.AggregationRow{}
	}
	if v.Messages == nil {
		v.Messages = []string{}
	}
	return v
}

type batchFields struct {
	BatchID string `json:"batch_id"`
	Note    string `json:"note"`
	Account string `json:"account"`
	Persist bool   `json:"persist"`
}

func (b batchFields) meta() entity.BatchMeta {
	return entity.BatchMeta{BatchID: b.BatchID, Note: b.Note, Account: b.Account}
}

type textRequest struct {
	CustomerName  string `json:"customer_name"`
	Message       string `json:"message"`
	ReferenceDate string `json:"reference_date"`
	batchFields
}

func (r textRequest) toIntake() intake.TextRequest {
	return intake.TextRequest{
		Customer:      r.CustomerName,
		Message:       r.Message,
		ReferenceDate: r.ReferenceDate,
		Persist:       r.Persist,
		Batch:         r.meta(),
	}
}
