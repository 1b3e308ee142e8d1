// Package ingest discovers order files on disk and guards against processing the same upload twice.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/joseph-ayodele/order-intake/constants"
)

// Fingerprint identifies a submission by name, size and type, the same triple an upload form reports.
type Fingerprint struct {
	Name string
	Size int64
	Type string
}

// Key is the cache key of the fingerprint.
func (f Fingerprint) Key() string {
	return fmt.Sprintf("%s|%d|%s", f.Name, f.Size, f.Type)
}

// FingerprintOf derives the fingerprint of a named payload. The type is the routing format of its extension.
func FingerprintOf(name string, size int64) Fingerprint {
	return Fingerprint{
		Name: filepath.Base(name),
		Size: size,
		Type: string(constants.MapExtToFormat(filepath.Ext(name))),
	}
}

// File is one discovered input file.
type File struct {
	Path        string
	Name        string
	Content     []byte
	Fingerprint Fingerprint
}

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath string
	File       *File
	Err        string
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Failed    uint32
}

// Ingestor is the behavior the intake service depends on.
type Ingestor interface {
	// IngestPath reads a single path.
	IngestPath(ctx context.Context, path string) (IngestionResult, error)
	// IngestDirectory reads all matching files under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}
