package async

import (
	"context"
	"errors"
	"time"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one inbox file waiting to be decoded and persisted.
type Job struct {
	Path        string
	SubmittedAt time.Time
	TraceID     string
}

// Processor handles one job. Errors are logged by the queue; retry policy belongs to the processor.
type Processor interface {
	ProcessFile(ctx context.Context, job Job) error
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
