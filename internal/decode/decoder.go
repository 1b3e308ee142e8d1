// Package decode turns vendor order files into line records.
//
// Every structured decoder is a pure function of its input bytes, the filename and the injected clock,
// so decoding the same file twice yields identical records.
package decode

import (
	"log/slog"
	"time"
)

// Decoder holds the collaborators shared by the structured decoders.
type Decoder struct {
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock sets the clock consulted when a date has no anchor in the document.
func WithClock(now func() time.Time) Option {
	return func(d *Decoder) {
		if now != nil {
			d.now = now
		}
	}
}

// New builds a Decoder.
func New(opts ...Option) *Decoder {
	d := &Decoder{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}
