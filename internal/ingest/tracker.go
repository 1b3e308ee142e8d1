package ingest

import (
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
)

const DefaultSeenTTL = 12 * time.Hour

// Tracker remembers fingerprints of files already handed to the decoders.
type Tracker struct {
	seen   *cache.Cache
	logger *slog.Logger
}

// NewTracker keeps fingerprints for ttl. ttl <= 0 uses DefaultSeenTTL.
func NewTracker(ttl time.Duration, logger *slog.Logger) *Tracker {
	if ttl <= 0 {
		ttl = DefaultSeenTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{seen: cache.New(ttl, 2*ttl), logger: logger}
}

// Claim records fp and reports true when it was not seen before. Concurrent claims of the same
// fingerprint let exactly one caller through.
func (t *Tracker) Claim(fp Fingerprint) bool {
	if err := t.seen.Add(fp.Key(), time.Now(), cache.DefaultExpiration); err != nil {
		t.logger.Info("ingest.already_processed", "name", fp.Name, "size", fp.Size, "type", fp.Type)
		return false
	}
	return true
}

// Seen reports whether fp was claimed and has not expired.
func (t *Tracker) Seen(fp Fingerprint) bool {
	_, ok := t.seen.Get(fp.Key())
	return ok
}

// Forget drops fp so the file can be submitted again, e.g. after a persistence failure.
func (t *Tracker) Forget(fp Fingerprint) {
	t.seen.Delete(fp.Key())
}

// Len is the number of live fingerprints.
func (t *Tracker) Len() int { return t.seen.ItemCount() }
