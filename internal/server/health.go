package server

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger is satisfied by *repository.DB.
type Pinger interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// HealthWatcher pings the database and mirrors the result into the gRPC health service.
// Without a database the service always reports SERVING.
type HealthWatcher struct {
	db       Pinger
	hs       *health.Server
	interval time.Duration
	timeout  time.Duration
	healthy  atomic.Bool
	logger   *slog.Logger
}

func NewHealthWatcher(db Pinger, hs *health.Server, logger *slog.Logger) *HealthWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &HealthWatcher{
		db:       db,
		hs:       hs,
		interval: 15 * time.Second,
		timeout:  2 * time.Second,
		logger:   logger,
	}
	w.healthy.Store(true)
	return w
}

// Healthy reports the result of the last check.
func (w *HealthWatcher) Healthy() bool { return w.healthy.Load() }

// Check pings once and publishes the status.
func (w *HealthWatcher) Check(ctx context.Context) bool {
	ok := true
	if w.db != nil {
		w.logger.Debug("pinging database")
		if err := w.db.HealthCheck(ctx, w.timeout); err != nil {
			w.logger.Error("database ping failed", "error", err)
			ok = false
		}
	}
	if prev := w.healthy.Swap(ok); prev != ok {
		w.logger.Info("health.changed", "serving", ok)
	}
	if w.hs != nil {
		st := healthpb.HealthCheckResponse_SERVING
		if !ok {
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		w.hs.SetServingStatus("", st)
		w.hs.SetServingStatus(ServiceName, st)
	}
	return ok
}

// Run checks on every interval until ctx is done.
func (w *HealthWatcher) Run(ctx context.Context) {
	w.Check(ctx)
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.Check(ctx)
		}
	}
}
