package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/order-intake/internal/async"
	"github.com/joseph-ayodele/order-intake/internal/bootstrap"
	"github.com/joseph-ayodele/order-intake/internal/common"
	"github.com/joseph-ayodele/order-intake/internal/ingest"
	"github.com/joseph-ayodele/order-intake/internal/server"
)

func main() {
	logger := bootstrap.Logger(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := common.LoadConfig()
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Persist: true}, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.DB.HealthCheck(ctx, cfg.Database.DialTimeout); err != nil {
		logger.Error("DB health failed", "error", err)
		os.Exit(1)
	}
	logger.Info("DB health OK", "driver", cfg.Database.Driver)

	// gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(server.UnaryLogger(logger)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	reflection.Register(grpcServer)
	server.RegisterOrderIntakeServer(grpcServer, server.NewOrderService(app.Intake, logger))

	watcher := server.NewHealthWatcher(app.DB, hs, logger)
	go watcher.Run(ctx)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("listen failed", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("gRPC serving", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc serve failed", "error", err)
			stop()
		}
	}()

	// HTTP API
	httpHandler := server.NewHTTPHandler(app.Intake, app.Exporter, watcher, server.HTTPConfig{
		RequestTimeout: cfg.Intake.ProcessLimit,
	}, logger)
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           httpHandler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP serving", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve failed", "error", err)
			stop()
		}
	}()

	// Inbox watcher feeding the processing queue
	var queue *async.ProcessorQueue
	if inbox := cfg.Intake.InboxDir; inbox != "" {
		queue = async.NewProcessorQueue(app.Intake, logger,
			async.WithWorkers(cfg.Intake.Workers),
			async.WithProcessTimeout(cfg.Intake.ProcessLimit),
		)
		if err := watchInbox(ctx, inbox, queue, logger); err != nil {
			logger.Error("failed to start inbox watcher", "dir", inbox, "error", err)
			os.Exit(1)
		}
	}

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	if queue != nil {
		queue.Shutdown(shutdownCtx)
	}
	logger.Info("stopped")
}

func watchInbox(ctx context.Context, dir string, q async.Queue, logger *slog.Logger) error {
	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{dir},
		InitialScan: true,
		Debounce:    500 * time.Millisecond,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	go func() {
		for {
			select {
			case p, ok := <-paths:
				if !ok {
					return
				}
				if err := q.Enqueue(ctx, async.Job{Path: p}); err != nil {
					logger.Warn("inbox.enqueue_failed", "path", p, "error", err)
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				logger.Error("inbox.watch_error", "error", err)
			}
		}
	}()
	logger.Info("watching inbox", "dir", dir)
	return nil
}
