// Package bootstrap wires configuration into the stores, decoders and services shared by the binaries.
package bootstrap

import (
	"context"
	"io"
	"log/slog"

	"github.com/joseph-ayodele/order-intake/internal/common"
	"github.com/joseph-ayodele/order-intake/internal/decode"
	"github.com/joseph-ayodele/order-intake/internal/export"
	"github.com/joseph-ayodele/order-intake/internal/extract"
	"github.com/joseph-ayodele/order-intake/internal/ingest"
	"github.com/joseph-ayodele/order-intake/internal/llm"
	"github.com/joseph-ayodele/order-intake/internal/llm/gemini"
	"github.com/joseph-ayodele/order-intake/internal/llm/openai"
	"github.com/joseph-ayodele/order-intake/internal/pipeline"
	"github.com/joseph-ayodele/order-intake/internal/repository"
	"github.com/joseph-ayodele/order-intake/internal/services/intake"
)

// Logger builds the process logger at LOG_LEVEL and installs it as the default.
func Logger(w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: common.LogLevel()}))
	slog.SetDefault(logger)
	return logger
}

// RepositoryConfig maps the database section onto the store config.
func RepositoryConfig(cfg *common.Config) repository.Config {
	return repository.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}
}

// NewModel builds the configured language-model client. It returns nil without an API key.
func NewModel(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.OrderExtractor, func(), error) {
	noop := func() {}
	if cfg.APIKey == "" {
		logger.Warn("LLM API key not configured, PDF, image and message inputs will not be decoded")
		return nil, noop, nil
	}
	switch cfg.Provider {
	case "gemini":
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:            cfg.APIKey,
			Model:             cfg.Model,
			Temperature:       cfg.Temperature,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("Gemini client initialized", "model", cfg.Model)
		return c, func() {
			if err := c.Close(); err != nil {
				logger.Warn("failed to close gemini client", "error", err)
			}
		}, nil
	default:
		c := openai.NewClient(openai.Config{
			APIKey:            cfg.APIKey,
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			Temperature:       cfg.Temperature,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, logger)
		logger.Info("OpenAI client initialized", "model", cfg.Model)
		return c, noop, nil
	}
}

// App holds the wired components. Close releases them in reverse order.
type App struct {
	Config   *common.Config
	DB       *repository.DB
	Repo     repository.OrderRepository
	Router   *pipeline.Router
	Exporter *export.Service
	Intake   *intake.Service
	Tracker  *ingest.Tracker

	closers []func()
}

// Options selects the optional parts of the wiring.
type Options struct {
	Persist bool // open the store and run migrations
}

// New wires an App from cfg.
func New(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Config: cfg}
	loc := cfg.Intake.Location()

	model, closeModel, err := NewModel(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, common.WrapError(err, "llm client")
	}
	a.closers = append(a.closers, closeModel)

	dec := decode.New(decode.WithLogger(logger))
	var assistant *decode.Assistant
	if model != nil {
		docs := extract.NewExtractor(extract.Config{
			Pdftotext:         cfg.Extract.Pdftotext,
			Pdftoppm:          cfg.Extract.Pdftoppm,
			DPI:               cfg.Extract.DPI,
			MaxPages:          cfg.Extract.MaxPages,
			ImageMaxDimension: cfg.Extract.ImageMaxDimension,
		}, logger)
		assistant = decode.NewAssistant(model, docs, decode.WithLogger(logger))
	}
	a.Router = pipeline.NewRouter(dec, assistant, logger)

	layouts, err := export.LoadLayout(cfg.Intake.LayoutPath)
	if err != nil {
		a.Close()
		return nil, common.WrapError(err, "export layout")
	}
	a.Exporter = export.NewService(layouts, loc, logger)
	a.Tracker = ingest.NewTracker(cfg.Intake.SeenTTL, logger)

	svcOpts := []intake.Option{
		intake.WithTracker(a.Tracker),
		intake.WithWorkers(cfg.Intake.Workers),
		intake.WithLocation(loc),
	}
	if opts.Persist {
		if err := a.openStore(ctx, logger); err != nil {
			a.Close()
			return nil, err
		}
		svcOpts = append(svcOpts, intake.WithRepository(a.Repo))
	}
	a.Intake = intake.NewService(a.Router, logger, svcOpts...)
	return a, nil
}

func (a *App) openStore(ctx context.Context, logger *slog.Logger) error {
	rcfg := RepositoryConfig(a.Config)
	if err := repository.Migrate(rcfg, logger); err != nil {
		return common.WrapError(err, "migrate store")
	}
	db, err := repository.Open(ctx, rcfg, logger)
	if err != nil {
		return common.WrapError(err, "open store")
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)

	var locker repository.Locker = repository.NewLocalLocker(a.Config.Database.LockTimeout)
	if url := a.Config.Database.RedisURL; url != "" {
		rl, err := repository.NewRedisLocker(ctx, url, repository.DefaultLockKey, a.Config.Database.LockTimeout, logger)
		if err != nil {
			return common.WrapError(err, "redis locker")
		}
		a.closers = append(a.closers, func() {
			if err := rl.Close(); err != nil {
				logger.Warn("failed to close redis locker", "error", err)
			}
		})
		locker = rl
	}
	a.Repo = repository.NewOrderRepository(db, locker, logger)
	return nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
