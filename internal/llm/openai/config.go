package openai

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/order-intake/internal/llm"
)

// Config for the OpenAI client. Values come from common.LLMConfig; nothing is read from the environment here.
type Config struct {
	APIKey            string
	BaseURL           string        // default https://api.openai.com/v1
	Model             string        // e.g., "gpt-4o"
	Temperature       float32       // 0..2
	MaxTokens         int           // default 3000
	Timeout           time.Duration // http client timeout
	RequestsPerSecond float64       // <= 0 disables pacing
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 3000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: llm.NewLimiter(cfg.RequestsPerSecond),
		logger:  logger,
	}
}
