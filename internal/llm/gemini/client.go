// Package gemini implements llm.OrderExtractor on the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/order-intake/internal/llm"
)

const provider = "gemini"

type Config struct {
	APIKey            string
	Model             string // default gemini-1.5-flash
	Temperature       float32
	Timeout           time.Duration
	RequestsPerSecond float64
}

type Client struct {
	cfg     Config
	client  *genai.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Client{cfg: cfg, client: client, limiter: llm.NewLimiter(cfg.RequestsPerSecond), logger: logger}, nil
}

func (c *Client) Close() error { return c.client.Close() }

// ExtractOrder implements llm.OrderExtractor. The schema travels in the prompt; JSON mode is forced.
func (c *Client) ExtractOrder(ctx context.Context, req llm.ExtractRequest) (llm.Completion, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"provider", provider,
		"model", c.cfg.Model,
		"channel", req.Channel,
		"text_len", len(req.Text),
		"images", len(req.Images),
	)

	if err := c.limiter.Wait(ctx); err != nil {
		return llm.Completion{}, fmt.Errorf("wait for rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	model := c.client.GenerativeModel(c.cfg.Model)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(c.cfg.Temperature)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(llm.BuildSystemPrompt(req.Channel))}}

	resp, err := model.GenerateContent(ctx, buildParts(req)...)
	if err != nil {
		c.logger.Error("llm.extract.http_error", "req_id", rid, "provider", provider, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return llm.Completion{}, fmt.Errorf("failed to generate content: %w", err)
	}

	content := responseText(resp)
	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"provider", provider,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.Completion{Content: content, Model: c.cfg.Model, Provider: provider}, nil
}

func buildParts(req llm.ExtractRequest) []genai.Part {
	prompt := llm.BuildUserPrompt(req) +
		"\n\nReturn ONLY JSON that matches this JSON Schema:\n" + llm.MustJSON(llm.BuildOrderJSONSchema())
	parts := []genai.Part{genai.Text(prompt)}
	for _, img := range req.Images {
		if !llm.FitsVisionLimit(img) {
			continue
		}
		parts = append(parts, genai.Blob{MIMEType: img.MIMEType, Data: img.Data})
	}
	return parts
}

// responseText joins the text parts of the first candidate. An empty answer is left to the parser.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}
