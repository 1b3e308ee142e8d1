package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/order-intake/internal/llm"
)

const provider = "openai"

// ExtractOrder implements llm.OrderExtractor using chat/completions in JSON mode.
// Images are sent inline as data URLs next to the text.
func (c *Client) ExtractOrder(ctx context.Context, req llm.ExtractRequest) (llm.Completion, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"provider", provider,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"channel", req.Channel,
		"text_len", len(req.Text),
		"images", len(req.Images),
		"prep_confidence", req.PrepConfidence,
	)

	body := c.buildBody(req, rid)
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	raw, err := llm.SendJSON(ctx, c.http, c.limiter, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Completion{}, err
	}

	var cc struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Completion{}, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.extract.no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.Completion{}, fmt.Errorf("no choices in openai response")
	}

	model := cc.Model
	if model == "" {
		model = c.cfg.Model
	}
	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"provider", provider,
		"content_len", len(cc.Choices[0].Message.Content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return llm.Completion{Content: cc.Choices[0].Message.Content, Model: model, Provider: provider}, nil
}

func (c *Client) buildBody(req llm.ExtractRequest, rid string) map[string]any {
	schema := llm.BuildOrderJSONSchema()
	user := llm.BuildUserPrompt(req) + "\n\nReturn ONLY JSON that matches the provided schema."

	var userContent any = user
	if len(req.Images) > 0 {
		parts := []map[string]any{{"type": "text", "text": user}}
		for i, img := range req.Images {
			if !llm.FitsVisionLimit(img) {
				c.logger.Warn("llm.extract.image_skipped", "req_id", rid, "index", i, "bytes", len(img.Data))
				continue
			}
			parts = append(parts, map[string]any{
				"type":      "image_url",
				"image_url": map[string]any{"url": llm.DataURL(img), "detail": "high"},
			})
		}
		userContent = parts
	}

	return map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"max_tokens":      c.cfg.MaxTokens,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt(req.Channel)},
			{"role": "user", "content": userContent},
			{"role": "system", "content": "JSON Schema:\n" + llm.MustJSON(schema)},
		},
	}
}
