package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/order-intake/internal/common"
)

// FailureReason classifies why a model answer could not be used.
type FailureReason string

const (
	ReasonExtraction  FailureReason = "extraction_failed"
	ReasonModelCall   FailureReason = "model_call_failed"
	ReasonEmpty       FailureReason = "empty_response"
	ReasonInvalidJSON FailureReason = "invalid_json"
	ReasonSchema      FailureReason = "schema_mismatch"
)

// ParseFailure is the typed reason the assisted decoder fell back to a diagnostic record.
type ParseFailure struct {
	Reason FailureReason
	Detail string
}

func (f *ParseFailure) Error() string {
	if f.Detail == "" {
		return string(f.Reason)
	}
	return string(f.Reason) + ": " + f.Detail
}

func (f *ParseFailure) Unwrap() error { return common.ErrModelResponseMalformed }

// Outcome carries either a parsed document or a failure, never both.
type Outcome struct {
	Document *OrderDocument
	Raw      string
	Dropped  []string
	Failure  *ParseFailure
}

func failed(raw string, reason FailureReason, detail string) Outcome {
	return Outcome{Raw: raw, Failure: &ParseFailure{Reason: reason, Detail: detail}}
}

// ModelCallFailed builds the outcome for a transport or provider error.
func ModelCallFailed(err error) Outcome {
	return failed("", ReasonModelCall, err.Error())
}

// ExtractionFailed builds the outcome for a document that could not be prepared for the model.
func ExtractionFailed(err error) Outcome {
	return failed("", ReasonExtraction, err.Error())
}

// StripCodeFence removes a surrounding ``` or ```json fence.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ParseCompletion turns model content into an OrderDocument. It never returns an error:
// every failure is reported on the Outcome.
func ParseCompletion(content string, logger *slog.Logger) Outcome {
	if logger == nil {
		logger = slog.Default()
	}

	body := StripCodeFence(content)
	if body == "" {
		return failed(content, ReasonEmpty, "model returned no content")
	}
	if !json.Valid([]byte(body)) {
		// prose around the object
		start, end := strings.IndexByte(body, '{'), strings.LastIndexByte(body, '}')
		if start < 0 || end <= start || !json.Valid([]byte(body[start:end+1])) {
			return failed(content, ReasonInvalidJSON, "response is not a JSON object")
		}
		body = body[start : end+1]
	}

	normalized, dropped, err := NormalizeModelJSON([]byte(body), logger)
	if err != nil {
		return failed(content, ReasonInvalidJSON, err.Error())
	}

	schema := BuildOrderJSONSchema()
	if err := ValidateJSONAgainstSchema(schema, normalized); err != nil {
		cleaned, more, sErr := SanitizeOptionalFields(normalized)
		if sErr != nil {
			return failed(content, ReasonSchema, sErr.Error())
		}
		if vErr := ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			logger.Warn("llm.extract.schema_validation_failed", "error", vErr)
			return failed(content, ReasonSchema, vErr.Error())
		}
		logger.Warn("llm.extract.lenient_sanitize_applied", "dropped", more)
		normalized = cleaned
		dropped = append(dropped, more...)
	}

	var doc OrderDocument
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return failed(content, ReasonSchema, fmt.Sprintf("unmarshal order: %v", err))
	}
	return Outcome{Document: &doc, Raw: content, Dropped: dropped}
}
