// Package pipeline routes an input file to its decoder and normalizes the decoded lines.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/order-intake/constants"
	"github.com/joseph-ayodele/order-intake/internal/classify"
	"github.com/joseph-ayodele/order-intake/internal/common"
	"github.com/joseph-ayodele/order-intake/internal/decode"
	"github.com/joseph-ayodele/order-intake/internal/entity"
	"github.com/joseph-ayodele/order-intake/internal/normalize"
)

var errNoAssistant = errors.New("AI decoder is not configured")

// Document is one submitted file.
type Document struct {
	Name    string
	Content []byte
}

// Outcome is the per-file result handed back to callers. Message is a one-line human-readable
// explanation, set for skipped, failed and fallback files.
type Outcome struct {
	File     string
	Format   constants.Format
	Source   constants.SourceKind
	Encoding classify.Encoding
	Lines    []entity.OrderLine
	Dropped  int
	Warnings []string
	Band     constants.ConfidenceBand
	FellBack bool
	Skipped  bool
	Err      error
	Message  string
	Elapsed  time.Duration
}

// OK reports whether the file produced parsed lines.
func (o Outcome) OK() bool { return o.Err == nil && !o.Skipped }

// Router dispatches documents to the structured decoders or the AI-assisted decoder.
type Router struct {
	dec       *decode.Decoder
	assistant *decode.Assistant
	logger    *slog.Logger
}

// NewRouter builds a Router. A nil assistant makes PDF and image inputs fail with a message.
func NewRouter(dec *decode.Decoder, assistant *decode.Assistant, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if dec == nil {
		dec = decode.New(decode.WithLogger(logger))
	}
	return &Router{dec: dec, assistant: assistant, logger: logger}
}

var (
	magicPDF  = []byte("%PDF-")
	magicZIP  = []byte("PK\x03\x04")
	magicJPEG = []byte{0xFF, 0xD8, 0xFF}
	magicPNG  = []byte("\x89PNG\r\n\x1a\n")
)

// SniffExt guesses the extension of content from its leading bytes, or returns "".
func SniffExt(content []byte) string {
	switch {
	case bytes.HasPrefix(content, magicPDF):
		return "pdf"
	case bytes.HasPrefix(content, magicZIP):
		return "xlsx"
	case bytes.HasPrefix(content, magicJPEG):
		return "jpg"
	case bytes.HasPrefix(content, magicPNG):
		return "png"
	default:
		return ""
	}
}

// Route returns the routing format of a document and the name its decoder should see.
// Unknown extensions fall back to content sniffing; a sniffed name gains the detected extension.
func Route(doc Document) (constants.Format, string) {
	if f := constants.MapExtToFormat(filepath.Ext(doc.Name)); f != constants.UNSUPPORTED {
		return f, doc.Name
	}
	ext := SniffExt(doc.Content)
	if ext == "" {
		return constants.UNSUPPORTED, doc.Name
	}
	return constants.MapExtToFormat(ext), doc.Name + "." + ext
}

// Decode routes one document through its decoder and the normalizer.
// referenceDate anchors partial dates in AI-assisted documents; "" means today.
func (r *Router) Decode(ctx context.Context, doc Document, referenceDate string) Outcome {
	start := time.Now()
	format, routed := Route(doc)
	out := Outcome{File: doc.Name, Format: format, Source: constants.SourceUnknown}
	log := r.logger.With("file", doc.Name, "format", format)

	var (
		res decode.Result
		err error
	)
	switch format {
	case constants.DELIMITED:
		res, err = r.delimited(doc, &out)
	case constants.SPREADSHEET:
		res, err = r.spreadsheet(doc, &out)
	case constants.PDF, constants.IMAGE:
		if r.assistant == nil {
			err = errNoAssistant
			break
		}
		ar := r.assistant.Document(ctx, doc.Content, routed, referenceDate)
		if routed != doc.Name {
			for i := range ar.Records {
				if ar.Records[i].DataSource == routed {
					ar.Records[i].DataSource = doc.Name
				}
			}
		}
		out.Band = ar.Band()
		out.FellBack = ar.FellBack()
		if ar.FellBack() {
			out.Message = fmt.Sprintf("%s: %s: AI extraction failed (%s), a diagnostic record was produced", doc.Name, common.CodeModelMalformed, ar.Failure.Reason)
		}
		res = ar
	default:
		out.Skipped = true
		out.Err = common.NewAppError(common.CodeUnknownFormat, "unsupported file type", common.ErrUnknownFormat)
		out.Message = fmt.Sprintf("%s: unsupported file type, skipped", doc.Name)
	}

	switch {
	case out.Skipped:
		log.Warn("pipeline.skipped", "reason", out.Message)
	case err != nil:
		out.Err = err
		if errors.Is(err, common.ErrUnknownFormat) || errors.Is(err, common.ErrEncodingDetection) {
			out.Skipped = true
			out.Message = fmt.Sprintf("%s: unknown format, skipped (%v)", doc.Name, err)
		} else {
			out.Message = fmt.Sprintf("%s: %v", doc.Name, err)
		}
		log.Warn("pipeline.failed", "error", err)
	default:
		out.Source = res.Source()
		out.Warnings = res.Warnings()
		out.Lines, out.Dropped = normalize.Lines(res.Lines())
		log.Info("pipeline.decoded",
			"source", out.Source,
			"lines", len(out.Lines),
			"dropped", out.Dropped,
			"warnings", len(out.Warnings),
		)
	}
	out.Elapsed = time.Since(start)
	return out
}

func (r *Router) delimited(doc Document, out *Outcome) (decode.Result, error) {
	detected, trace, err := classify.Detect(doc.Content, r.logger)
	if err != nil {
		r.logger.Debug("pipeline.classify_trace", "file", doc.Name, "trace", trace.String())
		return nil, err
	}
	out.Encoding = detected.Encoding
	switch detected.Kind {
	case constants.SourceVendorA:
		return r.dec.VendorA(doc.Content, doc.Name, detected.Encoding)
	case constants.SourceVendorB:
		return r.dec.VendorB(doc.Content, doc.Name)
	default:
		return nil, common.NewAppError(common.CodeUnknownFormat, "first cell matched no vendor signature", common.ErrUnknownFormat)
	}
}

func (r *Router) spreadsheet(doc Document, _ *Outcome) (decode.Result, error) {
	g, err := decode.LoadGrid(doc.Content)
	if err != nil {
		return nil, common.StructuralError(doc.Name, "unreadable spreadsheet", err)
	}
	if !decode.SniffVendorC(g) {
		return nil, common.NewAppError(common.CodeUnknownFormat, "unknown spreadsheet layout", common.ErrUnknownFormat)
	}
	return r.dec.VendorC(g, doc.Name)
}

// FreeText decodes a typed chat message through the AI-assisted decoder.
func (r *Router) FreeText(ctx context.Context, customer, message, referenceDate string) Outcome {
	return r.assisted("text", func() *decode.AssistedResult {
		return r.assistant.FreeText(ctx, customer, message, referenceDate)
	})
}

// ChatImage decodes a photographed chat order through the AI-assisted decoder.
func (r *Router) ChatImage(ctx context.Context, image []byte, sender, message, referenceDate string) Outcome {
	return r.assisted("chat image", func() *decode.AssistedResult {
		return r.assistant.ChatImage(ctx, image, sender, message, referenceDate)
	})
}

func (r *Router) assisted(label string, call func() *decode.AssistedResult) Outcome {
	start := time.Now()
	out := Outcome{File: label, Source: constants.SourceAssisted}
	if r.assistant == nil {
		out.Err = errNoAssistant
		out.Message = fmt.Sprintf("%s: %v", label, errNoAssistant)
		return out
	}
	res := call()
	out.Band = res.Band()
	out.FellBack = res.FellBack()
	out.Warnings = res.Warnings()
	out.Lines, out.Dropped = normalize.Lines(res.Lines())
	if res.FellBack() {
		out.Message = fmt.Sprintf("%s: %s: AI extraction failed (%s), a diagnostic record was produced", label, common.CodeModelMalformed, res.Failure.Reason)
	}
	out.Elapsed = time.Since(start)
	r.logger.Info("pipeline.decoded", "source", out.Source, "channel", res.Channel, "lines", len(out.Lines), "fell_back", out.FellBack)
	return out
}
