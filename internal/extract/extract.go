// Package extract prepares documents and images for the model call: embedded PDF text,
// rasterised pages, normalised photos and the pre-call quality signals.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/order-intake/constants"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"

	DPI               int // rasterization DPI for scanned PDFs, default 200
	MaxPages          int // 0 = no limit
	ImageMaxDimension int // longest side of uploaded images, default 2048
}

// Image is an encoded picture ready to attach to a model request.
type Image struct {
	Data     []byte
	MIMEType string
	Quality  float64
}

type Result struct {
	Text       string
	Pages      int
	SourceType constants.Format
	Method     string // "pdf-text" | "pdf-raster" | "image"
	Images     []Image
	Quality    TextQuality
	Confidence float64 // pre-call document confidence
	Duration   time.Duration
	Warnings   []string
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 200
	}
	if cfg.ImageMaxDimension <= 0 {
		cfg.ImageMaxDimension = 2048
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner swaps the command runner.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// Extract picks a strategy based on file extension.
func (e *Extractor) Extract(ctx context.Context, content []byte, filename string) (Result, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(filename))
	e.logger.Debug("extract.start", "file", filename, "ext", ext, "bytes", len(content))

	var (
		res Result
		err error
	)
	switch constants.MapExtToFormat(ext) {
	case constants.PDF:
		res, err = e.extractPDF(ctx, content, filename)
	case constants.IMAGE:
		res, err = e.extractImage(content)
	default:
		e.logger.Error("extract.unsupported", "file", filename, "ext", ext)
		return Result{}, fmt.Errorf("unsupported extension: %q", ext)
	}
	res.Duration = time.Since(start)
	if err == nil {
		e.logger.Info("extract.ok",
			"file", filename,
			"method", res.Method,
			"pages", res.Pages,
			"images", len(res.Images),
			"quality", res.Quality.Score,
			"confidence", res.Confidence,
			"elapsed_ms", res.Duration.Milliseconds(),
		)
	}
	return res, err
}

func (e *Extractor) extractImage(content []byte) (Result, error) {
	img, err := PrepareImage(content, e.cfg.ImageMaxDimension)
	if err != nil {
		return Result{SourceType: constants.IMAGE}, err
	}
	return Result{
		Pages:      1,
		SourceType: constants.IMAGE,
		Method:     "image",
		Images:     []Image{img},
		Confidence: img.Quality,
	}, nil
}
