package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/joseph-ayodele/order-intake/constants"
)

// PageCount reads the page count from the PDF structure.
func PageCount(content []byte) (int, error) {
	return api.PageCount(bytes.NewReader(content), nil)
}

func (e *Extractor) extractPDF(ctx context.Context, content []byte, filename string) (Result, error) {
	res := Result{SourceType: constants.PDF}

	tmpDir, err := os.MkdirTemp("", "oi-pdf-*")
	if err != nil {
		return res, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("extract.cleanup_failed", "dir", path, "error", err)
		}
	}(tmpDir)

	path := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return res, err
	}

	if n, err := PageCount(content); err == nil {
		res.Pages = n
	} else {
		e.logger.Warn("extract.page_count_failed", "file", filename, "error", err)
		res.Warnings = append(res.Warnings, "page count: "+err.Error())
	}

	text, pages, warns, err := e.pdfToText(ctx, path)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		// no text layer is recoverable: the rasterised pages still go to the model
		res.Warnings = append(res.Warnings, "pdftotext: "+err.Error())
	}
	if res.Pages == 0 {
		res.Pages = pages
	}
	res.Text = Normalize(text)
	res.Quality = AssessText(res.Text)
	res.Method = "pdf-text"
	res.Confidence = res.Quality.Score

	if res.Quality.Usable {
		return res, nil
	}

	e.logger.Info("extract.pdf.low_text_quality", "file", filename, "score", res.Quality.Score)
	images, warns, err := e.pdfToImages(ctx, path, tmpDir)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		if res.Text == "" {
			return res, fmt.Errorf("pdf has neither text nor renderable pages: %w", err)
		}
		return res, nil
	}
	res.Images = images
	res.Method = "pdf-raster"
	res.Confidence = BlendConfidence(res.Quality.Score, images)
	return res, nil
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, nonEmpty(string(errb)), err
	}
	text = string(out)
	// A form-feed \f is used as page separator by default
	pages = 1 + strings.Count(strings.TrimRight(text, "\f\n"), "\f")
	return text, pages, nil, nil
}

func (e *Extractor) pdfToImages(ctx context.Context, path, dir string) ([]Image, []string, error) {
	prefix := filepath.Join(dir, "page")
	args := []string{"-r", fmt.Sprintf("%d", e.cfg.DPI), "-png"}
	if e.cfg.MaxPages > 0 {
		args = append(args, "-l", fmt.Sprintf("%d", e.cfg.MaxPages))
	}
	// pdftoppm -r 200 -png [-l N] <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, append(args, path, prefix)...)
	if err != nil {
		return nil, nonEmpty(string(errb)), err
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return nil, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	var (
		images []Image
		warns  []string
	)
	for _, m := range matches {
		raw, err := os.ReadFile(m)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		img, err := PrepareImage(raw, e.cfg.ImageMaxDimension)
		if err != nil {
			warns = append(warns, fmt.Sprintf("%s: %v", filepath.Base(m), err))
			continue
		}
		images = append(images, img)
	}
	if len(images) == 0 {
		return nil, warns, fmt.Errorf("no page images could be prepared")
	}
	return images, warns, nil
}

func nonEmpty(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return []string{s}
}
