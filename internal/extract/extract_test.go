package extract

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-intake/constants"
)

type fakeRunner struct {
	text     string
	textErr  error
	pageSize image.Point
	calls    []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, name)
	switch name {
	case "pdftotext":
		if f.textErr != nil {
			return nil, []byte("no text layer"), f.textErr
		}
		return []byte(f.text), nil, nil
	case "pdftoppm":
		prefix := args[len(args)-1]
		if err := os.WriteFile(prefix+"-1.png", pngBytes(f.pageSize.X, f.pageSize.Y), 0o600); err != nil {
			return nil, nil, err
		}
		return nil, nil, nil
	}
	return nil, nil, errors.New("unexpected command " + name)
}

func pngBytes(w, h int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/8+y/8)%2 == 0 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func TestAssessText(t *testing.T) {
	q := AssessText("発注書 2025年7月1日\nキャベツ 10")
	assert.True(t, q.Usable)
	assert.Greater(t, q.Score, constants.TextQualityThreshold)

	q = AssessText("lorem ipsum dolor sit amet")
	assert.False(t, q.Usable)
	assert.Equal(t, 0.0, q.Score)

	assert.Equal(t, TextQuality{}, AssessText(" \n "))
}

func TestBlendConfidence(t *testing.T) {
	assert.InDelta(t, 0.5, BlendConfidence(0.5, nil), 1e-9)
	assert.InDelta(t, 0.7*0.5+0.3*0.9, BlendConfidence(0.5, []Image{{Quality: 0.8}, {Quality: 1.0}}), 1e-9)
}

func TestNormalize_KeepsColumnGaps(t *testing.T) {
	in := "キャベツ      10    トマト      5   \r\n\r\n\r\n\r\n-----\nF\f"
	out := Normalize(in)
	assert.Equal(t, "キャベツ      10    トマト      5\n\nF", out)
}

func TestPrepareImage_CapsLongestSide(t *testing.T) {
	img, err := PrepareImage(pngBytes(3000, 1000), 2048)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MIMEType)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.Width)
	assert.InDelta(t, 683, cfg.Height, 1)
	assert.Greater(t, img.Quality, 0.5)

	_, err = PrepareImage([]byte("not an image"), 2048)
	assert.Error(t, err)
}

func TestExtract_PDFWithGoodText(t *testing.T) {
	r := &fakeRunner{text: "注文書\n発注日 2025/07/01\nキャベツ 10 玉\n"}
	e := NewExtractor(Config{}, nil).WithRunner(r)

	res, err := e.Extract(context.Background(), []byte("%PDF-1.4 fake"), "order.pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf-text", res.Method)
	assert.Empty(t, res.Images)
	assert.Equal(t, 1, res.Pages)
	assert.Equal(t, []string{"pdftotext"}, r.calls)
	assert.Equal(t, res.Quality.Score, res.Confidence)
}

func TestExtract_PDFRasterisesPoorText(t *testing.T) {
	r := &fakeRunner{text: "~~ ..", pageSize: image.Pt(200, 300)}
	e := NewExtractor(Config{MaxPages: 2}, nil).WithRunner(r)

	res, err := e.Extract(context.Background(), []byte("%PDF-1.4 fake"), "scan.PDF")
	require.NoError(t, err)
	assert.Equal(t, "pdf-raster", res.Method)
	require.Len(t, res.Images, 1)
	assert.Equal(t, []string{"pdftotext", "pdftoppm"}, r.calls)
	assert.InDelta(t, BlendConfidence(res.Quality.Score, res.Images), res.Confidence, 1e-9)
}

func TestExtract_PDFWithoutTextLayer(t *testing.T) {
	r := &fakeRunner{textErr: errors.New("exit 1"), pageSize: image.Pt(100, 100)}
	res, err := NewExtractor(Config{}, nil).WithRunner(r).Extract(context.Background(), []byte("%PDF"), "x.pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf-raster", res.Method)
	assert.NotEmpty(t, res.Warnings)
}

func TestExtract_Image(t *testing.T) {
	res, err := NewExtractor(Config{}, nil).Extract(context.Background(), pngBytes(64, 64), "chat.png")
	require.NoError(t, err)
	assert.Equal(t, constants.IMAGE, res.SourceType)
	require.Len(t, res.Images, 1)
	assert.Equal(t, res.Images[0].Quality, res.Confidence)
}

func TestExtract_Unsupported(t *testing.T) {
	_, err := NewExtractor(Config{}, nil).Extract(context.Background(), []byte("x"), "notes.docx")
	assert.Error(t, err)
}
