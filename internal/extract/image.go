package extract

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Reference geometry for a legible phone photo or a 200dpi A4 scan.
const (
	referencePixels = 1200 * 1600
	contrastSpread  = 64.0 // luminance standard deviation treated as full contrast
	sampleBudget    = 250_000
)

// PrepareImage decodes an image (applying EXIF orientation), caps the longest side at maxDim,
// converts to grayscale with mild contrast and sharpening, and re-encodes as JPEG.
func PrepareImage(content []byte, maxDim int) (Image, error) {
	img, err := imaging.Decode(bytes.NewReader(content), imaging.AutoOrientation(true))
	if err != nil {
		return Image{}, fmt.Errorf("decode image: %w", err)
	}

	if maxDim > 0 {
		b := img.Bounds()
		if b.Dx() > maxDim || b.Dy() > maxDim {
			img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
		}
	}

	gray := imaging.Grayscale(img)
	quality := ImageQuality(gray)

	out := imaging.AdjustContrast(gray, 20)
	out = imaging.Sharpen(out, 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return Image{}, fmt.Errorf("encode image: %w", err)
	}
	return Image{Data: buf.Bytes(), MIMEType: "image/jpeg", Quality: quality}, nil
}

// ImageQuality scores a grayscale image in [0,1] from luminance spread and resolution.
func ImageQuality(gray *image.NRGBA) float64 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	step := max(1, int(math.Sqrt(float64(w*h)/sampleBudget)))
	var sum, sumSq, n float64
	for y := 0; y < h; y += step {
		row := gray.Pix[y*gray.Stride:]
		for x := 0; x < w; x += step {
			v := float64(row[x*4])
			sum += v
			sumSq += v * v
			n++
		}
	}
	mean := sum / n
	stddev := math.Sqrt(math.Max(0, sumSq/n-mean*mean))

	contrast := math.Min(1, stddev/contrastSpread)
	resolution := math.Min(1, float64(w*h)/referencePixels)
	return 0.6*contrast + 0.4*resolution
}
