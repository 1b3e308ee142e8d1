package extract

import (
	"fmt"
	"unicode"

	"github.com/joseph-ayodele/order-intake/constants"
)

// TextQuality is the script-ratio assessment of extracted text.
type TextQuality struct {
	Score         float64
	JapaneseRatio float64
	DigitRatio    float64
	Chars         int
	Usable        bool
}

func (q TextQuality) String() string {
	return fmt.Sprintf("quality %.2f (japanese %.2f, digits %.2f)", q.Score, q.JapaneseRatio, q.DigitRatio)
}

func isJapanese(r rune) bool {
	return (r >= 0x3040 && r <= 0x309F) || // hiragana
		(r >= 0x30A0 && r <= 0x30FF) || // katakana
		(r >= 0x4E00 && r <= 0x9FAF) // CJK unified ideographs
}

// AssessText scores text as japanese_ratio*0.6 + digit_ratio*0.4 over non-space characters.
func AssessText(s string) TextQuality {
	var total, jp, digits int
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		switch {
		case isJapanese(r):
			jp++
		case unicode.IsDigit(r):
			digits++
		}
	}
	if total == 0 {
		return TextQuality{}
	}
	q := TextQuality{
		JapaneseRatio: float64(jp) / float64(total),
		DigitRatio:    float64(digits) / float64(total),
		Chars:         total,
	}
	q.Score = q.JapaneseRatio*0.6 + q.DigitRatio*0.4
	q.Usable = q.Score > constants.TextQualityThreshold
	return q
}

// BlendConfidence weighs text quality against the mean image quality, 0.7/0.3.
// Without images the text score stands alone.
func BlendConfidence(text float64, images []Image) float64 {
	if len(images) == 0 {
		return text
	}
	var sum float64
	for _, img := range images {
		sum += img.Quality
	}
	conf := 0.7*text + 0.3*(sum/float64(len(images)))
	if conf > 1.0 {
		conf = 1.0
	}
	return conf
}
