package classify

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
)

// Encoding names a candidate text encoding.
type Encoding string

const (
	UTF8SIG  Encoding = "utf-8-sig"
	UTF8     Encoding = "utf-8"
	CP932    Encoding = "cp932"
	ShiftJIS Encoding = "shift_jis"
)

// DefaultEncodings is the ordered candidate list used by Detect.
var DefaultEncodings = []Encoding{UTF8SIG, UTF8, CP932, ShiftJIS}

// BlockEncodings is the ordered candidate list used by the fixed-block decoder.
var BlockEncodings = []Encoding{UTF8SIG, CP932, ShiftJIS}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Decode strictly decodes b. Any byte sequence the encoding cannot represent is an error.
func Decode(b []byte, enc Encoding) (string, error) {
	switch enc {
	case UTF8SIG:
		if !utf8.Valid(b) {
			return "", fmt.Errorf("%s: invalid byte sequence", enc)
		}
		return string(bytes.TrimPrefix(b, utf8BOM)), nil
	case UTF8:
		if !utf8.Valid(b) {
			return "", fmt.Errorf("%s: invalid byte sequence", enc)
		}
		return string(b), nil
	case CP932:
		return decodeShiftJIS(b, enc)
	case ShiftJIS:
		if off, ok := firstVendorExtension(b); ok {
			return "", fmt.Errorf("%s: vendor extension byte 0x%02X at offset %d", enc, b[off], off)
		}
		return decodeShiftJIS(b, enc)
	default:
		return "", fmt.Errorf("unsupported encoding %q", enc)
	}
}

// DecodeFirst returns the text of the first candidate that decodes b.
func DecodeFirst(b []byte, candidates []Encoding) (string, Encoding, error) {
	var errs []string
	for _, enc := range candidates {
		text, err := Decode(b, enc)
		if err == nil {
			return text, enc, nil
		}
		errs = append(errs, err.Error())
	}
	return "", "", fmt.Errorf("no candidate encoding decoded the input: %s", strings.Join(errs, "; "))
}

func decodeShiftJIS(b []byte, enc Encoding) (string, error) {
	out, err := japanese.ShiftJIS.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("%s: %w", enc, err)
	}
	// the x/text decoder substitutes U+FFFD instead of failing
	if i := bytes.IndexRune(out, utf8.RuneError); i >= 0 {
		return "", fmt.Errorf("%s: undecodable sequence", enc)
	}
	return string(out), nil
}

// firstVendorExtension finds the first lead byte that only exists in the Windows (cp932) superset:
// NEC special characters (0x87), NEC-selected IBM extensions (0xED, 0xEE) and IBM extensions (0xFA-0xFC).
func firstVendorExtension(b []byte) (int, bool) {
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case c < 0x80, c >= 0xA1 && c <= 0xDF:
			continue
		case c == 0x87, c == 0xED, c == 0xEE, c >= 0xFA && c <= 0xFC:
			return i, true
		case c >= 0x81 && c <= 0x9F, c >= 0xE0 && c <= 0xEF:
			i++ // trail byte
		}
	}
	return 0, false
}
