// Package classify resolves the text encoding and vendor signature of delimited order files.
package classify

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/order-intake/constants"
	"github.com/joseph-ayodele/order-intake/internal/common"
)

// Vendor signature literals found in the first cell of the first line.
const (
	SignatureVendorA = "H"
	SignatureVendorB = "伝票番号"
)

// DetectedFormat is the classifier verdict. Kind is SourceUnknown when nothing matched.
type DetectedFormat struct {
	Kind     constants.SourceKind
	Encoding Encoding
}

// Attempt records one encoding trial.
type Attempt struct {
	Encoding  Encoding
	Decoded   bool
	FirstCell string
	Matched   constants.SourceKind
	Err       string
}

// Trace is the human-readable record of every attempt. It never drives control flow.
type Trace []Attempt

func (t Trace) String() string {
	var b strings.Builder
	for _, a := range t {
		switch {
		case !a.Decoded:
			fmt.Fprintf(&b, "[%s] error: %s\n", a.Encoding, a.Err)
		case a.Matched != "":
			fmt.Fprintf(&b, "[%s] first_cell=%q -> %s\n", a.Encoding, a.FirstCell, a.Matched)
		default:
			fmt.Fprintf(&b, "[%s] first_cell=%q -> no signature\n", a.Encoding, a.FirstCell)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

var quoteStripper = strings.NewReplacer(`"`, "", "'", "")

// Detect tries DefaultEncodings in order and matches the first cell of the first line against the vendor signatures.
// The error is nil on a match, wraps ErrEncodingDetection when no candidate decoded, and ErrUnknownFormat otherwise.
func Detect(content []byte, logger *slog.Logger) (DetectedFormat, Trace, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var trace Trace
	decodedAny := false
	for _, enc := range DefaultEncodings {
		text, err := Decode(content, enc)
		if err != nil {
			trace = append(trace, Attempt{Encoding: enc, Err: err.Error()})
			continue
		}
		decodedAny = true

		cell := FirstCell(text)
		a := Attempt{Encoding: enc, Decoded: true, FirstCell: cell}
		switch cell {
		case SignatureVendorA:
			a.Matched = constants.SourceVendorA
		case SignatureVendorB:
			a.Matched = constants.SourceVendorB
		}
		trace = append(trace, a)
		if a.Matched != "" {
			logger.Debug("classify.match", "kind", a.Matched, "encoding", enc)
			return DetectedFormat{Kind: a.Matched, Encoding: enc}, trace, nil
		}
	}

	unknown := DetectedFormat{Kind: constants.SourceUnknown}
	if !decodedAny {
		logger.Warn("classify.encoding_detection_failed", "attempts", len(trace))
		return unknown, trace, common.NewAppError(common.CodeEncodingDetection, "no candidate encoding decoded the file", common.ErrEncodingDetection)
	}
	logger.Warn("classify.unknown_format", "attempts", len(trace))
	return unknown, trace, common.NewAppError(common.CodeUnknownFormat, "first cell matched no vendor signature", common.ErrUnknownFormat)
}

// FirstCell returns the first comma-separated cell of the first line with quotes and whitespace removed.
func FirstCell(text string) string {
	line := text
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	cell, _, _ := strings.Cut(line, ",")
	return strings.TrimSpace(quoteStripper.Replace(cell))
}
