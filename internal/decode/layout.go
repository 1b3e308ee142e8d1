package decode

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

const (
	layoutMinGap       = 4 // spaces separating two printed columns
	layoutColumnSlack  = 6
	layoutMinPairedRow = 2
)

// LayoutVerdict is the result of the geometric pre-check over layout-preserving text.
type LayoutVerdict struct {
	TwoColumn   bool
	ProductRows int // rows holding at least one name followed by a number
	PairedRows  int // rows holding two or more of them
	RightColumn int // clustered start column of the second product, when TwoColumn
}

// Hint renders the verdict for the model prompt. It is empty when the text held no product rows.
func (v LayoutVerdict) Hint() string {
	switch {
	case v.ProductRows == 0:
		return ""
	case v.TwoColumn:
		return fmt.Sprintf("two products per printed row (%d of %d rows paired, right column near position %d); emit one item per product",
			v.PairedRows, v.ProductRows, v.RightColumn)
	default:
		return fmt.Sprintf("single product per printed row (%d rows)", v.ProductRows)
	}
}

type segment struct {
	col  int
	text string
}

// segments splits a line on runs of layoutMinGap or more blanks. A full-width space counts as two.
func segments(line string) []segment {
	var (
		out   []segment
		cur   strings.Builder
		start = -1
		gap   = 0
		col   = 0
	)
	flush := func() {
		if start >= 0 {
			out = append(out, segment{col: start, text: strings.TrimSpace(cur.String())})
		}
		cur.Reset()
		start = -1
	}
	for _, r := range line {
		w := 1
		if r == '　' {
			w = 2
		}
		if r == ' ' || r == '\t' || r == '　' {
			gap += w
			if gap >= layoutMinGap {
				flush()
			} else if start >= 0 {
				cur.WriteRune(r)
			}
			col += w
			continue
		}
		gap = 0
		if start < 0 {
			start = col
		}
		cur.WriteRune(r)
		col += w
	}
	flush()
	return out
}

func isNumberToken(s string) bool {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(s, "¥"), "円"))
	if s == "" {
		return false
	}
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == ',' || r == '.' || r == '，' || r == '．':
		default:
			return false
		}
	}
	return digits > 0
}

func isNumberSegment(s segment) bool {
	f := strings.Fields(s.text)
	return len(f) > 0 && isNumberToken(f[0])
}

func isNameSegment(s segment) bool {
	if isNumberSegment(s) {
		return false
	}
	for _, r := range s.text {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// productCells returns the start column of every name segment immediately followed by a number segment.
func productCells(segs []segment) []int {
	var cols []int
	for i := 0; i+1 < len(segs); i++ {
		if isNameSegment(segs[i]) && isNumberSegment(segs[i+1]) {
			cols = append(cols, segs[i].col)
			i++
		}
	}
	return cols
}

// DetectLayout looks for order forms printing two products side by side in one physical row.
// The layout is two-column when paired rows make up at least half of the product rows and
// their right-hand products start in the same column band.
func DetectLayout(text string) LayoutVerdict {
	var (
		v     LayoutVerdict
		right []int
	)
	for _, line := range strings.Split(text, "\n") {
		cells := productCells(segments(line))
		if len(cells) == 0 {
			continue
		}
		v.ProductRows++
		if len(cells) >= 2 {
			v.PairedRows++
			right = append(right, cells[1])
		}
	}
	if v.PairedRows < layoutMinPairedRow || v.PairedRows*2 < v.ProductRows {
		return v
	}

	sort.Ints(right)
	median := right[len(right)/2]
	clustered := 0
	for _, c := range right {
		if c >= median-layoutColumnSlack && c <= median+layoutColumnSlack {
			clustered++
		}
	}
	if clustered >= layoutMinPairedRow && clustered*5 >= len(right)*3 {
		v.TwoColumn = true
		v.RightColumn = median
	}
	return v
}
