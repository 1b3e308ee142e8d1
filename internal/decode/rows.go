package decode

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// readRows parses delimited text into records. With keepBlank, every blank physical line between
// records becomes an empty row so positional offsets match the file layout.
func readRows(text string, keepBlank bool) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var (
		rows    [][]string
		prevOff int64
		next    = 1 // first physical line not yet represented in rows
	)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if keepBlank {
			start, _ := r.FieldPos(0)
			for ; next < start; next++ {
				rows = append(rows, []string{})
			}
		}
		rows = append(rows, rec)

		off := r.InputOffset()
		next = lineAfter(text, prevOff, off, next)
		prevOff = off
	}
	return rows, nil
}

// lineAfter advances the physical line counter across text[from:to].
// The counter is already at the record's first line, so only the newlines inside the record move it.
func lineAfter(text string, from, to int64, line int) int {
	seg := text[from:to]
	// skipped blank lines before the record were counted by the caller
	seg = strings.TrimLeft(seg, "\r\n")
	return line + strings.Count(seg, "\n")
}

// cell returns row[i] or "" when the row is too short.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// dropFirstLine removes the first physical line.
func dropFirstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[i+1:]
	}
	return ""
}

var currencyStripper = strings.NewReplacer("円", "", ",", "")

// stripCurrency removes the yen sign and digit-group separators.
func stripCurrency(s string) string {
	return strings.TrimSpace(currencyStripper.Replace(s))
}
