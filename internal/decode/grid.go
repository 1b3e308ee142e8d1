package decode

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Grid is the formatted cell text of a worksheet, row-major. Rows may be ragged.
type Grid [][]string

// Cell returns the trimmed text at (row, col), or "" outside the grid.
func (g Grid) Cell(row, col int) string {
	if row < 0 || row >= len(g) {
		return ""
	}
	return strings.TrimSpace(cell(g[row], col))
}

// Rows is the number of rows in the grid.
func (g Grid) Rows() int { return len(g) }

// Width is the length of the longest row. Readers trim trailing empty cells, so a short row is not a missing column.
func (g Grid) Width() int {
	w := 0
	for _, r := range g {
		w = max(w, len(r))
	}
	return w
}

// Has reports whether (row, col) lies inside the sheet's rectangle, blank or not.
func (g Grid) Has(row, col int) bool {
	return row >= 0 && row < len(g) && col >= 0 && col < g.Width()
}

// LoadGrid reads the first worksheet of a workbook.
func LoadGrid(content []byte) (Grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return Grid(rows), nil
}

// Vendor C signature cell.
const (
	SignatureVendorC = "伝票番号"
	sigRowC          = 4
	sigColC          = 1
)

// SniffVendorC reports whether a grid carries the Vendor C signature.
func SniffVendorC(g Grid) bool {
	return g.Rows() > 5 && g.Cell(sigRowC, sigColC) == SignatureVendorC
}
