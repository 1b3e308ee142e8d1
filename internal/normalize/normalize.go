// Package normalize converts decoder records into canonical order lines.
package normalize

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/width"

	"github.com/joseph-ayodele/order-intake/constants"
	"github.com/joseph-ayodele/order-intake/internal/entity"
)

var dateLayouts = []string{
	constants.DateLayout,
	"2006/1/2",
	"2006-01-02",
	"2006-1-2",
	"2006.1.2",
	"20060102",
	"2006年1月2日",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Date reformats s as YYYY/MM/DD. Values that are not a recognizable date become "".
func Date(s string) string {
	s = strings.TrimSpace(width.Fold.String(s))
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(constants.DateLayout)
		}
	}
	return ""
}

// Decimal parses numeric text, tolerating full-width digits, digit-group separators and a yen sign.
// Anything else is zero.
func Decimal(s string) decimal.Decimal {
	s = width.Fold.String(s)
	s = strings.NewReplacer(",", "", "円", "", "¥", "", "\\", "", " ", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Number is Decimal as a float64.
func Number(s string) float64 {
	return Decimal(s).InexactFloat64()
}

// Line maps one decoder record onto the canonical shape. Every field is present afterwards.
func Line(r entity.RawLine) entity.OrderLine {
	l := entity.OrderLine{
		OrderID:      strings.TrimSpace(r.OrderID),
		OrderDate:    Date(r.OrderDate),
		DeliveryDate: Date(r.DeliveryDate),
		PartnerName:  strings.TrimSpace(r.PartnerName),
		ProductCode:  strings.TrimSpace(r.ProductCode),
		ProductName:  strings.TrimSpace(r.ProductName),
		Size:         strings.TrimSpace(r.Size),
		Quantity:     Number(r.Quantity),
		Unit:         strings.TrimSpace(r.Unit),
		UnitPrice:    Number(r.UnitPrice),
		Amount:       Number(r.Amount),
		Remark:       strings.TrimSpace(r.Remark),
		DataSource:   strings.TrimSpace(r.DataSource),
		Alternatives: r.Alternatives,
	}
	if r.Confidence != nil {
		c := min(max(*r.Confidence, 0), 1)
		l.Confidence = &c
	}
	return l
}

// Keep reports whether a line belongs in the working set: it needs a product name or a remark.
func Keep(l entity.OrderLine) bool {
	return l.ProductName != "" || l.Remark != ""
}

// Lines normalizes records and drops the ones Keep rejects. It returns the number dropped.
func Lines(raw []entity.RawLine) ([]entity.OrderLine, int) {
	out := make([]entity.OrderLine, 0, len(raw))
	dropped := 0
	for _, r := range raw {
		l := Line(r)
		if !Keep(l) {
			dropped++
			continue
		}
		out = append(out, l)
	}
	return out, dropped
}
