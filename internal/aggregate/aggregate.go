// Package aggregate builds the purchasing report from a working set of order lines.
// Everything here is a pure function of its input.
package aggregate

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/order-intake/internal/entity"
)

type groupKey struct {
	productName string
	size        string
	remark      string
	unit        string
}

func (k groupKey) compare(o groupKey) int {
	return cmp.Or(
		cmp.Compare(k.productName, o.productName),
		cmp.Compare(k.size, o.size),
		cmp.Compare(k.remark, o.remark),
		cmp.Compare(k.unit, o.unit),
	)
}

// compareDate orders YYYY/MM/DD strings with blanks last.
func compareDate(a, b string) int {
	switch {
	case a == b:
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	}
	return cmp.Compare(a, b)
}

// SortLines returns a copy of lines ordered by product name, delivery date and order date.
// Missing dates sort last. Ties keep their input order.
func SortLines(lines []entity.OrderLine) []entity.OrderLine {
	out := slices.Clone(lines)
	slices.SortStableFunc(out, func(a, b entity.OrderLine) int {
		return cmp.Or(
			cmp.Compare(a.ProductName, b.ProductName),
			compareDate(a.DeliveryDate, b.DeliveryDate),
			compareDate(a.OrderDate, b.OrderDate),
		)
	})
	return out
}

// Summarize groups lines by product name, size, remark and unit and sums their quantities.
// Rows are ordered by product name, then by the rest of the group key, so any permutation
// of the input yields the same table.
func Summarize(lines []entity.OrderLine) []entity.AggregationRow {
	sums := make(map[groupKey]decimal.Decimal)
	for _, l := range SortLines(lines) {
		k := groupKey{productName: l.ProductName, size: l.Size, remark: l.Remark, unit: l.Unit}
		sums[k] = sums[k].Add(decimal.NewFromFloat(l.Quantity))
	}

	keys := make([]groupKey, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, groupKey.compare)

	rows := make([]entity.AggregationRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, entity.AggregationRow{
			ProductName: k.productName,
			Size:        k.size,
			Remark:      k.remark,
			Unit:        k.unit,
			QuantitySum: sums[k].InexactFloat64(),
		})
	}
	return rows
}
