package decode

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/order-intake/constants"
	"github.com/joseph-ayodele/order-intake/internal/common"
	"github.com/joseph-ayodele/order-intake/internal/entity"
)

// Vendor C cell coordinates (row, col), zero-based.
const (
	minRowsC        = 6
	itemStartRowC   = 10
	colCProductCode = 5
	colCProductName = 7
	colCQuantity    = 23
	colCUnit        = 27
	colCUnitPrice   = 29
	yearWrapMaxDays = 300
	orderDateTokenC = "発注日"
)

// headerCellsC are the cells every Vendor C document must carry.
var headerCellsC = []struct {
	name string
	at   [2]int
}{
	{"document id", cellDocumentID},
	{"order date text", cellOrderText},
	{"delivery date", cellDeliveryDate},
	{"partner name", cellPartnerHead},
	{"partner branch", cellPartnerTail},
}

var (
	cellDocumentID   = [2]int{5, 1}
	cellOrderText    = [2]int{3, 52}
	cellDeliveryDate = [2]int{5, 9}
	cellPartnerHead  = [2]int{0, 52}
	cellPartnerTail  = [2]int{5, 19}
)

// remark cells: current row then the spill-over row
var (
	remarkColsCurrent = []int{17, 55}
	remarkColsNext    = []int{7, 13, 55, 65}
)

var deliveryLayouts = []string{"06/1/2", "2006/1/2", "2006-01-02", "1-2-06"}

func parseDelivery(s string) (time.Time, bool) {
	for _, layout := range deliveryLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// orderFragment extracts the MM/DD text following the order-date token up to the closing parenthesis.
func orderFragment(text string) (string, bool) {
	_, after, ok := strings.Cut(text, orderDateTokenC)
	if !ok {
		return "", false
	}
	frag, _, _ := strings.Cut(after, ")")
	frag, _, _ = strings.Cut(frag, "）")
	return strings.TrimSpace(frag), true
}

func dateIn(year int, mmdd string) (time.Time, error) {
	return time.Parse("2006/1/2", fmt.Sprintf("%d/%s", year, mmdd))
}

// inferOrderDate rebuilds a full order date from an MM/DD fragment, anchored on the delivery year.
func (d *Decoder) inferOrderDate(filename, orderText string, delivery time.Time, hasDelivery bool) (string, []string) {
	var notes []string

	anchor := d.now().Year()
	if hasDelivery {
		anchor = delivery.Year()
	}

	fallback := func(reason string) (string, []string) {
		today := d.now().Format(constants.DateLayout)
		d.logger.Warn("decode.vendor_c.order_date_fallback", "file", filename, "text", orderText, "reason", reason, "date", today)
		return today, append(notes, fmt.Sprintf("%s: order date %q unreadable, using %s", filename, orderText, today))
	}

	mmdd, ok := orderFragment(orderText)
	if !ok {
		return fallback("order date token not found")
	}
	candidate, err := dateIn(anchor, mmdd)
	if err != nil {
		return fallback(err.Error())
	}

	if hasDelivery {
		switch {
		case candidate.After(delivery) && candidate.Month() == time.December && delivery.Month() == time.January:
			// December order for January delivery: the order belongs to the delivery's previous year
			candidate, err = dateIn(anchor-1, mmdd)
			d.logger.Info("decode.vendor_c.year_end_order", "file", filename, "order_date", candidate.Format(constants.DateLayout))
		case candidate.After(delivery):
			candidate, err = dateIn(anchor-1, mmdd)
			notes = append(notes, d.ambiguous(filename, "order after delivery, moved to previous year", candidate))
		case delivery.Sub(candidate).Hours()/24 > yearWrapMaxDays:
			candidate, err = dateIn(anchor+1, mmdd)
			notes = append(notes, d.ambiguous(filename, "order far before delivery, moved to next year", candidate))
		}
		if err != nil {
			return fallback(err.Error())
		}
	}
	return candidate.Format(constants.DateLayout), notes
}

func (d *Decoder) ambiguous(filename, msg string, got time.Time) string {
	date := got.Format(constants.DateLayout)
	d.logger.Warn("decode.vendor_c.date_ambiguous", "file", filename, "reason", msg, "order_date", date, "error", common.ErrDateInferenceAmbiguous)
	return fmt.Sprintf("%s: %s: %s (%s)", filename, common.CodeDateAmbiguous, msg, date)
}

// computeAmount multiplies quantity by unit price. Any non-numeric operand yields zero.
func computeAmount(qty, price string) decimal.Decimal {
	q, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(qty), ",", ""))
	if err != nil && strings.TrimSpace(qty) != "" {
		return decimal.Zero
	}
	p, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(price), ",", ""))
	if err != nil && strings.TrimSpace(price) != "" {
		return decimal.Zero
	}
	return q.Mul(p)
}

func (g Grid) remark(r int) string {
	n := r + 1
	if n >= g.Rows() {
		n = r
	}
	var parts []string
	for _, c := range remarkColsCurrent {
		if v := g.Cell(r, c); v != "" {
			parts = append(parts, v)
		}
	}
	for _, c := range remarkColsNext {
		if v := g.Cell(n, c); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// VendorC decodes a spreadsheet grid. Missing header cells abort the document; the printed amount column
// is ignored and recomputed from quantity and unit price.
func (d *Decoder) VendorC(g Grid, filename string) (*VendorCResult, error) {
	source := string(constants.SourceVendorC)
	if g.Rows() < minRowsC {
		return nil, common.StructuralError(source, fmt.Sprintf("grid has %d rows, header needs %d", g.Rows(), minRowsC), nil)
	}
	for _, h := range headerCellsC {
		if !g.Has(h.at[0], h.at[1]) {
			return nil, common.StructuralError(source, fmt.Sprintf("missing %s cell (%d,%d)", h.name, h.at[0], h.at[1]), nil)
		}
	}
	docID := g.Cell(cellDocumentID[0], cellDocumentID[1])
	if docID == "" {
		return nil, common.StructuralError(source, "missing document id", nil)
	}
	orderText := g.Cell(cellOrderText[0], cellOrderText[1])
	deliveryRaw := g.Cell(cellDeliveryDate[0], cellDeliveryDate[1])
	partner := strings.TrimSpace(g.Cell(cellPartnerHead[0], cellPartnerHead[1]) + " " + g.Cell(cellPartnerTail[0], cellPartnerTail[1]))

	res := &VendorCResult{DocumentID: docID}

	delivery, hasDelivery := parseDelivery(deliveryRaw)
	deliveryDate := ""
	if hasDelivery {
		deliveryDate = delivery.Format(constants.DateLayout)
	} else {
		d.logger.Warn("decode.vendor_c.delivery_unparsed", "file", filename, "value", deliveryRaw)
	}

	orderDate, notes := d.inferOrderDate(filename, orderText, delivery, hasDelivery)
	res.Notes = append(res.Notes, notes...)

	for r := itemStartRowC; r < g.Rows(); r++ {
		code := g.Cell(r, colCProductCode)
		name := g.Cell(r, colCProductName)
		qty := g.Cell(r, colCQuantity)
		if code == "" && name == "" && qty == "" {
			continue
		}
		price := g.Cell(r, colCUnitPrice)
		res.Records = append(res.Records, entity.RawLine{
			OrderID:      docID,
			OrderDate:    orderDate,
			DeliveryDate: deliveryDate,
			PartnerName:  partner,
			ProductCode:  code,
			ProductName:  name,
			Quantity:     qty,
			Unit:         g.Cell(r, colCUnit),
			UnitPrice:    price,
			Amount:       computeAmount(qty, price).String(),
			Remark:       g.remark(r),
			DataSource:   filename,
		})
	}

	d.logger.Info("decode.vendor_c.ok", "file", filename, "document_id", docID, "lines", len(res.Records), "warnings", len(res.Notes))
	return res, nil
}
