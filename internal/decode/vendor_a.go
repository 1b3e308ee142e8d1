package decode

import (
	"strings"

	"github.com/joseph-ayodele/order-intake/constants"
	"github.com/joseph-ayodele/order-intake/internal/classify"
	"github.com/joseph-ayodele/order-intake/internal/common"
	"github.com/joseph-ayodele/order-intake/internal/entity"
)

// FooterMarkerVendorA ends the item section of a Vendor A file.
const FooterMarkerVendorA = "F"

// Vendor A header literals.
const (
	headerOrderID      = "［伝票No］"
	headerOrderDate    = "［発注日］"
	headerDeliveryDate = "［納品日］"
	headerPartnerName  = "［取引先名］"
	headerProductCode  = "［自社管理商品コード］"
	headerProductName  = "［商品名］"
	headerQuantity     = "［数量］"
	headerUnit         = "［単位］"
	headerUnitPrice    = "［単価］"
	headerAmount       = "［金額］"
	headerSpec         = "［規格］" // carried as remark
)

type vendorAColumns struct {
	orderID, orderDate, deliveryDate, partnerName, productCode, productName int
	quantity, unit, unitPrice, amount, remark                               int
	max                                                                     int
}

func resolveVendorAColumns(header []string) (vendorAColumns, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	var cols vendorAColumns
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{headerOrderID, &cols.orderID},
		{headerOrderDate, &cols.orderDate},
		{headerDeliveryDate, &cols.deliveryDate},
		{headerPartnerName, &cols.partnerName},
		{headerProductCode, &cols.productCode},
		{headerProductName, &cols.productName},
		{headerQuantity, &cols.quantity},
		{headerUnit, &cols.unit},
		{headerUnitPrice, &cols.unitPrice},
		{headerAmount, &cols.amount},
		{headerSpec, &cols.remark},
	} {
		i, ok := index[f.name]
		if !ok {
			return cols, common.StructuralError(string(constants.SourceVendorA), "missing header "+f.name, nil)
		}
		*f.dst = i
		cols.max = max(cols.max, i)
	}
	return cols, nil
}

// VendorA decodes a header-named column file. The first physical line is the signature preamble,
// the second is the header. Decoding stops at the footer marker.
func (d *Decoder) VendorA(content []byte, filename string, enc classify.Encoding) (*VendorAResult, error) {
	var (
		text string
		err  error
	)
	if enc == "" {
		text, enc, err = classify.DecodeFirst(content, classify.DefaultEncodings)
	} else {
		text, err = classify.Decode(content, enc)
	}
	if err != nil {
		return nil, common.NewAppError(common.CodeEncodingDetection, filename, common.ErrEncodingDetection)
	}

	rows, err := readRows(dropFirstLine(text), false)
	if err != nil {
		return nil, common.StructuralError(string(constants.SourceVendorA), "csv", err)
	}
	if len(rows) == 0 {
		return nil, common.StructuralError(string(constants.SourceVendorA), "missing header row", nil)
	}

	cols, err := resolveVendorAColumns(rows[0])
	if err != nil {
		return nil, err
	}

	res := &VendorAResult{Encoding: enc}
	for _, row := range rows[1:] {
		if len(row) > 0 && strings.TrimSpace(row[0]) == FooterMarkerVendorA {
			break
		}
		if len(row) <= cols.max {
			continue
		}
		res.Records = append(res.Records, entity.RawLine{
			OrderID:      row[cols.orderID],
			OrderDate:    row[cols.orderDate],
			DeliveryDate: row[cols.deliveryDate],
			PartnerName:  row[cols.partnerName],
			ProductCode:  row[cols.productCode],
			ProductName:  row[cols.productName],
			Quantity:     row[cols.quantity],
			Unit:         row[cols.unit],
			UnitPrice:    row[cols.unitPrice],
			Amount:       row[cols.amount],
			Remark:       row[cols.remark],
			DataSource:   filename,
		})
	}

	d.logger.Info("decode.vendor_a.ok", "file", filename, "encoding", enc, "lines", len(res.Records))
	return res, nil
}
