package decode

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/order-intake/constants"
	"github.com/joseph-ayodele/order-intake/internal/classify"
	"github.com/joseph-ayodele/order-intake/internal/common"
	"github.com/joseph-ayodele/order-intake/internal/entity"
)

// Vendor B block geometry.
const (
	BlockStride     = 27
	blockMinCells   = 54
	blockFirstItem  = 2 // offset of the first item row from the block's first row
	blockMaxItems   = 10
	vendorBStartRow = 1
	colBOrderID     = 0
	colBDateText    = 5
	colBPartner     = 7
	colBProductCode = 44
	colBProductName = 46
	colBQuantity    = 47
	colBUnit        = 48
	colBUnitPrice   = 51
	colBAmount      = 53
	colBRemark      = 55
)

var (
	reOrderDate    = regexp.MustCompile(`発注日:(\d{4}/\d{2}/\d{2})`)
	reDeliveryDate = regexp.MustCompile(`納品予定日:(\d{4}/\d{2}/\d{2})`)
)

func findDate(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// VendorB decodes a file of repeating fixed-height blocks. A block's item rows end at the first
// short row or blank product name. The scan always advances by BlockStride rows.
func (d *Decoder) VendorB(content []byte, filename string) (*VendorBResult, error) {
	text, enc, err := classify.DecodeFirst(content, classify.BlockEncodings)
	if err != nil {
		return nil, common.NewAppError(common.CodeEncodingDetection, filename, common.ErrEncodingDetection)
	}

	rows, err := readRows(text, true)
	if err != nil {
		return nil, common.StructuralError(string(constants.SourceVendorB), "csv", err)
	}

	res := &VendorBResult{Encoding: enc}
	for i := vendorBStartRow; i < len(rows); i += BlockStride {
		res.Blocks++
		main := rows[i]
		if len(main) < blockMinCells {
			res.SkippedBlocks++
			d.logger.Debug("decode.vendor_b.block_skipped", "file", filename, "row", i, "cells", len(main))
			continue
		}

		orderID := strings.TrimSpace(main[colBOrderID])
		dateText := main[colBDateText]
		orderDate := findDate(reOrderDate, dateText)
		deliveryDate := findDate(reDeliveryDate, dateText)
		partner := main[colBPartner]

		for j := 0; j < blockMaxItems; j++ {
			idx := i + blockFirstItem + j
			if idx >= len(rows) {
				break
			}
			row := rows[idx]
			if len(row) < blockMinCells || strings.TrimSpace(row[colBProductName]) == "" {
				break
			}
			res.Records = append(res.Records, entity.RawLine{
				OrderID:      orderID,
				OrderDate:    orderDate,
				DeliveryDate: deliveryDate,
				PartnerName:  partner,
				ProductCode:  strings.TrimSpace(row[colBProductCode]),
				ProductName:  strings.TrimSpace(row[colBProductName]),
				Quantity:     strings.TrimSpace(row[colBQuantity]),
				Unit:         strings.TrimSpace(row[colBUnit]),
				UnitPrice:    stripCurrency(row[colBUnitPrice]),
				Amount:       stripCurrency(row[colBAmount]),
				Remark:       strings.TrimSpace(cell(row, colBRemark)),
				DataSource:   filename,
				Confidence:   entity.Float(1.0),
			})
		}
	}

	d.logger.Info("decode.vendor_b.ok",
		"file", filename,
		"encoding", enc,
		"blocks", res.Blocks,
		"skipped_blocks", res.SkippedBlocks,
		"lines", len(res.Records),
	)
	return res, nil
}
