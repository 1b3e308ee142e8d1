package repository

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/order-intake/internal/entity"
)

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// hashFields is the ordered tuple the row hash covers.
func hashFields(l entity.OrderLine) []string {
	return []string{
		l.OrderID,
		l.OrderDate,
		l.DeliveryDate,
		l.PartnerName,
		l.ProductCode,
		l.ProductName,
		l.Size,
		formatNumber(l.Quantity),
		l.Unit,
		formatNumber(l.UnitPrice),
		formatNumber(l.Amount),
		l.Remark,
		l.DataSource,
	}
}

// RowHash is the sha256 over the canonical fields joined with "|", followed by the batch id.
func RowHash(l entity.OrderLine, batchID string) string {
	sum := sha256.Sum256([]byte(strings.Join(append(hashFields(l), batchID), "|")))
	return hex.EncodeToString(sum[:])
}
