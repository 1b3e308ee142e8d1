package decode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockRow returns a 56-cell row with the given cells set.
func blockRow(cells map[int]string) string {
	row := make([]string, 56)
	for i, v := range cells {
		row[i] = v
	}
	return strings.Join(row, ",")
}

// vendorBBlock renders one 27-row block with the given product names as items.
func vendorBBlock(orderID string, products ...string) []string {
	lines := make([]string, BlockStride)
	lines[0] = blockRow(map[int]string{
		0: orderID,
		5: "発注日:2025/07/01 納品予定日:2025/07/05",
		7: "大阪フーズ",
	})
	lines[1] = blockRow(nil)
	for i, p := range products {
		lines[2+i] = blockRow(map[int]string{
			44: "C" + p,
			46: p,
			47: "3",
			48: "ケース",
			51: `"1,200円"`,
			53: `"3,600円"`,
			55: "冷蔵",
		})
	}
	return lines
}

func vendorBFile(blocks ...[]string) []byte {
	lines := []string{"伝票番号,x"}
	for _, b := range blocks {
		lines = append(lines, b...)
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

func TestVendorB_DecodesBlocks(t *testing.T) {
	content := vendorBFile(vendorBBlock("B1", "りんご", "みかん"), vendorBBlock("B2", "ぶどう"))

	res, err := New().VendorB(content, "b.csv")
	require.NoError(t, err)
	require.Len(t, res.Lines(), 3)
	assert.Equal(t, 2, res.Blocks)

	first := res.Lines()[0]
	assert.Equal(t, "B1", first.OrderID)
	assert.Equal(t, "2025/07/01", first.OrderDate)
	assert.Equal(t, "2025/07/05", first.DeliveryDate)
	assert.Equal(t, "大阪フーズ", first.PartnerName)
	assert.Equal(t, "りんご", first.ProductName)
	assert.Equal(t, "1200", first.UnitPrice)
	assert.Equal(t, "3600", first.Amount)
	assert.Equal(t, "冷蔵", first.Remark)
	require.NotNil(t, first.Confidence)
	assert.Equal(t, 1.0, *first.Confidence)

	assert.Equal(t, "B2", res.Lines()[2].OrderID)
}

func TestVendorB_Idempotent(t *testing.T) {
	content := vendorBFile(vendorBBlock("B1", "りんご", "みかん"), vendorBBlock("B2", "ぶどう"))
	d := New()
	first, err := d.VendorB(content, "b.csv")
	require.NoError(t, err)
	second, err := d.VendorB(content, "b.csv")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first.Lines(), 3)
}

func TestVendorB_StrideIgnoresItemCount(t *testing.T) {
	// blank lines inside a block must not shift the next block
	first := vendorBBlock("B1", "りんご")
	for i := 3; i < BlockStride; i++ {
		first[i] = ""
	}
	content := vendorBFile(first, vendorBBlock("B2", "ぶどう"))

	res, err := New().VendorB(content, "b.csv")
	require.NoError(t, err)
	require.Len(t, res.Lines(), 2)
	assert.Equal(t, "B2", res.Lines()[1].OrderID)
	assert.Equal(t, "ぶどう", res.Lines()[1].ProductName)
}

func TestVendorB_ShortBlockSkipped(t *testing.T) {
	broken := make([]string, BlockStride)
	broken[0] = "B0,too,short"
	content := vendorBFile(broken, vendorBBlock("B1", "りんご"))

	res, err := New().VendorB(content, "b.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, res.SkippedBlocks)
	require.Len(t, res.Lines(), 1)
	assert.Equal(t, "B1", res.Lines()[0].OrderID)
}

func TestVendorB_MissingDatesAreEmpty(t *testing.T) {
	block := vendorBBlock("B1", "りんご")
	block[0] = blockRow(map[int]string{0: "B1", 5: "備考のみ"})

	res, err := New().VendorB(vendorBFile(block), "b.csv")
	require.NoError(t, err)
	require.Len(t, res.Lines(), 1)
	assert.Empty(t, res.Lines()[0].OrderDate)
	assert.Empty(t, res.Lines()[0].DeliveryDate)
}

func TestVendorB_AtMostTenItems(t *testing.T) {
	names := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	res, err := New().VendorB(vendorBFile(vendorBBlock("B1", names...)), "b.csv")
	require.NoError(t, err)
	assert.Len(t, res.Lines(), 10)
}

func TestReadRows_KeepsBlankLines(t *testing.T) {
	rows, err := readRows("a,b\n\n\nc\n\"x\ny\",z\nw\n", true)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, []string{"a", "b"}, rows[0])
	assert.Empty(t, rows[1])
	assert.Empty(t, rows[2])
	assert.Equal(t, []string{"c"}, rows[3])
	assert.Equal(t, []string{"x\ny", "z"}, rows[4])
	assert.Equal(t, []string{"w"}, rows[5])
}
