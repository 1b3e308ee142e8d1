package decode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/order-intake/internal/common"
)

type gridBuilder struct{ g Grid }

func newGridBuilder(rows int) *gridBuilder {
	return &gridBuilder{g: make(Grid, rows)}
}

func (b *gridBuilder) set(r, c int, v string) *gridBuilder {
	for len(b.g[r]) <= c {
		b.g[r] = append(b.g[r], "")
	}
	b.g[r][c] = v
	return b
}

func vendorCGrid(orderText, delivery string) *gridBuilder {
	return newGridBuilder(14).
		set(0, 52, "北部支店").
		set(4, 1, "伝票番号").
		set(5, 1, "M-100").
		set(3, 52, "(発注日 "+orderText+")").
		set(5, 9, delivery).
		set(5, 19, "第二倉庫")
}

func fixedClock() func() time.Time {
	return func() time.Time { return time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC) }
}

func TestVendorC_YearInference(t *testing.T) {
	cases := []struct {
		name      string
		fragment  string
		delivery  string
		want      string
		ambiguous bool
	}{
		{"same year", "07/18", "25/07/22", "2025/07/18", false},
		{"order after delivery moves back", "12/30", "25/07/22", "2024/12/30", true},
		{"december order for january delivery", "12/28", "25/01/05", "2024/12/28", false},
		{"far before delivery moves forward", "01/10", "25/12/20", "2026/01/10", true},
		{"no delivery anchors on clock year", "04/02", "", "2026/04/02", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := vendorCGrid(tc.fragment, tc.delivery).set(10, 7, "白菜").set(10, 23, "1").g
			res, err := New(WithClock(fixedClock())).VendorC(g, "c.xlsx")
			require.NoError(t, err)
			require.Len(t, res.Lines(), 1)
			assert.Equal(t, tc.want, res.Lines()[0].OrderDate)
			if tc.ambiguous {
				require.Len(t, res.Warnings(), 1)
				assert.Contains(t, res.Warnings()[0], common.CodeDateAmbiguous)
			} else {
				assert.Empty(t, res.Warnings())
			}
		})
	}
}

func TestVendorC_UnparseableOrderDateFallsBackToToday(t *testing.T) {
	g := vendorCGrid("??", "25/07/22").set(10, 7, "白菜").g
	res, err := New(WithClock(fixedClock())).VendorC(g, "c.xlsx")
	require.NoError(t, err)
	require.Len(t, res.Lines(), 1)
	assert.Equal(t, "2026/03/15", res.Lines()[0].OrderDate)
	assert.Equal(t, "2025/07/22", res.Lines()[0].DeliveryDate)
	require.Len(t, res.Warnings(), 1)
}

func TestVendorC_AmountIsRecomputed(t *testing.T) {
	g := vendorCGrid("07/18", "25/07/22").
		set(10, 5, "X-1").set(10, 7, "大根").set(10, 23, "3").set(10, 29, "150").
		set(10, 31, "99999"). // printed amount is not trusted
		set(12, 5, "X-2").set(12, 23, "abc").set(12, 29, "10").g

	res, err := New(WithClock(fixedClock())).VendorC(g, "c.xlsx")
	require.NoError(t, err)
	require.Len(t, res.Lines(), 2)
	assert.Equal(t, "450", res.Lines()[0].Amount)
	assert.Equal(t, "0", res.Lines()[1].Amount)
}

func TestVendorC_EligibilityAndRemark(t *testing.T) {
	g := vendorCGrid("07/18", "25/07/22").
		set(10, 5, "X-1").set(10, 17, "早朝").set(10, 55, "").
		set(11, 7, "続き").set(11, 65, "要冷蔵").
		set(13, 23, "2").g

	res, err := New(WithClock(fixedClock())).VendorC(g, "c.xlsx")
	require.NoError(t, err)
	// rows 10, 11 (name only) and 13 (quantity only) are eligible
	require.Len(t, res.Lines(), 3)

	first := res.Lines()[0]
	assert.Equal(t, "M-100", first.OrderID)
	assert.Equal(t, "北部支店 第二倉庫", first.PartnerName)
	assert.Equal(t, "早朝 続き 要冷蔵", first.Remark)
	assert.Empty(t, first.Size)

	// last row uses itself as the spill-over row
	assert.Equal(t, "2", res.Lines()[2].Quantity)
}

func TestVendorC_HeaderFailuresAreFatal(t *testing.T) {
	_, err := New().VendorC(newGridBuilder(4).g, "c.xlsx")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrStructuralParse)

	g := vendorCGrid("07/18", "25/07/22").set(5, 1, " ").g
	_, err = New().VendorC(g, "c.xlsx")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrStructuralParse)
	assert.Contains(t, err.Error(), "document id")

	// signature, id and delivery present but the sheet stops before column 52
	narrow := newGridBuilder(12).
		set(4, 1, "伝票番号").
		set(5, 1, "D-1").
		set(5, 9, "25/07/22").
		set(5, 29, "").g
	_, err = New(WithClock(fixedClock())).VendorC(narrow, "c.xlsx")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrStructuralParse)
	assert.Contains(t, err.Error(), "order date text cell (3,52)")
}

func TestGrid_Has(t *testing.T) {
	g := newGridBuilder(3).set(0, 4, "x").set(2, 1, "y").g
	assert.True(t, g.Has(2, 4), "short rows span the sheet width")
	assert.True(t, g.Has(1, 0))
	assert.False(t, g.Has(0, 5))
	assert.False(t, g.Has(3, 0))
	assert.False(t, g.Has(-1, 0))
	assert.Equal(t, 5, g.Width())
}

func TestVendorC_Idempotent(t *testing.T) {
	g := vendorCGrid("07/18", "25/07/22").set(10, 7, "白菜").set(10, 23, "1").set(10, 29, "80").g
	d := New(WithClock(fixedClock()))
	a, err := d.VendorC(g, "c.xlsx")
	require.NoError(t, err)
	b, err := d.VendorC(g, "c.xlsx")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestLoadGrid_AndSniff(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "B5", "伝票番号"))
	require.NoError(t, f.SetCellValue(sheet, "B6", "M-100"))
	require.NoError(t, f.SetCellValue(sheet, "A7", "x"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	g, err := LoadGrid(buf.Bytes())
	require.NoError(t, err)
	assert.True(t, SniffVendorC(g))
	assert.Equal(t, "M-100", g.Cell(5, 1))
	assert.Equal(t, "", g.Cell(50, 50))

	_, err = LoadGrid([]byte("not a workbook"))
	assert.Error(t, err)
}
