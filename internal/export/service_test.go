package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/order-intake/internal/entity"
)

func lines() []entity.OrderLine {
	return []entity.OrderLine{
		{OrderID: "2", OrderDate: "2025/07/02", ProductName: "トマト", Quantity: 5, Unit: "箱", DataSource: "b.csv"},
		{OrderID: "1", OrderDate: "2025/07/01", ProductName: "キャベツ", Quantity: 10, Unit: "玉", DataSource: "a.csv",
			Confidence: entity.Float(0.4)},
		{OrderID: "3", OrderDate: "2025/07/01", ProductName: "キャベツ", Quantity: 2.5, Unit: "玉", DataSource: "c.csv"},
	}
}

func open(t *testing.T, b []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestService_Workbook(t *testing.T) {
	s := NewService(nil, time.UTC, nil)

	b, err := s.Workbook(context.Background(), lines(), "")
	require.NoError(t, err)
	f := open(t, b)
	assert.Equal(t, []string{SheetLines, SheetSorted, SheetSummary}, f.GetSheetList())

	rows, err := f.GetRows(SheetLines)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"伝票番号", "発注日", "納品日", "取引先名", "商品コード", "商品名", "サイズ", "数量", "単位", "単価", "金額", "備考", "データ元"}, rows[0])
	assert.Equal(t, "トマト", rows[1][5])

	sorted, err := f.GetRows(SheetSorted)
	require.NoError(t, err)
	require.Len(t, sorted, 4)
	assert.Equal(t, "キャベツ", sorted[1][5])
	assert.Equal(t, "キャベツ", sorted[2][5])
	assert.Equal(t, "トマト", sorted[3][5])

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, summaryHeaders, summary[0])
	assert.Equal(t, "キャベツ", summary[1][0])
	assert.Equal(t, "12.5", summary[1][3])
	assert.Equal(t, "玉", summary[1][4])
	assert.Equal(t, "5", summary[2][3])
}

func TestService_WorkbookEmpty(t *testing.T) {
	b, err := NewService(nil, time.UTC, nil).Workbook(context.Background(), nil, "")
	require.NoError(t, err)
	rows, err := open(t, b).GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestService_WorkbookAccountLayout(t *testing.T) {
	layouts, err := ParseLayout([]byte(`
accounts:
  shop-a:
    - field: product_name
      label: 品名
    - field: quantity
    - field: band
`))
	require.NoError(t, err)
	s := NewService(layouts, time.UTC, nil)

	b, err := s.Workbook(context.Background(), lines(), "shop-a")
	require.NoError(t, err)
	rows, err := open(t, b).GetRows(SheetLines)
	require.NoError(t, err)
	assert.Equal(t, []string{"品名", "数量", "判定"}, rows[0])
	assert.Equal(t, []string{"キャベツ", "10", "LOW"}, rows[2])

	// other accounts keep the default set
	assert.Len(t, layouts.For("shop-b"), 13)
}

func TestLoadLayout(t *testing.T) {
	l, err := LoadLayout("")
	require.NoError(t, err)
	assert.Equal(t, DefaultColumns(), l.For("any"))

	path := filepath.Join(t.TempDir(), "layout.yaml")
	require.NoError(t, os.WriteFile(path, []byte("columns:\n  - field: order_id\n    width: 30\n"), 0o644))
	l, err = LoadLayout(path)
	require.NoError(t, err)
	assert.Equal(t, []Column{{Field: "order_id", Label: "伝票番号", Width: 30}}, l.For(""))

	_, err = ParseLayout([]byte("columns:\n  - field: price\n"))
	assert.ErrorContains(t, err, `unknown field "price"`)

	_, err = LoadLayout(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	ts := time.Date(2025, 7, 22, 0, 15, 0, 0, time.UTC)
	assert.Equal(t, "250722_0915.xlsx", FileName(ts, jst))
	assert.Equal(t, "250722_0015.xlsx", FileName(ts, nil))

	s := NewService(nil, jst, nil)
	s.now = func() time.Time { return ts }
	assert.Equal(t, "250722_0915.xlsx", s.FileName())
}
