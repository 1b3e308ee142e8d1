package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-intake/internal/entity"
)

func TestDate(t *testing.T) {
	cases := map[string]string{
		"2025/7/3":            "2025/07/03",
		"2025/07/03":          "2025/07/03",
		"2025-07-03":          "2025/07/03",
		"２０２５／０７／０３":          "2025/07/03",
		"2025年7月3日":           "2025/07/03",
		"20250703":            "2025/07/03",
		"2025-07-03 10:30:00": "2025/07/03",
		"":                    "",
		"来週月曜":                "",
		"2025/13/40":          "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Date(in), in)
	}
}

func TestNumber(t *testing.T) {
	cases := map[string]float64{
		"10":      10,
		" 1,200 ": 1200,
		"¥3,000":  3000,
		"450円":    450,
		"１２":      12,
		"0.5":     0.5,
		"-2":      -2,
		"":        0,
		"十":       0,
		"10玉":     0,
		"1.2.3":   0,
	}
	for in, want := range cases {
		assert.Equal(t, want, Number(in), in)
	}
}

func TestLine(t *testing.T) {
	c := 1.4
	l := Line(entity.RawLine{
		OrderID:    " A-1 ",
		OrderDate:  "2025/7/3",
		Quantity:   "abc",
		UnitPrice:  "120",
		Amount:     "1,200",
		DataSource: "a.csv",
		Confidence: &c,
	})
	assert.Equal(t, "A-1", l.OrderID)
	assert.Equal(t, "2025/07/03", l.OrderDate)
	assert.Equal(t, "", l.DeliveryDate)
	assert.Zero(t, l.Quantity)
	assert.Equal(t, 120.0, l.UnitPrice)
	assert.Equal(t, 1200.0, l.Amount)
	require.NotNil(t, l.Confidence)
	assert.Equal(t, 1.0, *l.Confidence)
	assert.Equal(t, 1.4, c)
}

func TestLines_DropsRowsWithoutNameOrRemark(t *testing.T) {
	lines, dropped := Lines([]entity.RawLine{
		{ProductName: "キャベツ", Quantity: "3"},
		{ProductCode: "X1", Quantity: "5"},
		{Remark: "午前着"},
		{ProductName: "  ", Remark: " "},
	})
	assert.Equal(t, 2, dropped)
	require.Len(t, lines, 2)
	assert.Equal(t, "キャベツ", lines[0].ProductName)
	assert.Equal(t, 3.0, lines[0].Quantity)
	assert.Equal(t, "午前着", lines[1].Remark)
	assert.Nil(t, lines[1].Confidence)
}
