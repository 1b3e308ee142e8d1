package aggregate

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-intake/internal/entity"
)

func workingSet() []entity.OrderLine {
	return []entity.OrderLine{
		{ProductName: "トマト", Unit: "箱", Quantity: 2, DeliveryDate: "2025/07/05", OrderDate: "2025/07/01"},
		{ProductName: "キャベツ", Unit: "玉", Quantity: 10, DeliveryDate: "", OrderDate: "2025/07/01"},
		{ProductName: "キャベツ", Unit: "玉", Quantity: 0.1, DeliveryDate: "2025/07/03", OrderDate: "2025/07/02"},
		{ProductName: "キャベツ", Unit: "玉", Quantity: 0.2, DeliveryDate: "2025/07/03", OrderDate: ""},
		{ProductName: "キャベツ", Unit: "玉", Remark: "要冷蔵", Quantity: 4, DeliveryDate: "2025/07/02"},
		{ProductName: "トマト", Unit: "箱", Quantity: 3, DeliveryDate: "2025/07/04"},
		{ProductName: "トマト", Unit: "kg", Size: "L", Quantity: 1.5},
	}
}

func TestSortLines(t *testing.T) {
	in := workingSet()
	out := SortLines(in)
	require.Len(t, out, len(in))

	type key struct{ name, delivery, order string }
	got := make([]key, len(out))
	for i, l := range out {
		got[i] = key{l.ProductName, l.DeliveryDate, l.OrderDate}
	}
	assert.Equal(t, []key{
		{"キャベツ", "2025/07/02", ""},
		{"キャベツ", "2025/07/03", "2025/07/02"},
		{"キャベツ", "2025/07/03", ""},
		{"キャベツ", "", "2025/07/01"},
		{"トマト", "2025/07/04", ""},
		{"トマト", "2025/07/05", "2025/07/01"},
		{"トマト", "", ""},
	}, got)

	// input untouched
	assert.Equal(t, "トマト", in[0].ProductName)
}

func TestSummarize(t *testing.T) {
	rows := Summarize(workingSet())
	assert.Equal(t, []entity.AggregationRow{
		{ProductName: "キャベツ", Unit: "玉", QuantitySum: 10.3},
		{ProductName: "キャベツ", Unit: "玉", Remark: "要冷蔵", QuantitySum: 4},
		{ProductName: "トマト", Unit: "箱", QuantitySum: 5},
		{ProductName: "トマト", Unit: "kg", Size: "L", QuantitySum: 1.5},
	}, rows)
}

func TestSummarize_PermutationInvariant(t *testing.T) {
	base := workingSet()
	want := Summarize(base)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		perm := append([]entity.OrderLine(nil), base...)
		rng.Shuffle(len(perm), func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })
		assert.Equal(t, want, Summarize(perm))
	}
}

func TestSummarize_Empty(t *testing.T) {
	assert.Empty(t, Summarize(nil))
}
