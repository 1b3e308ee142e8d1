package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeModelJSON_SynonymPrecedence(t *testing.T) {
	raw := []byte(`{
		"注文日": "2025/07/02", "発注日": "2025/07/01",
		"注文番号": "N-9", "伝票番号": "D-1",
		"明細": [{"品名": "白菜", "商品名": "キャベツ", "数量": 3, "色": "緑"}]
	}`)

	for range 20 {
		out, dropped, err := NormalizeModelJSON(raw, nil)
		require.NoError(t, err)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(out, &doc))
		assert.Equal(t, "2025/07/01", doc["order_date"])
		assert.Equal(t, "D-1", doc["order_id"])

		items := doc["items"].([]any)
		require.Len(t, items, 1)
		item := items[0].(map[string]any)
		assert.Equal(t, "キャベツ", item["product_name"])
		assert.Equal(t, "3", item["quantity"])
		assert.NotContains(t, item, "色")

		assert.Equal(t, []string{
			"伝票番号->order_id", "注文番号->order_id", "発注日->order_date", "注文日->order_date", "明細->items",
			"items[0].商品名->product_name", "items[0].品名->product_name", "items[0].数量->quantity",
			"items[0].色(unknown)",
		}, dropped)
	}
}
