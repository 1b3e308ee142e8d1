package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// synonym maps a Japanese model key onto a canonical key. Earlier entries win when a model answer
// carries two keys for the same field.
type synonym struct{ from, to string }

var (
	documentSynonyms = []synonym{
		{"伝票番号", "order_id"},
		{"注文番号", "order_id"},
		{"発注日", "order_date"},
		{"注文日", "order_date"},
		{"納品日", "delivery_date"},
		{"納品予定日", "delivery_date"},
		{"取引先名", "partner_name"},
		{"取引先", "partner_name"},
		{"得意先", "partner_name"},
		{"商品", "items"},
		{"明細", "items"},
	}
	itemSynonyms = []synonym{
		{"商品コード", "product_code"},
		{"商品名", "product_name"},
		{"品名", "product_name"},
		{"サイズ", "size"},
		{"規格", "size"},
		{"数量", "quantity"},
		{"単位", "unit"},
		{"単価", "unit_price"},
		{"金額", "amount"},
		{"備考", "remark"},
		{"信頼度", "confidence"},
	}

	documentKeys = set("order_id", "order_date", "delivery_date", "partner_name", "items", "quality_assessment")
	itemKeys     = set("product_code", "product_name", "size", "quantity", "unit", "unit_price", "amount", "remark",
		"confidence", "alternatives", "pre_printed")
	itemTextKeys     = []string{"product_code", "product_name", "size", "quantity", "unit", "unit_price", "amount", "remark"}
	documentTextKeys = []string{"order_id", "order_date", "delivery_date", "partner_name"}
)

func set(keys ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}

// NormalizeModelJSON
// - Renames Japanese keys to the canonical keys
// - Coerces numbers to strings for text fields
// - Drops null values and unknown keys
func NormalizeModelJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var dropped []string
	rename(m, documentSynonyms, "", &dropped)
	coerceText(m, documentTextKeys, "", &dropped)
	dropUnknown(m, documentKeys, "", &dropped)

	if rawItems, ok := m["items"]; ok {
		list, isList := rawItems.([]any)
		if !isList {
			delete(m, "items")
			dropped = append(dropped, "items(type)")
		}
		items := make([]any, 0, len(list))
		for i, it := range list {
			obj, ok := it.(map[string]any)
			if !ok {
				dropped = append(dropped, fmt.Sprintf("items[%d](type)", i))
				continue
			}
			prefix := fmt.Sprintf("items[%d].", i)
			rename(obj, itemSynonyms, prefix, &dropped)
			coerceText(obj, itemTextKeys, prefix, &dropped)
			dropUnknown(obj, itemKeys, prefix, &dropped)
			items = append(items, obj)
		}
		if isList {
			m["items"] = items
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Debug("llm.extract.normalize", "dropped", dropped)
	}
	return out, dropped, nil
}

func rename(m map[string]any, synonyms []synonym, prefix string, dropped *[]string) {
	for _, syn := range synonyms {
		from, to := syn.from, syn.to
		v, ok := m[from]
		if !ok {
			continue
		}
		// don't overwrite existing value if already present
		if _, exists := m[to]; !exists {
			m[to] = v
		}
		delete(m, from)
		*dropped = append(*dropped, prefix+from+"->"+to)
	}
}

func coerceText(m map[string]any, keys []string, prefix string, dropped *[]string) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			m[k] = strings.TrimSpace(t)
		case float64:
			m[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case nil:
			delete(m, k)
		default:
			// unexpected type -> drop
			delete(m, k)
			*dropped = append(*dropped, prefix+k+"(type)")
		}
	}
}

func dropUnknown(m map[string]any, allowed map[string]struct{}, prefix string, dropped *[]string) {
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			*dropped = append(*dropped, prefix+k+"(unknown)")
		}
	}
}
