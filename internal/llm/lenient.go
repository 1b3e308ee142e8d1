package llm

import (
	"encoding/json"
	"fmt"
)

// SanitizeOptionalFields removes optional fields that don't meet the schema,
// so the overall document can still validate. Text fields are never touched.
func SanitizeOptionalFields(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	var dropped []string

	if qa, ok := m["quality_assessment"]; ok {
		obj, isObj := qa.(map[string]any)
		if !isObj {
			delete(m, "quality_assessment")
			dropped = append(dropped, "quality_assessment")
		} else {
			if !validConfidence(obj["overall_confidence"]) {
				delete(obj, "overall_confidence")
				dropped = append(dropped, "quality_assessment.overall_confidence")
			}
			if v, ok := obj["issues"]; ok {
				obj["issues"] = onlyStrings(v)
			}
		}
	}

	items, _ := m["items"].([]any)
	for i, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := obj["confidence"]; ok && !validConfidence(v) {
			delete(obj, "confidence")
			dropped = append(dropped, fmt.Sprintf("items[%d].confidence", i))
		}
		if v, ok := obj["alternatives"]; ok {
			obj["alternatives"] = onlyStrings(v)
		}
		if v, ok := obj["pre_printed"]; ok {
			if _, isBool := v.(bool); !isBool {
				delete(obj, "pre_printed")
				dropped = append(dropped, fmt.Sprintf("items[%d].pre_printed", i))
			}
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, nil, err
	}
	return b, dropped, nil
}

func validConfidence(v any) bool {
	f, ok := v.(float64)
	return ok && f >= 0 && f <= 1
}

func onlyStrings(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, x := range list {
		if s, ok := x.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
