package llm

// BuildOrderJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// We send it to the model as a formatting constraint and also use it locally to validate.
func BuildOrderJSONSchema() map[string]any {
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"product_code": stringProp(),
			"product_name": stringProp(),
			"size":         stringProp(),
			"quantity":     stringProp(),
			"unit":         stringProp(),
			"unit_price":   stringProp(),
			"amount":       stringProp(),
			"remark":       stringProp(),
			"confidence":   confidenceProp(),
			"alternatives": map[string]any{"type": "array", "items": stringProp()},
			"pre_printed":  map[string]any{"type": "boolean"},
		},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"order_id":      stringProp(),
			"order_date":    stringProp(),
			"delivery_date": stringProp(),
			"partner_name":  stringProp(),
			"items":         map[string]any{"type": "array", "items": item},
			"quality_assessment": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"overall_confidence": confidenceProp(),
					"issues":             map[string]any{"type": "array", "items": stringProp()},
				},
			},
		},
	}
}

func stringProp() map[string]any {
	return map[string]any{"type": "string"}
}

func confidenceProp() map[string]any {
	return map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0}
}
