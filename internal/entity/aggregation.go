package entity

// AggregationRow is one purchasing-report group. Derived on demand, never persisted.
type AggregationRow struct {
	ProductName string  `json:"product_name"`
	Size        string  `json:"size"`
	Remark      string  `json:"remark"`
	Unit        string  `json:"unit"`
	QuantitySum float64 `json:"quantity_sum"`
}
