package entity

import "github.com/joseph-ayodele/order-intake/constants"

// RawLine is one line record as a decoder read it. Numeric and date fields keep their source text;
// the normalizer owns coercion into OrderLine.
type RawLine struct {
	OrderID      string
	OrderDate    string
	DeliveryDate string
	PartnerName  string
	ProductCode  string
	ProductName  string
	Size         string
	Quantity     string
	Unit         string
	UnitPrice    string
	Amount       string
	Remark       string
	DataSource   string
	Confidence   *float64
	Alternatives []string
}

// OrderLine is the canonical order-line record shared by every decoder.
type OrderLine struct {
	OrderID      string   `json:"order_id"`
	OrderDate    string   `json:"order_date"`    // YYYY/MM/DD or ""
	DeliveryDate string   `json:"delivery_date"` // YYYY/MM/DD or ""
	PartnerName  string   `json:"partner_name"`
	ProductCode  string   `json:"product_code"`
	ProductName  string   `json:"product_name"`
	Size         string   `json:"size"`
	Quantity     float64  `json:"quantity"`
	Unit         string   `json:"unit"`
	UnitPrice    float64  `json:"unit_price"`
	Amount       float64  `json:"amount"`
	Remark       string   `json:"remark"`
	DataSource   string   `json:"data_source"`
	Confidence   *float64 `json:"confidence,omitempty"`
	Alternatives []string `json:"alternatives,omitempty"`
}

// Band returns the triage band, or "" when the record carries no confidence.
func (l OrderLine) Band() constants.ConfidenceBand {
	if l.Confidence == nil {
		return ""
	}
	return constants.BandFor(*l.Confidence)
}

// NeedsReview reports a low-confidence extraction.
func (l OrderLine) NeedsReview() bool {
	return l.Confidence != nil && *l.Confidence < constants.MediumConfidenceThreshold
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
