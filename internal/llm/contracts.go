package llm

import (
	"context"

	"github.com/joseph-ayodele/order-intake/constants"
)

// OrderItem is one product line as the model reports it. Numbers stay text until normalization.
type OrderItem struct {
	ProductCode  string   `json:"product_code,omitempty"`
	ProductName  string   `json:"product_name,omitempty"`
	Size         string   `json:"size,omitempty"`
	Quantity     string   `json:"quantity,omitempty"`
	Unit         string   `json:"unit,omitempty"`
	UnitPrice    string   `json:"unit_price,omitempty"`
	Amount       string   `json:"amount,omitempty"`
	Remark       string   `json:"remark,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
	Alternatives []string `json:"alternatives,omitempty"`
	PrePrinted   bool     `json:"pre_printed,omitempty"` // name printed on the form, not handwritten
}

type QualityAssessment struct {
	OverallConfidence *float64 `json:"overall_confidence,omitempty"`
	Issues            []string `json:"issues,omitempty"`
}

// OrderDocument is the normalized shape we want from the model.
type OrderDocument struct {
	OrderID           string             `json:"order_id,omitempty"`
	OrderDate         string             `json:"order_date,omitempty"`
	DeliveryDate      string             `json:"delivery_date,omitempty"`
	PartnerName       string             `json:"partner_name,omitempty"`
	Items             []OrderItem        `json:"items"`
	QualityAssessment *QualityAssessment `json:"quality_assessment,omitempty"`
}

// Attachment is an image sent alongside the prompt.
type Attachment struct {
	Data     []byte
	MIMEType string
}

type ExtractRequest struct {
	Channel       constants.Channel
	Filename      string
	Text          string // extracted document text or the message body
	Images        []Attachment
	Sender        string // chat sender or customer name
	ReferenceDate string // YYYY/MM/DD
	LayoutHint    string // verdict of the deterministic layout pre-check

	PrepConfidence float64
}

// Completion is the raw model answer. Parsing is shared across providers.
type Completion struct {
	Content  string
	Model    string
	Provider string
}

// OrderExtractor is the interface the assisted decoder depends on.
type OrderExtractor interface {
	ExtractOrder(ctx context.Context, req ExtractRequest) (Completion, error)
}
