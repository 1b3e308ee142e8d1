package llm

import (
	"strings"

	"github.com/joseph-ayodele/order-intake/constants"
)

const maxPromptTextRunes = 6000

// BuildSystemPrompt composes the channel-specific instruction with the output contract.
func BuildSystemPrompt(channel constants.Channel) string {
	var source string
	switch channel {
	case constants.ChannelChatImage:
		source = "You read photographed chat messages and screenshots in which a customer places a purchase order."
	case constants.ChannelFreeText:
		source = "You read free-text messages in which a customer places a purchase order."
	default:
		source = "You read Japanese purchase/delivery order forms. Many are scanned and partly handwritten."
	}

	parts := []string{
		source,
		"Return ONLY JSON that matches the provided JSON Schema.",
		"Top-level keys: order_id, order_date, delivery_date, partner_name, items, quality_assessment.",
		"Each item has product_code, product_name, size, quantity, unit, unit_price, amount, remark, confidence, alternatives, pre_printed.",
		"Write dates as YYYY/MM/DD. If the year is not written, write MM/DD and do not guess it.",
		"Write quantity, unit_price and amount as plain numbers without currency symbols or separators.",
		"Copy Japanese product names and units exactly as written (e.g. ケース, 箱, 玉, kg).",

		// layout handling
		"Some forms print two products side by side in one physical row. Always output them as two separate items; never merge them.",
		"Set pre_printed to true when the product name is printed on the form rather than handwritten, and mention it in remark.",

		// confidence
		"Give each item a confidence between 0 and 1. When a reading is uncertain, list other plausible readings in alternatives.",
		"Summarize overall legibility in quality_assessment.overall_confidence and list concrete problems in quality_assessment.issues.",

		// formatting hygiene
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt renders the request context and the extracted or submitted text.
func BuildUserPrompt(req ExtractRequest) string {
	var b strings.Builder
	switch req.Channel {
	case constants.ChannelChatImage:
		b.WriteString("Sender: " + req.Sender + "\n")
	case constants.ChannelFreeText:
		b.WriteString("Customer: " + req.Sender + "\n")
	default:
		b.WriteString("Filename: " + req.Filename + "\n")
	}
	if req.ReferenceDate != "" {
		b.WriteString("Reference date: " + req.ReferenceDate + "\n")
	}
	if req.LayoutHint != "" {
		b.WriteString("Layout pre-check: " + req.LayoutHint + "\n")
	}
	if len(req.Images) > 0 {
		b.WriteString("Attached images: ")
		b.WriteString(strings.Repeat("[image] ", len(req.Images)))
		b.WriteString("\n")
	}

	text := strings.TrimSpace(req.Text)
	if text != "" {
		switch req.Channel {
		case constants.ChannelDocument:
			b.WriteString("\nExtracted text:\n")
		default:
			b.WriteString("\nMessage:\n")
		}
		b.WriteString(truncateRunes(text, maxPromptTextRunes))
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
