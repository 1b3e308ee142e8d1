package llm

import (
	"encoding/base64"
	"encoding/json"

	"github.com/joseph-ayodele/order-intake/constants"
)

// DataURL encodes an attachment for providers that take inline images as URLs.
func DataURL(a Attachment) string {
	mt := a.MIMEType
	if mt == "" {
		mt = "application/octet-stream"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// FitsVisionLimit reports whether an attachment is small enough to send.
func FitsVisionLimit(a Attachment) bool {
	return len(a.Data) > 0 && len(a.Data) <= constants.MaxVisionMBDefault*1024*1024
}

// MustJSON renders v as indented JSON, or "" if it cannot be encoded.
func MustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
