package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/order-intake/constants"
)

func TestBuildSystemPrompt_PerChannel(t *testing.T) {
	doc := BuildSystemPrompt(constants.ChannelDocument)
	chat := BuildSystemPrompt(constants.ChannelChatImage)
	text := BuildSystemPrompt(constants.ChannelFreeText)

	assert.Contains(t, doc, "order forms")
	assert.Contains(t, chat, "chat messages")
	assert.Contains(t, text, "free-text")
	for _, p := range []string{doc, chat, text} {
		assert.Contains(t, p, "two separate items")
		assert.Contains(t, p, "Never output null")
	}
}

func TestBuildUserPrompt(t *testing.T) {
	got := BuildUserPrompt(ExtractRequest{
		Channel:       constants.ChannelDocument,
		Filename:      "scan.pdf",
		Text:          "キャベツ 10",
		ReferenceDate: "2025/07/01",
		LayoutHint:    "two-column",
		Images:        []Attachment{{Data: []byte{1}, MIMEType: "image/jpeg"}},
	})
	assert.Contains(t, got, "Filename: scan.pdf")
	assert.Contains(t, got, "Reference date: 2025/07/01")
	assert.Contains(t, got, "Layout pre-check: two-column")
	assert.Contains(t, got, "[image]")
	assert.True(t, strings.HasSuffix(got, "Extracted text:\nキャベツ 10"))

	got = BuildUserPrompt(ExtractRequest{Channel: constants.ChannelFreeText, Sender: "佐藤", Text: "明日 白菜 3ケース"})
	assert.Contains(t, got, "Customer: 佐藤")
	assert.Contains(t, got, "Message:\n明日 白菜 3ケース")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "あい", truncateRunes("あいう", 2))
	assert.Equal(t, "abc", truncateRunes("abc", 5))
}

func TestDataURL(t *testing.T) {
	assert.Equal(t, "data:image/png;base64,AQI=", DataURL(Attachment{Data: []byte{1, 2}, MIMEType: "image/png"}))
	assert.False(t, FitsVisionLimit(Attachment{}))
}
