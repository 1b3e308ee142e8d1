package decode

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/order-intake/constants"
	"github.com/joseph-ayodele/order-intake/internal/common"
	"github.com/joseph-ayodele/order-intake/internal/extract"
	"github.com/joseph-ayodele/order-intake/internal/llm"
)

type fakeModel struct {
	content string
	err     error
	got     []llm.ExtractRequest
}

func (f *fakeModel) ExtractOrder(_ context.Context, req llm.ExtractRequest) (llm.Completion, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	return llm.Completion{Content: f.content, Provider: "fake"}, nil
}

type fakeDocs struct {
	res   extract.Result
	err   error
	names []string
}

func (f *fakeDocs) Extract(_ context.Context, _ []byte, filename string) (extract.Result, error) {
	f.names = append(f.names, filename)
	return f.res, f.err
}

func TestAssistant_FreeText(t *testing.T) {
	model := &fakeModel{content: `{
		"order_date": "7/3",
		"delivery_date": "7月5日",
		"items": [
			{"product_name": "キャベツ", "quantity": "10", "unit": "玉", "confidence": 0.9},
			{"product_name": "トマト", "quantity": "", "unit": "箱"},
			{"quantity": "4"},
			{"product_name": "ねぎ", "quantity": "2", "pre_printed": true, "alternatives": ["ネギ"]}
		],
		"quality_assessment": {"overall_confidence": 0.6, "issues": ["row 2 unreadable"]}
	}`}
	a := NewAssistant(model, nil, WithClock(fixedClock()))

	res := a.FreeText(context.Background(), "山田商店", "キャベツ10玉、ねぎ2束お願いします", "2025/06/30")
	require.False(t, res.FellBack())
	assert.Equal(t, constants.ChannelFreeText, res.Channel)
	assert.Contains(t, res.Issues, "row 2 unreadable")
	require.Len(t, res.Records, 2)

	first := res.Records[0]
	assert.Equal(t, "2025/07/03", first.OrderDate)
	assert.Equal(t, "2025/07/05", first.DeliveryDate)
	assert.Equal(t, "山田商店", first.PartnerName)
	assert.Equal(t, "text:山田商店", first.DataSource)
	assert.Equal(t, "キャベツ", first.ProductName)
	require.NotNil(t, first.Confidence)
	assert.Equal(t, 0.9, *first.Confidence)

	second := res.Records[1]
	assert.Equal(t, "ねぎ", second.ProductName)
	assert.Equal(t, prePrintedNote, second.Remark)
	assert.Equal(t, []string{"ネギ"}, second.Alternatives)
	require.NotNil(t, second.Confidence)
	assert.Equal(t, 0.6, *second.Confidence)

	require.Len(t, model.got, 1)
	assert.Equal(t, "2025/06/30", model.got[0].ReferenceDate)
	assert.Equal(t, "山田商店", model.got[0].Sender)
}

func TestAssistant_MissingOrderDateUsesReferenceDate(t *testing.T) {
	model := &fakeModel{content: `{"partner_name": "丸八青果", "items": [{"product_name": "みかん", "quantity": "3"}]}`}
	a := NewAssistant(model, nil, WithClock(fixedClock()))

	res := a.FreeText(context.Background(), "佐藤", "みかん3箱", "")
	require.Len(t, res.Records, 1)
	assert.Equal(t, "2026/03/15", res.Records[0].OrderDate)
	assert.Equal(t, "丸八青果", res.Records[0].PartnerName)
	assert.NotNil(t, res.Records[0].Confidence)

	res = a.FreeText(context.Background(), "佐藤", "みかん3箱", "2025-1-9")
	assert.Equal(t, "2025/01/09", res.Records[0].OrderDate)
}

func TestAssistant_FallbackRecords(t *testing.T) {
	cases := []struct {
		name   string
		model  *fakeModel
		reason llm.FailureReason
	}{
		{"prose", &fakeModel{content: "申し訳ありませんが読み取れません"}, llm.ReasonInvalidJSON},
		{"empty", &fakeModel{content: "```json\n```"}, llm.ReasonEmpty},
		{"schema", &fakeModel{content: `{"items": [], "quality_assessment": {"note": "x"}}`}, llm.ReasonSchema},
		{"call", &fakeModel{err: errors.New("connection reset")}, llm.ReasonModelCall},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAssistant(tc.model, nil, WithClock(fixedClock()))
			res := a.FreeText(context.Background(), "佐藤", "トマト5", "2025/06/30")

			require.True(t, res.FellBack())
			assert.Equal(t, tc.reason, res.Failure.Reason)
			assert.ErrorIs(t, res.Failure, common.ErrModelResponseMalformed)
			require.Len(t, res.Records, 1)
			line := res.Records[0]
			assert.Equal(t, FallbackParseName, line.ProductName)
			assert.True(t, strings.HasPrefix(line.Remark, FallbackParseRemark))
			assert.Greater(t, len(line.Remark), len(FallbackParseRemark))
			assert.Equal(t, "text:佐藤", line.DataSource)
			assert.Equal(t, "2025/06/30", line.OrderDate)
			require.NotNil(t, line.Confidence)
			assert.Zero(t, *line.Confidence)
		})
	}
}

func TestAssistant_NoItems(t *testing.T) {
	a := NewAssistant(&fakeModel{content: `{"order_id": "X-9", "items": []}`}, nil, WithClock(fixedClock()))

	res := a.FreeText(context.Background(), "佐藤", "よろしく", "2025/06/30")
	require.False(t, res.FellBack())
	require.Len(t, res.Records, 1)
	assert.Equal(t, FallbackEmptyName, res.Records[0].ProductName)
	assert.Equal(t, FallbackEmptyRemark, res.Records[0].Remark)
	assert.Equal(t, "X-9", res.Records[0].OrderID)
}

func TestAssistant_EmptyMessageSkipsModel(t *testing.T) {
	model := &fakeModel{content: `{"items": []}`}
	res := NewAssistant(model, nil).FreeText(context.Background(), "", "   ", "2025/06/30")

	require.True(t, res.FellBack())
	assert.Equal(t, "text", res.Records[0].DataSource)
	assert.Empty(t, model.got)
}

func TestAssistant_DocumentTwoColumn(t *testing.T) {
	text := strings.Join([]string{
		layoutRow("りんご", "3", "みかん", "5"),
		layoutRow("キャベツ", "10", "トマト", "2"),
	}, "\n")
	docs := &fakeDocs{res: extract.Result{
		Text:       text,
		Method:     "pdf-text",
		Quality:    extract.TextQuality{Score: 0.9, Usable: true},
		Confidence: 0.85,
	}}
	model := &fakeModel{content: `{
		"order_id": "F-100",
		"order_date": "2025/06/01",
		"items": [
			{"product_name": "りんご    みかん", "quantity": "3 5", "unit": "箱", "amount": "900"},
			{"product_name": "キャベツ", "quantity": "10"},
			{"product_name": "トマト", "quantity": "2"}
		]
	}`}
	a := NewAssistant(model, docs, WithClock(fixedClock()))

	res := a.Document(context.Background(), []byte("%PDF-1.7"), "fax_0601.pdf", "2025/06/02")
	require.False(t, res.FellBack())
	assert.True(t, res.Layout.TwoColumn)
	assert.Equal(t, constants.BandHigh, res.Band())
	require.Len(t, res.Records, 4)

	assert.Equal(t, "りんご", res.Records[0].ProductName)
	assert.Equal(t, "3", res.Records[0].Quantity)
	assert.Equal(t, "箱", res.Records[0].Unit)
	assert.Empty(t, res.Records[0].Amount)
	assert.Equal(t, "みかん", res.Records[1].ProductName)
	assert.Equal(t, "5", res.Records[1].Quantity)
	for _, line := range res.Records {
		assert.Equal(t, "fax_0601.pdf", line.DataSource)
		assert.Equal(t, "F-100", line.OrderID)
		assert.Equal(t, "2025/06/01", line.OrderDate)
		require.NotNil(t, line.Confidence)
		assert.Equal(t, 0.85, *line.Confidence)
	}

	require.Len(t, model.got, 1)
	assert.Equal(t, text, model.got[0].Text)
	assert.Contains(t, model.got[0].LayoutHint, "two products per printed row")
	assert.Equal(t, []string{"fax_0601.pdf"}, docs.names)
}

func TestAssistant_DocumentExtractionFailure(t *testing.T) {
	model := &fakeModel{content: `{"items": []}`}
	docs := &fakeDocs{err: errors.New("pdftotext: exit status 1")}

	res := NewAssistant(model, docs, WithClock(fixedClock())).Document(context.Background(), []byte("x"), "scan.pdf", "")
	require.True(t, res.FellBack())
	assert.Equal(t, llm.ReasonExtraction, res.Failure.Reason)
	assert.Equal(t, "scan.pdf", res.Records[0].DataSource)
	assert.Equal(t, "2026/03/15", res.Records[0].OrderDate)
	assert.Empty(t, model.got)

	res = NewAssistant(model, nil).Document(context.Background(), []byte("x"), "scan.pdf", "")
	assert.Equal(t, llm.ReasonExtraction, res.Failure.Reason)
}

func TestAssistant_ChatImage(t *testing.T) {
	docs := &fakeDocs{res: extract.Result{
		Method:     "image",
		Images:     []extract.Image{{Data: []byte{0xff, 0xd8}, MIMEType: "image/jpeg", Quality: 0.4}, {}},
		Confidence: 0.4,
	}}
	model := &fakeModel{content: `{"partner_name": "", "items": [{"product_name": "豆腐", "quantity": "4", "unit": "丁"}]}`}
	a := NewAssistant(model, docs, WithClock(fixedClock()))

	res := a.ChatImage(context.Background(), []byte{0xff, 0xd8}, "田中", "いつもの", "2025/06/30")
	require.False(t, res.FellBack())
	assert.Equal(t, constants.BandLow, res.Band())
	require.Len(t, res.Records, 1)
	assert.Equal(t, "田中", res.Records[0].PartnerName)
	assert.Equal(t, "chat:田中", res.Records[0].DataSource)

	require.Len(t, model.got, 1)
	assert.Len(t, model.got[0].Images, 1)
	assert.Equal(t, "いつもの", model.got[0].Text)
	assert.Equal(t, constants.ChannelChatImage, model.got[0].Channel)
}

func TestCompleteDate(t *testing.T) {
	cases := map[string]string{
		"7/3":        "2025/07/03",
		"12／28":      "2025/12/28",
		"1月9日":       "2025/01/09",
		"2024/12/30": "2024/12/30",
		"  ":         "",
		"来週":         "来週",
	}
	for in, want := range cases {
		assert.Equal(t, want, completeDate(in, "2025"), in)
	}
}

func TestSplitMergedItems(t *testing.T) {
	items := []llm.OrderItem{
		{ProductName: "りんご　　みかん", Quantity: "3・5", UnitPrice: "100/200", Amount: "300/1000"},
		{ProductName: "りんご    みかん", Quantity: "3"},
		{ProductName: "白菜 1/2カット", Quantity: "4"},
	}
	out := splitMergedItems(items)
	require.Len(t, out, 4)
	assert.Equal(t, llm.OrderItem{ProductName: "りんご", Quantity: "3", UnitPrice: "100", Amount: "300"}, out[0])
	assert.Equal(t, llm.OrderItem{ProductName: "みかん", Quantity: "5", UnitPrice: "200", Amount: "1000"}, out[1])
	assert.Equal(t, items[1], out[2])
	assert.Equal(t, items[2], out[3])
}
