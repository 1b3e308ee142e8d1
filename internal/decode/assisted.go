package decode

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/order-intake/constants"
	"github.com/joseph-ayodele/order-intake/internal/entity"
	"github.com/joseph-ayodele/order-intake/internal/extract"
	"github.com/joseph-ayodele/order-intake/internal/llm"
)

// Diagnostic records emitted in place of items.
const (
	FallbackParseName   = "解析エラー"
	FallbackParseRemark = "AI解析に失敗しました: "
	FallbackEmptyName   = "商品情報なし"
	FallbackEmptyRemark = "商品情報を抽出できませんでした"

	prePrintedNote = "品名印字"
	chatImageName  = "chat_image.jpg"
)

var (
	reMonthDaySlash = regexp.MustCompile(`^(\d{1,2})\s*[/／]\s*(\d{1,2})$`)
	reMonthDayKanji = regexp.MustCompile(`^(\d{1,2})\s*月\s*(\d{1,2})\s*日$`)
	reWideGap       = regexp.MustCompile(`[ \t\x{3000}]{3,}|\x{3000}{2,}`)
	reListSep       = regexp.MustCompile(`[\s\x{3000}/／・,、]+`)

	errNoDocumentExtractor = errors.New("no document extractor configured")
)

// DocumentExtractor prepares text and images from PDFs and photos. *extract.Extractor implements it.
type DocumentExtractor interface {
	Extract(ctx context.Context, content []byte, filename string) (extract.Result, error)
}

// Assistant decodes unstructured submissions with a language model.
// It never returns an error: malformed answers and failed calls become diagnostic records.
type Assistant struct {
	dec   *Decoder
	model llm.OrderExtractor
	docs  DocumentExtractor
}

// NewAssistant builds the AI-assisted decoder. docs may be nil when only messages are decoded.
func NewAssistant(model llm.OrderExtractor, docs DocumentExtractor, opts ...Option) *Assistant {
	return &Assistant{dec: New(opts...), model: model, docs: docs}
}

type assistedCall struct {
	req        llm.ExtractRequest
	dataSource string
	partner    string // used when the model reports no partner
	confidence float64
	layout     LayoutVerdict
	issues     []string
}

// Document decodes a scanned or handwritten order form (PDF or image).
func (a *Assistant) Document(ctx context.Context, content []byte, filename, referenceDate string) *AssistedResult {
	ref := a.referenceDate(referenceDate)
	call := assistedCall{
		req: llm.ExtractRequest{
			Channel:       constants.ChannelDocument,
			Filename:      filename,
			ReferenceDate: ref,
		},
		dataSource: filename,
	}
	if a.docs == nil {
		return a.fallback(call, llm.ExtractionFailed(errNoDocumentExtractor))
	}
	res, err := a.docs.Extract(ctx, content, filename)
	if err != nil {
		a.dec.logger.Warn("decode.assisted.extract_failed", "file", filename, "error", err)
		return a.fallback(call, llm.ExtractionFailed(err))
	}

	call.req.Text = res.Text
	call.req.Images = a.attachments(res.Images, filename)
	call.confidence = res.Confidence
	call.issues = append(call.issues, res.Warnings...)
	if res.Quality.Usable {
		call.layout = DetectLayout(res.Text)
		call.req.LayoutHint = call.layout.Hint()
	}
	call.req.PrepConfidence = call.confidence
	return a.run(ctx, call)
}

// ChatImage decodes a photographed order received through a chat channel.
func (a *Assistant) ChatImage(ctx context.Context, image []byte, sender, message, referenceDate string) *AssistedResult {
	call := assistedCall{
		req: llm.ExtractRequest{
			Channel:       constants.ChannelChatImage,
			Text:          message,
			Sender:        sender,
			ReferenceDate: a.referenceDate(referenceDate),
		},
		dataSource: chatSource("chat", sender),
		partner:    sender,
	}
	if a.docs == nil {
		return a.fallback(call, llm.ExtractionFailed(errNoDocumentExtractor))
	}
	res, err := a.docs.Extract(ctx, image, chatImageName)
	if err != nil {
		a.dec.logger.Warn("decode.assisted.extract_failed", "sender", sender, "error", err)
		return a.fallback(call, llm.ExtractionFailed(err))
	}
	call.req.Images = a.attachments(res.Images, chatImageName)
	call.confidence = res.Confidence
	call.req.PrepConfidence = call.confidence
	return a.run(ctx, call)
}

// FreeText decodes an order typed as a plain message.
func (a *Assistant) FreeText(ctx context.Context, customer, message, referenceDate string) *AssistedResult {
	q := extract.AssessText(message)
	call := assistedCall{
		req: llm.ExtractRequest{
			Channel:        constants.ChannelFreeText,
			Text:           message,
			Sender:         customer,
			ReferenceDate:  a.referenceDate(referenceDate),
			PrepConfidence: q.Score,
		},
		dataSource: chatSource("text", customer),
		partner:    customer,
		confidence: q.Score,
	}
	if strings.TrimSpace(message) == "" {
		return a.fallback(call, llm.Outcome{Failure: &llm.ParseFailure{Reason: llm.ReasonEmpty, Detail: "message is empty"}})
	}
	return a.run(ctx, call)
}

func chatSource(prefix, who string) string {
	if who = strings.TrimSpace(who); who == "" {
		return prefix
	}
	return prefix + ":" + who
}

func (a *Assistant) attachments(images []extract.Image, name string) []llm.Attachment {
	out := make([]llm.Attachment, 0, len(images))
	for i, img := range images {
		att := llm.Attachment{Data: img.Data, MIMEType: img.MIMEType}
		if !llm.FitsVisionLimit(att) {
			a.dec.logger.Warn("decode.assisted.image_dropped", "file", name, "index", i, "bytes", len(img.Data))
			continue
		}
		out = append(out, att)
	}
	return out
}

// referenceDate returns the caller's date as YYYY/MM/DD, or today's date when absent or unreadable.
func (a *Assistant) referenceDate(s string) string {
	s = strings.TrimSpace(s)
	for _, layout := range []string{constants.DateLayout, "2006/1/2", "2006-01-02", "2006-1-2"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(constants.DateLayout)
		}
	}
	if s != "" {
		a.dec.logger.Warn("decode.assisted.reference_date_invalid", "value", s)
	}
	return a.dec.now().Format(constants.DateLayout)
}

func (a *Assistant) run(ctx context.Context, call assistedCall) *AssistedResult {
	start := time.Now()
	log := a.dec.logger.With("channel", call.req.Channel, "source", call.dataSource)
	log.Info("decode.assisted.start", "images", len(call.req.Images), "text_chars", len([]rune(call.req.Text)),
		"prep_confidence", call.confidence, "layout", call.req.LayoutHint)

	var out llm.Outcome
	comp, err := a.model.ExtractOrder(ctx, call.req)
	if err != nil {
		out = llm.ModelCallFailed(err)
	} else {
		out = llm.ParseCompletion(comp.Content, log)
	}
	if out.Failure != nil {
		return a.fallback(call, out)
	}

	doc := out.Document
	res := &AssistedResult{
		Channel:    call.req.Channel,
		Confidence: call.confidence,
		Layout:     call.layout,
		Issues:     call.issues,
		Raw:        out.Raw,
	}
	lineConfidence := call.confidence
	if qa := doc.QualityAssessment; qa != nil {
		res.Issues = append(res.Issues, qa.Issues...)
		if qa.OverallConfidence != nil {
			lineConfidence = *qa.OverallConfidence
		}
	}
	for _, d := range out.Dropped {
		res.Issues = append(res.Issues, "dropped "+d)
	}

	year := call.req.ReferenceDate[:4]
	header := entity.RawLine{
		OrderID:      strings.TrimSpace(doc.OrderID),
		OrderDate:    completeDate(doc.OrderDate, year),
		DeliveryDate: completeDate(doc.DeliveryDate, year),
		PartnerName:  strings.TrimSpace(doc.PartnerName),
		DataSource:   call.dataSource,
	}
	if header.OrderDate == "" {
		header.OrderDate = call.req.ReferenceDate
	}
	if header.PartnerName == "" {
		header.PartnerName = call.partner
	}

	items := doc.Items
	if call.layout.TwoColumn {
		items = splitMergedItems(items)
	}
	skipped := 0
	for _, it := range items {
		if strings.TrimSpace(it.ProductName) == "" || strings.TrimSpace(it.Quantity) == "" {
			skipped++
			continue
		}
		line := header
		line.ProductCode = strings.TrimSpace(it.ProductCode)
		line.ProductName = strings.TrimSpace(it.ProductName)
		line.Size = strings.TrimSpace(it.Size)
		line.Quantity = strings.TrimSpace(it.Quantity)
		line.Unit = strings.TrimSpace(it.Unit)
		line.UnitPrice = strings.TrimSpace(it.UnitPrice)
		line.Amount = strings.TrimSpace(it.Amount)
		line.Remark = strings.TrimSpace(it.Remark)
		if it.PrePrinted && !strings.Contains(line.Remark, prePrintedNote) {
			line.Remark = joinNonBlank(line.Remark, prePrintedNote)
		}
		c := lineConfidence
		if it.Confidence != nil {
			c = *it.Confidence
		}
		line.Confidence = entity.Float(c)
		line.Alternatives = it.Alternatives
		res.Records = append(res.Records, line)
	}

	if len(res.Records) == 0 {
		line := header
		line.ProductName = FallbackEmptyName
		line.Remark = FallbackEmptyRemark
		line.Confidence = entity.Float(0)
		res.Records = []entity.RawLine{line}
	}

	log.Info("decode.assisted.ok",
		"items", len(res.Records),
		"skipped", skipped,
		"two_column", call.layout.TwoColumn,
		"band", res.Band(),
		"issues", len(res.Issues),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res
}

// fallback emits the single diagnostic record for an unusable model answer.
func (a *Assistant) fallback(call assistedCall, out llm.Outcome) *AssistedResult {
	a.dec.logger.Warn("decode.assisted.fallback",
		"channel", call.req.Channel,
		"source", call.dataSource,
		"reason", out.Failure.Reason,
		"detail", out.Failure.Detail,
	)
	return &AssistedResult{
		Channel:    call.req.Channel,
		Confidence: call.confidence,
		Layout:     call.layout,
		Issues:     call.issues,
		Failure:    out.Failure,
		Raw:        out.Raw,
		Records: []entity.RawLine{{
			OrderDate:   call.req.ReferenceDate,
			PartnerName: call.partner,
			ProductName: FallbackParseName,
			Remark:      FallbackParseRemark + out.Failure.Error(),
			DataSource:  call.dataSource,
			Confidence:  entity.Float(0),
		}},
	}
}

// completeDate gives MM/DD and M月D日 fragments the reference year. Other values pass through trimmed.
func completeDate(s, year string) string {
	s = strings.TrimSpace(s)
	for _, re := range []*regexp.Regexp{reMonthDaySlash, reMonthDayKanji} {
		if m := re.FindStringSubmatch(s); m != nil {
			month, _ := strconv.Atoi(m[1])
			day, _ := strconv.Atoi(m[2])
			return fmt.Sprintf("%s/%02d/%02d", year, month, day)
		}
	}
	return s
}

func joinNonBlank(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// pair splits s into exactly two non-empty parts with re.
func pair(s string, re *regexp.Regexp) (string, string, bool) {
	parts := re.Split(strings.TrimSpace(s), -1)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// splitMergedItems undoes the model merging two side-by-side products into one item:
// the name holds two products separated by a wide gap and the quantity holds two numbers.
func splitMergedItems(items []llm.OrderItem) []llm.OrderItem {
	out := make([]llm.OrderItem, 0, len(items))
	for _, it := range items {
		leftName, rightName, okName := pair(it.ProductName, reWideGap)
		leftQty, rightQty, okQty := pair(it.Quantity, reListSep)
		if !okName || !okQty || !isNumberToken(leftQty) || !isNumberToken(rightQty) {
			out = append(out, it)
			continue
		}
		left, right := it, it
		left.ProductName, right.ProductName = leftName, rightName
		left.Quantity, right.Quantity = leftQty, rightQty
		if l, r, ok := pair(it.ProductCode, reListSep); ok {
			left.ProductCode, right.ProductCode = l, r
		}
		if l, r, ok := pair(it.Unit, reListSep); ok {
			left.Unit, right.Unit = l, r
		}
		if l, r, ok := pair(it.UnitPrice, reListSep); ok {
			left.UnitPrice, right.UnitPrice = l, r
		}
		if l, r, ok := pair(it.Amount, reListSep); ok {
			left.Amount, right.Amount = l, r
		} else {
			left.Amount, right.Amount = "", ""
		}
		out = append(out, left, right)
	}
	return out
}
