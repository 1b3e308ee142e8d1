package decode

import (
	"github.com/joseph-ayodele/order-intake/constants"
	"github.com/joseph-ayodele/order-intake/internal/classify"
	"github.com/joseph-ayodele/order-intake/internal/entity"
	"github.com/joseph-ayodele/order-intake/internal/llm"
)

// Result is implemented by every decoder variant. All variants project onto the same line record.
type Result interface {
	Source() constants.SourceKind
	Lines() []entity.RawLine
	Warnings() []string
	isResult()
}

// VendorAResult is the output of the header-named column decoder.
type VendorAResult struct {
	Encoding classify.Encoding
	Records  []entity.RawLine
}

func (r *VendorAResult) Source() constants.SourceKind { return constants.SourceVendorA }
func (r *VendorAResult) Lines() []entity.RawLine      { return r.Records }
func (r *VendorAResult) Warnings() []string           { return nil }
func (*VendorAResult) isResult()                      {}

// VendorBResult is the output of the fixed-block decoder.
type VendorBResult struct {
	Encoding      classify.Encoding
	Records       []entity.RawLine
	Blocks        int
	SkippedBlocks int
}

func (r *VendorBResult) Source() constants.SourceKind { return constants.SourceVendorB }
func (r *VendorBResult) Lines() []entity.RawLine      { return r.Records }
func (r *VendorBResult) Warnings() []string           { return nil }
func (*VendorBResult) isResult()                      {}

// VendorCResult is the output of the spreadsheet-grid decoder. Date inference warnings are non-fatal.
type VendorCResult struct {
	DocumentID string
	Records    []entity.RawLine
	Notes      []string
}

func (r *VendorCResult) Source() constants.SourceKind { return constants.SourceVendorC }
func (r *VendorCResult) Lines() []entity.RawLine      { return r.Records }
func (r *VendorCResult) Warnings() []string           { return r.Notes }
func (*VendorCResult) isResult()                      {}

// AssistedResult is the output of the AI-assisted decoder.
type AssistedResult struct {
	Channel    constants.Channel
	Records    []entity.RawLine
	Confidence float64 // document-level blend of pre-call quality signals
	Layout     LayoutVerdict
	Issues     []string
	Failure    *llm.ParseFailure // set when the records are the diagnostic fallback
	Raw        string
}

func (r *AssistedResult) Source() constants.SourceKind { return constants.SourceAssisted }
func (r *AssistedResult) Lines() []entity.RawLine      { return r.Records }
func (r *AssistedResult) Warnings() []string           { return r.Issues }
func (*AssistedResult) isResult()                      {}

// Band is the triage band of the document confidence.
func (r *AssistedResult) Band() constants.ConfidenceBand { return constants.BandFor(r.Confidence) }

// FellBack reports whether the decoder produced the diagnostic fallback instead of parsed items.
func (r *AssistedResult) FellBack() bool { return r.Failure != nil }
