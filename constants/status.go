package constants

// ConfidenceBand is the caller-facing triage class of an extraction confidence.
type ConfidenceBand string

// Stable values (exported to reports and APIs as-is).
const (
	BandHigh   ConfidenceBand = "HIGH"   // >= 0.8
	BandMedium ConfidenceBand = "MEDIUM" // needs review
	BandLow    ConfidenceBand = "LOW"    // manual review recommended
)

const (
	HighConfidenceThreshold   = 0.8
	MediumConfidenceThreshold = 0.5

	// TextQualityThreshold is the script-ratio score above which extracted text is usable on its own.
	TextQualityThreshold = 0.3
)

// BandFor classifies a confidence value in [0,1].
func BandFor(confidence float64) ConfidenceBand {
	switch {
	case confidence >= HighConfidenceThreshold:
		return BandHigh
	case confidence >= MediumConfidenceThreshold:
		return BandMedium
	default:
		return BandLow
	}
}
