package constants

import "strings"

// Format is the coarse routing class of an input file.
type Format string

const (
	DELIMITED   Format = "DELIMITED"
	SPREADSHEET Format = "SPREADSHEET"
	PDF         Format = "PDF"
	IMAGE       Format = "IMAGE"
	UNSUPPORTED Format = "UNSUPPORTED"
)

// AllowedExtensions holds the file extensions picked up by directory and inbox ingestion.
var AllowedExtensions = map[string]struct{}{
	"csv":  {},
	"txt":  {},
	"xlsx": {},
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// MapExtToFormat maps a file extension to its routing format.
func MapExtToFormat(ext string) Format {
	switch NormalizeExt(ext) {
	case "csv", "txt":
		return DELIMITED
	case "xlsx":
		return SPREADSHEET
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png":
		return IMAGE
	default:
		return UNSUPPORTED
	}
}

// MaxVisionMBDefault caps the size of an image attached to a model request.
const MaxVisionMBDefault = 20
