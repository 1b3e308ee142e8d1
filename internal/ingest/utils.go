package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/order-intake/constants"
)

// AllowedExt checks if a file extension is in the allowed set (csv/txt/xlsx/pdf/jpg/jpeg/png).
func AllowedExt(ext string) bool {
	ext = constants.NormalizeExt(ext)
	_, ok := constants.AllowedExtensions[ext]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// IsPartial reports editor and download temp files that show up in a watched inbox before the real file lands.
func IsPartial(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, "~$") || strings.HasSuffix(base, ".part") || strings.HasSuffix(base, ".crdownload")
}
