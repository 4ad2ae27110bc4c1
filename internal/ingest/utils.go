package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/caba/constants"
)

// AllowedExt checks if a file extension is in exts (defaults to constants.AllowedExtensions).
func AllowedExt(ext string, exts map[string]struct{}) bool {
	if exts == nil {
		exts = constants.AllowedExtensions
	}
	_, ok := exts[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".")
}
