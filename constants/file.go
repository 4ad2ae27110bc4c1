package constants

import "strings"

// AllowedExtensions holds the default allowed file extensions for booking discovery.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// ExtensionSet builds a lookup set from a list like [".PDF", "pdf"].
// An empty list yields the default AllowedExtensions.
func ExtensionSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		return AllowedExtensions
	}
	out := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		if n := NormalizeExt(e); n != "" {
			out[n] = struct{}{}
		}
	}
	return out
}
