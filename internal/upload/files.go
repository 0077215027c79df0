package upload

import (
	"path/filepath"
	"strings"
)

// AllowedExtensions are the accepted document extensions, without the dot.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"pdf":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Accepts reports whether name has an accepted extension. Only the name
// is checked; contents are not sniffed.
func Accepts(name string) bool {
	_, ok := AllowedExtensions[NormalizeExt(filepath.Ext(name))]
	return ok
}
