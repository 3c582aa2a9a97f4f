package constants

import (
	"path/filepath"
	"strings"
)

// AllowedExtensions holds the document formats the layout analyzer accepts.
// Anything else is skipped before it reaches the paid analysis API.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"bmp":  {},
	"tiff": {},
	"heif": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// SupportedDocument reports whether a file name carries an analyzable extension.
func SupportedDocument(name string) bool {
	_, ok := AllowedExtensions[NormalizeExt(filepath.Ext(name))]
	return ok
}
