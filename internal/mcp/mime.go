package mcp

import (
	"path/filepath"
	"strings"
)

// mimeTypes maps corpus file extensions to MIME types.
var mimeTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".json":     "application/json",
	".yaml":     "text/x-yaml",
	".yml":      "text/x-yaml",
}

// MimeTypeForPath returns the MIME type for a policy file path.
// Returns "text/plain" for unknown types.
func MimeTypeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mime, ok := mimeTypes[ext]; ok {
		return mime
	}
	return "text/plain"
}
