package parser

import (
	"path/filepath"
	"strings"
)

// SupportedExtensions lists upload extensions this service can ingest.
var SupportedExtensions = map[string]bool{
	".epub": true,
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}
