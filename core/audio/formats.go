package audio

import (
	"path/filepath"
	"strings"
)

// allowedExtensions lists the upload formats the decoder accepts.
var allowedExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".ogg":  true,
}

// SupportedExt reports whether the file extension is an accepted audio format.
func SupportedExt(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Format returns the short format name derived from the file extension,
// e.g. "mp3".
func Format(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}
