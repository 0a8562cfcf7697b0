package response

import (
	"fmt"
	"strings"
)

// File is a binary download. It bypasses both envelopes.
type File struct {
	Name        string
	ContentType string
	Body        []byte
}

// Disposition is the Content-Disposition value for f.
func (f File) Disposition() string {
	return fmt.Sprintf("attachment; filename=%q", SafeFilename(f.Name))
}

var filenameReplacer = strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")

// SafeFilename strips path and shell-hostile characters and caps the length.
func SafeFilename(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "NA"
	}
	s = filenameReplacer.Replace(s)
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}
