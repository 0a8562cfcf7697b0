package query

import (
	"fmt"
	"math"
	"mime/multipart"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"apicore/internal/domain"

	"github.com/gabriel-vasile/mimetype"
)

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeWEBP = "image/webp"
	MimePDF  = "application/pdf"
	MimeDOC  = "application/msword"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var safeFilename = regexp.MustCompile(`^[a-zA-Z0-9.\-_\s]+$`)

// FileRules describes what an upload field accepts.
type FileRules struct {
	MaxSize           int64
	AllowedMimeTypes  []string
	AllowedExtensions []string
	Required          bool
	MaxFiles          int
	// Sniff checks the content itself against AllowedMimeTypes, not only
	// the declared Content-Type.
	Sniff bool
}

// ImageRules accepts jpeg/png/webp images up to maxSize (5MB when 0).
func ImageRules(maxSize int64) FileRules {
	if maxSize <= 0 {
		maxSize = 5 << 20
	}
	return FileRules{
		MaxSize:           maxSize,
		AllowedMimeTypes:  []string{MimeJPEG, MimePNG, MimeWEBP},
		AllowedExtensions: []string{"jpg", "jpeg", "png", "webp"},
		Sniff:             true,
	}
}

// DocumentRules accepts pdf/doc/docx up to maxSize (10MB when 0).
func DocumentRules(maxSize int64) FileRules {
	if maxSize <= 0 {
		maxSize = 10 << 20
	}
	return FileRules{
		MaxSize:           maxSize,
		AllowedMimeTypes:  []string{MimePDF, MimeDOC, MimeDOCX},
		AllowedExtensions: []string{"pdf", "doc", "docx"},
	}
}

// Validate checks every file of one form field.
func (r FileRules) Validate(param string, files []*multipart.FileHeader) error {
	if param == "" {
		param = "file"
	}
	if len(files) == 0 {
		if r.Required {
			return domain.BadRequest(domain.CodeValidationFailed, "File is required",
				map[string]any{"parameter": param})
		}
		return nil
	}
	if r.MaxFiles > 0 && len(files) > r.MaxFiles {
		return domain.BadRequest(domain.CodeValidationFailed, fmt.Sprintf("Maximum %d files allowed", r.MaxFiles),
			map[string]any{"parameter": param, "maxFiles": r.MaxFiles, "receivedFiles": len(files)})
	}
	for _, fh := range files {
		if err := r.validateOne(param, fh); err != nil {
			return err
		}
	}
	return nil
}

func (r FileRules) validateOne(param string, fh *multipart.FileHeader) error {
	if r.MaxSize > 0 && fh.Size > r.MaxSize {
		return domain.BadRequest(domain.CodeFileTooLarge, "File size exceeds limit of "+FormatFileSize(r.MaxSize),
			map[string]any{
				"parameter":        param,
				"filename":         fh.Filename,
				"size":             fh.Size,
				"maxSize":          r.MaxSize,
				"sizeFormatted":    FormatFileSize(fh.Size),
				"maxSizeFormatted": FormatFileSize(r.MaxSize),
			})
	}

	if len(r.AllowedMimeTypes) > 0 {
		declared := fh.Header.Get("Content-Type")
		if !slices.Contains(r.AllowedMimeTypes, declared) {
			return invalidType(param, fh.Filename, declared, r.AllowedMimeTypes)
		}
		if r.Sniff {
			detected, err := sniff(fh)
			if err != nil {
				return domain.FileUpload("cannot read file", map[string]any{"parameter": param, "filename": fh.Filename})
			}
			if !slices.ContainsFunc(r.AllowedMimeTypes, detected.Is) {
				return invalidType(param, fh.Filename, detected.String(), r.AllowedMimeTypes)
			}
		}
	}

	if len(r.AllowedExtensions) > 0 {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fh.Filename), "."))
		if !slices.Contains(r.AllowedExtensions, ext) {
			return domain.BadRequest(domain.CodeFileInvalidType,
				"File extension not allowed. Allowed extensions: "+strings.Join(r.AllowedExtensions, ", "),
				map[string]any{"parameter": param, "filename": fh.Filename, "extension": ext, "allowedExtensions": r.AllowedExtensions})
		}
	}

	if !safeFilename.MatchString(fh.Filename) || len(fh.Filename) > 255 {
		return domain.BadRequest(domain.CodeValidationInvalidFormat, "Invalid filename. Filename contains forbidden characters",
			map[string]any{"parameter": param, "filename": fh.Filename, "allowedPattern": "alphanumeric, dots, hyphens, and underscores only"})
	}
	return nil
}

func sniff(fh *multipart.FileHeader) (*mimetype.MIME, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return mimetype.DetectReader(f)
}

func invalidType(param, filename, mime string, allowed []string) error {
	return domain.BadRequest(domain.CodeFileInvalidType,
		"File type not allowed. Allowed types: "+strings.Join(allowed, ", "),
		map[string]any{"parameter": param, "filename": filename, "mimetype": mime, "allowedMimeTypes": allowed})
}

// FormatFileSize renders bytes as "1.5 MB" style text.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	sizes := []string{"Bytes", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	i = min(i, len(sizes)-1)
	v := float64(bytes) / math.Pow(1024, float64(i))
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + " " + sizes[i]
}
