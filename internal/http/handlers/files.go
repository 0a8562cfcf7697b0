package handlers

import (
	"context"

	"apicore/internal/http/middleware"
	"apicore/internal/query"
)

// Files inspects multipart uploads against a rule set without storing them.
type Files struct {
	Rules query.FileRules
	Field string
}

type fileInfo struct {
	Filename      string `json:"filename"`
	Size          int64  `json:"size"`
	SizeFormatted string `json:"sizeFormatted"`
	ContentType   string `json:"contentType"`
}

func (h Files) Inspect(ctx context.Context, req *middleware.Request) (any, error) {
	field := h.Field
	if field == "" {
		field = "files"
	}
	files, err := req.Files(field)
	if err != nil {
		return nil, err
	}
	if err := h.Rules.Validate(field, files); err != nil {
		return nil, err
	}
	out := make([]fileInfo, 0, len(files))
	for _, fh := range files {
		out = append(out, fileInfo{
			Filename:      fh.Filename,
			Size:          fh.Size,
			SizeFormatted: query.FormatFileSize(fh.Size),
			ContentType:   fh.Header.Get("Content-Type"),
		})
	}
	return map[string]any{"files": out}, nil
}
