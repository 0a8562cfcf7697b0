package middleware

import (
	"bytes"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"apicore/internal/domain"
	"apicore/internal/validation"
)

// multipartMemory bounds the in-memory part of a parsed multipart form.
const multipartMemory = 8 << 20

// Request is what a Handler sees of the inbound HTTP request.
type Request struct {
	Context domain.RequestContext
	// Route is the registered route pattern, e.g. /api/users/:id.
	Route  string
	Role   string
	Query  url.Values
	Params map[string]string
	Header http.Header
	Body   []byte

	bodyErr error
	authErr error
	form    *multipart.Form
}

// Param returns a path parameter.
func (r *Request) Param(name string) string { return r.Params[name] }

// Bind decodes the JSON body into dst and validates it.
func (r *Request) Bind(dst any) error {
	if r.bodyErr != nil {
		return r.bodyErr
	}
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return domain.ValidationError{Messages: []string{"body should not be empty"}}
	}
	return validation.Bind(r.Body, dst)
}

// Files returns the uploaded files of a multipart field. A request that is
// not multipart has no files.
func (r *Request) Files(field string) ([]*multipart.FileHeader, error) {
	if r.bodyErr != nil {
		return nil, r.bodyErr
	}
	if r.form == nil {
		mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
			return nil, nil
		}
		form, err := multipart.NewReader(bytes.NewReader(r.Body), params["boundary"]).ReadForm(multipartMemory)
		if err != nil {
			return nil, domain.FileUpload("malformed multipart body", map[string]any{"reason": err.Error()})
		}
		r.form = form
	}
	return r.form.File[field], nil
}

// bodyError maps a failed body read to a client error.
func bodyError(err error, limit int64) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return domain.HTTPError{
			Status:  http.StatusRequestEntityTooLarge,
			Code:    domain.CodeValidationFailed,
			Message: "Request body too large",
			Details: map[string]any{"maxBytes": limit},
			Err:     err,
		}
	}
	return domain.BadRequest(domain.CodeValidationFailed, "Request body could not be read", nil)
}

func (r *Request) close() {
	if r.form != nil {
		_ = r.form.RemoveAll()
	}
}
