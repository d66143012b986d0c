/*
Package req parses request bodies for the companion server.
*/
package req

import (
	"errors"
	"mime"
	"net/http"

	"chitchat/internal/pkg/errs"
)

const (
	// MaxFormMemory bounds the in-memory part of a multipart login form.
	MaxFormMemory int64 = 1 << 20

	// MaxFormBodySize bounds the whole login request body.
	MaxFormBodySize int64 = 64 << 10
)

// ParseForm parses a URL-encoded or multipart form body into r.PostForm / r.MultipartForm.
// Browser clients send multipart FormData while the Go client sends URL-encoded bodies;
// both are accepted.
func ParseForm(w http.ResponseWriter, r *http.Request) *errs.CustomError {
	r.Body = http.MaxBytesReader(w, r.Body, MaxFormBodySize)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	switch mediaType {
	case "application/x-www-form-urlencoded":
		err = r.ParseForm()
	case "multipart/form-data":
		err = r.ParseMultipartForm(MaxFormMemory)
	default:
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}

		return errs.NewError(errs.ErrFormParseFailed)
	}

	return nil
}
