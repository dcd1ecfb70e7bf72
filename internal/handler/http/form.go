package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/utafrali/marketplace/internal/domain"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

// multipartForm is a parsed multipart body. Image fields keep their parts in
// submission order, whether uploaded files or URL strings.
type multipartForm struct {
	values map[string]string
	assets map[string][]*domain.AssetInput
}

// value returns the trimmed value of a text field.
func (f *multipartForm) value(name string) string {
	return strings.TrimSpace(f.values[name])
}

// optional returns a pointer to the field value, or nil when the field was
// not sent.
func (f *multipartForm) optional(name string) *string {
	v, ok := f.values[name]
	if !ok {
		return nil
	}
	return &v
}

// asset returns the first part of an image field, or nil when absent.
func (f *multipartForm) asset(name string) *domain.AssetInput {
	if in := f.assets[name]; len(in) > 0 {
		return in[0]
	}
	return nil
}

func (f *multipartForm) assetList(name string) []*domain.AssetInput {
	return f.assets[name]
}

// readMultipart streams the request body part by part. Parts of the named
// image fields become Fresh inputs when they carry a file and Reference inputs
// when they carry a non-empty string. File parts are read up to
// maxFileBytes+1 so oversized uploads are rejected by the asset validator
// instead of being truncated silently. The whole body is capped at maxBody.
func readMultipart(w http.ResponseWriter, r *http.Request, maxBody, maxFileBytes int64, imageFields ...string) (*multipartForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, apperrors.InvalidInput("expected a multipart/form-data body")
	}

	isImage := make(map[string]bool, len(imageFields))
	for _, name := range imageFields {
		isImage[name] = true
	}

	form := &multipartForm{
		values: make(map[string]string),
		assets: make(map[string][]*domain.AssetInput),
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, readError(err)
		}

		name := part.FormName()
		if name == "" {
			part.Close()
			continue
		}

		if isImage[name] && part.FileName() != "" {
			data, err := io.ReadAll(io.LimitReader(part, maxFileBytes+1))
			part.Close()
			if err != nil {
				return nil, readError(err)
			}
			if len(data) == 0 {
				continue
			}
			contentType := part.Header.Get("Content-Type")
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			form.assets[name] = append(form.assets[name], domain.FreshAsset(data, part.FileName(), contentType))
			continue
		}

		raw, err := io.ReadAll(io.LimitReader(part, 1<<20))
		part.Close()
		if err != nil {
			return nil, readError(err)
		}
		text := string(raw)

		if isImage[name] {
			if ref := strings.TrimSpace(text); ref != "" {
				form.assets[name] = append(form.assets[name], domain.ReferenceAsset(ref))
			}
			continue
		}
		form.values[name] = text
	}
	return form, nil
}

func readError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.InvalidInput(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
	}
	return apperrors.InvalidInput("malformed multipart body: " + err.Error())
}
