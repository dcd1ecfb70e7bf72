package asset

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/utafrali/marketplace/internal/domain"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

// DefaultMaxBytes is the largest accepted upload.
const DefaultMaxBytes int64 = 5 << 20

// DefaultContentTypes lists the accepted image formats.
var DefaultContentTypes = []string{"image/jpeg", "image/png"}

// Validator checks uploads before anything is written.
type Validator struct {
	maxBytes int64
	allowed  []string
}

// NewValidator creates a Validator. Zero values fall back to the defaults.
func NewValidator(maxBytes int64, allowed []string) *Validator {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if len(allowed) == 0 {
		allowed = DefaultContentTypes
	}
	return &Validator{maxBytes: maxBytes, allowed: allowed}
}

// MaxBytes returns the configured size limit.
func (v *Validator) MaxBytes() int64 { return v.maxBytes }

// Check validates a single input. A nil input is valid.
func (v *Validator) Check(in *domain.AssetInput) error {
	switch {
	case in == nil:
		return nil
	case in.IsReference():
		if strings.TrimSpace(in.URL) == "" {
			return apperrors.InvalidAsset("image reference must not be empty")
		}
		return nil
	}

	size := int64(len(in.Data))
	if size == 0 {
		return apperrors.InvalidAsset("image file is empty")
	}
	if size > v.maxBytes {
		return apperrors.InvalidAsset(fmt.Sprintf("image %q is %d bytes, the limit is %d", in.Filename, size, v.maxBytes))
	}

	if in.ContentType != "" && !v.allows(in.ContentType) {
		return apperrors.InvalidAsset(fmt.Sprintf("content type %q is not allowed", in.ContentType))
	}

	detected := mimetype.Detect(in.Data)
	for _, ct := range v.allowed {
		if detected.Is(ct) {
			return nil
		}
	}
	return apperrors.InvalidAsset(fmt.Sprintf("file content is %s, expected one of %s", detected.String(), strings.Join(v.allowed, ", ")))
}

func (v *Validator) allows(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	for _, a := range v.allowed {
		if ct == a {
			return true
		}
	}
	return false
}
