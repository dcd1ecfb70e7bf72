package asset

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/utafrali/marketplace/pkg/slug"
)

// DefaultPlaceholder is the avatar reference given to accounts without an
// image of their own. It is never deleted.
const DefaultPlaceholder = "/uploads/placeholder.jpg"

// Store persists image bytes and hands back a reference clients can fetch.
type Store interface {
	// Put writes data under name and returns the public reference.
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)

	// Delete removes the asset behind ref. Deleting a missing asset succeeds.
	Delete(ctx context.Context, ref string) error

	// Owns reports whether ref points into this store.
	Owns(ref string) bool

	// Name identifies the backend in logs and metrics.
	Name() string
}

// QualifiedName builds the stored file name for an upload:
// <unix-millis>-<slugged base>.<ext>. Path components of original are
// discarded.
func QualifiedName(now time.Time, original string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(base), "."))
	stem := slug.Truncate(slug.Generate(strings.TrimSuffix(base, filepath.Ext(base))), 80)
	if stem == "" {
		stem = "image"
	}

	name := fmt.Sprintf("%d-%s", now.UnixMilli(), stem)
	if ext = slug.Generate(ext); ext != "" {
		name += "." + ext
	}
	return name
}

// WithSuffix inserts -n before the extension of name. Backends use it to
// avoid overwriting an existing asset.
func WithSuffix(name string, n int) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n, ext)
}
