package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/utafrali/marketplace/internal/asset"
)

// maxNameAttempts bounds the suffix search when a file name is taken.
const maxNameAttempts = 100

// Store writes assets into a local directory that the HTTP server exposes
// under a public prefix.
type Store struct {
	dir    string
	prefix string
}

var _ asset.Store = (*Store)(nil)

// New creates a Store rooted at dir. The directory is created if missing.
func New(dir, publicPrefix string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("asset directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset directory: %w", err)
	}
	return &Store{dir: dir, prefix: "/" + strings.Trim(publicPrefix, "/")}, nil
}

// Dir returns the directory files are written to.
func (s *Store) Dir() string { return s.dir }

// Prefix returns the public path prefix of references.
func (s *Store) Prefix() string { return s.prefix }

// Put writes data to a new file. Existing files are never overwritten.
func (s *Store) Put(ctx context.Context, name, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid asset name %q", name)
	}

	candidate := name
	for n := 1; n <= maxNameAttempts; n++ {
		f, err := os.OpenFile(filepath.Join(s.dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			candidate = asset.WithSuffix(name, n)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", candidate, err)
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", fmt.Errorf("write %s: %w", candidate, err)
		}
		if err := f.Close(); err != nil {
			os.Remove(f.Name())
			return "", fmt.Errorf("close %s: %w", candidate, err)
		}
		return s.prefix + "/" + candidate, nil
	}
	return "", fmt.Errorf("no free file name for %q", name)
}

// Delete removes the file behind ref. A missing file is not an error.
func (s *Store) Delete(_ context.Context, ref string) error {
	name, ok := s.fileName(ref)
	if !ok {
		return fmt.Errorf("reference %q is not managed by this store", ref)
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

func (s *Store) Owns(ref string) bool {
	_, ok := s.fileName(ref)
	return ok
}

func (s *Store) Name() string { return "filesystem" }

func (s *Store) fileName(ref string) (string, bool) {
	name, found := strings.CutPrefix(ref, s.prefix+"/")
	if !found || name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", false
	}
	return name, true
}
