package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/utafrali/marketplace/internal/asset"
)

// DefaultPrefix is the reference prefix used when none is configured.
const DefaultPrefix = "/images"

type object struct {
	contentType string
	data        []byte
}

// Store implements asset.Store in process memory.
type Store struct {
	mu      sync.RWMutex
	prefix  string
	objects map[string]object
	writes  int
	deletes int
}

var _ asset.Store = (*Store)(nil)

// New creates an empty Store whose references start with prefix.
func New(prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{prefix: strings.TrimRight(prefix, "/"), objects: make(map[string]object)}
}

// Put stores a copy of data. A name already in use gets a numeric suffix.
func (s *Store) Put(_ context.Context, name, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := name
	for n := 1; ; n++ {
		if _, taken := s.objects[key]; !taken {
			break
		}
		key = asset.WithSuffix(name, n)
	}

	s.objects[key] = object{contentType: contentType, data: append([]byte(nil), data...)}
	s.writes++
	return s.prefix + "/" + key, nil
}

func (s *Store) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.key(ref); ok {
		if _, exists := s.objects[key]; exists {
			delete(s.objects, key)
			s.deletes++
		}
	}
	return nil
}

func (s *Store) Owns(ref string) bool {
	_, ok := s.key(ref)
	return ok
}

func (s *Store) Name() string { return "memory" }

// Has reports whether ref is currently stored.
func (s *Store) Has(ref string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.key(ref)
	if !ok {
		return false
	}
	_, exists := s.objects[key]
	return exists
}

// Get returns the stored bytes and content type for ref.
func (s *Store) Get(ref string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.key(ref)
	if !ok {
		return nil, "", false
	}
	obj, exists := s.objects[key]
	return obj.data, obj.contentType, exists
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Writes returns how many Put calls succeeded.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Deletes returns how many objects Delete removed.
func (s *Store) Deletes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deletes
}

func (s *Store) key(ref string) (string, bool) {
	key, found := strings.CutPrefix(ref, s.prefix+"/")
	if !found || key == "" || strings.Contains(key, "/") {
		return "", false
	}
	return key, true
}
