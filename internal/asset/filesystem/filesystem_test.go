package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_PutAndDelete(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "images")
	s, err := New(dir, "/images/")
	require.NoError(t, err)

	ref, err := s.Put(ctx, "1-a.png", "image/png", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, "/images/1-a.png", ref)
	assert.True(t, s.Owns(ref))

	got, err := os.ReadFile(filepath.Join(dir, "1-a.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), got)

	require.NoError(t, s.Delete(ctx, ref))
	_, err = os.Stat(filepath.Join(dir, "1-a.png"))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, s.Delete(ctx, ref), "deleting twice succeeds")
}

func TestStore_NeverOverwrites(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir(), "/images")
	require.NoError(t, err)

	first, err := s.Put(ctx, "1-a.png", "image/png", []byte("one"))
	require.NoError(t, err)
	second, err := s.Put(ctx, "1-a.png", "image/png", []byte("two"))
	require.NoError(t, err)

	assert.Equal(t, "/images/1-a.png", first)
	assert.Equal(t, "/images/1-a-1.png", second)
}

func TestStore_RejectsPathsOutsideTheDirectory(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir(), "/images")
	require.NoError(t, err)

	_, err = s.Put(ctx, "../escape.png", "image/png", []byte("x"))
	assert.Error(t, err)

	for _, ref := range []string{"/images/../secret", "/images/a/b.png", "/uploads/placeholder.jpg", "https://cdn.example.com/images/a.png", "/images/"} {
		assert.False(t, s.Owns(ref), ref)
	}
	assert.Error(t, s.Delete(ctx, "/uploads/placeholder.jpg"))
}
