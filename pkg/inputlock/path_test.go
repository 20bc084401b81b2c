package inputlock

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickryand/flox/pkg/registry"
)

func TestLockPathIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("packages: []\n"), 0644))

	locker := New(nil)
	ref := registry.InputRef{Type: registry.TypePath, URL: path}

	first, err := locker.Lock(context.Background(), ref)
	require.NoError(t, err)
	assert.True(t, first.Locked())
	assert.Contains(t, first.Rev, "xxh64:")

	second, err := locker.Lock(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, first.Rev, second.Rev)

	// Different contents, different revision.
	require.NoError(t, os.WriteFile(path, []byte("packages: [changed]\n"), 0644))
	third, err := locker.Lock(context.Background(), ref)
	require.NoError(t, err)
	assert.NotEqual(t, first.Rev, third.Rev)
}

func TestLockIsIdempotent(t *testing.T) {
	locker := New(nil)
	locked := registry.InputRef{Type: registry.TypeGit, URL: "https://example.com/repo", Rev: "abc"}

	got, err := locker.Lock(context.Background(), locked)
	require.NoError(t, err)
	assert.Equal(t, locked, got)
}

func TestLockRejectsUnknownType(t *testing.T) {
	locker := New(nil)
	_, err := locker.Lock(context.Background(), registry.InputRef{Type: "svn", URL: "https://example.com"})
	assert.ErrorIs(t, err, registry.ErrInvalidInputRef)
}
