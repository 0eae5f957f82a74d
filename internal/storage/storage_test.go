package storage

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanName(t *testing.T) {
	for _, bad := range []string{"", ".", "..", "../etc/passwd", `a\b`, "dir/file.png", ".hidden"} {
		_, err := CleanName(bad)
		assert.ErrorIs(t, err, ErrInvalidName, bad)
	}

	name, err := CleanName("3f2a.png")
	require.NoError(t, err)
	assert.Equal(t, "3f2a.png", name)
}

func TestNameFromURL(t *testing.T) {
	name, err := NameFromURL(URL("abc.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "abc.jpg", name)
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "scan.png", []byte("pixels")))

	f, _, err := store.Open(ctx, "scan.png")
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "pixels", string(data))

	require.NoError(t, store.Remove(ctx, "scan.png"))
	_, _, err = store.Open(ctx, "scan.png")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Remove(ctx, "scan.png"), ErrNotFound)
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	assert.ErrorIs(t, store.Save(context.Background(), "../escape.png", []byte("x")), ErrInvalidName)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	require.NoError(t, store.Save(ctx, "a.png", []byte("1")))
	assert.Equal(t, 1, store.Len())
	require.NoError(t, store.Remove(ctx, "a.png"))
	assert.Equal(t, 0, store.Len())
}

func TestRemoveURLsIgnoresMissing(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()
	require.NoError(t, store.Save(ctx, "a.png", []byte("1")))

	RemoveURLs(ctx, store, URL("a.png"), URL("gone.png"), "/etc/../")
	assert.Equal(t, 0, store.Len())
}
