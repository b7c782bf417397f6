package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPutGetRoundTrip(t *testing.T) {
	st, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "scans/abc.json", []byte(`{"ok":true}`), "application/json"))

	data, err := st.Get(ctx, "scans/abc.json")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))
}

func TestLocalGetMissingKey(t *testing.T) {
	st, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = st.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalPutFileAndGetToFile(t *testing.T) {
	st, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	scratch := t.TempDir()
	src := filepath.Join(scratch, "archive.tar.gz")
	require.NoError(t, os.WriteFile(src, []byte("tarball bytes"), 0o644))

	require.NoError(t, st.PutFile(ctx, "archives/a.tar.gz", src, "application/gzip"))

	dest := filepath.Join(scratch, "downloaded.tar.gz")
	require.NoError(t, st.GetToFile(ctx, "archives/a.tar.gz", dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "tarball bytes", string(data))
}

func TestLocalListByPrefix(t *testing.T) {
	st, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "scans/a.json", []byte("a"), ""))
	require.NoError(t, st.Put(ctx, "scans/b.json", []byte("b"), ""))
	require.NoError(t, st.Put(ctx, "archives/c.tar.gz", []byte("c"), ""))

	keys, err := st.List(ctx, "scans/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"scans/a.json", "scans/b.json"}, keys)
}

func TestLocalListMissingPrefix(t *testing.T) {
	st, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	keys, err := st.List(context.Background(), "nothing/")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestLocalDeleteIsIdempotent(t *testing.T) {
	st, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "scans/a.json", []byte("a"), ""))
	require.NoError(t, st.Delete(ctx, "scans/a.json"))
	require.NoError(t, st.Delete(ctx, "scans/a.json"))

	_, err = st.Get(ctx, "scans/a.json")
	assert.ErrorIs(t, err, ErrNotFound)
}
