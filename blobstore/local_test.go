package blobstore

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStore_Lifecycle(t *testing.T) {
	tmpDir := t.TempDir()
	store := NewLocalStore(tmpDir)
	ctx := t.Context()

	blobName := "snapshots/region-001.snap"
	data := []byte("hello world, this is a region image")

	w, err := store.Create(ctx, blobName)
	require.NoError(t, err)

	n, err := w.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
	require.NoError(t, w.Close())

	_, err = os.Stat(filepath.Join(tmpDir, "snapshots", "region-001.snap"))
	require.NoError(t, err)

	blob, err := store.Open(ctx, blobName)
	require.NoError(t, err)
	defer blob.Close()

	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err = blob.ReadAt(ctx, buf, 6)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "world", string(buf))

	rangeReader, err := blob.ReadRange(ctx, 13, 4)
	require.NoError(t, err)
	defer rangeReader.Close()

	rangeContent, err := io.ReadAll(rangeReader)
	require.NoError(t, err)
	require.Equal(t, "this", string(rangeContent))

	require.NoError(t, store.Put(ctx, "layout", []byte("descriptor")))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"layout", blobName}, names)

	names, err = store.List(ctx, "snapshots/")
	require.NoError(t, err)
	require.Equal(t, []string{blobName}, names)

	require.NoError(t, store.Delete(ctx, "layout"))
	require.NoError(t, store.Delete(ctx, "layout"))

	_, err = store.Open(ctx, "layout")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_ReadRangeBoundaries(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := t.Context()

	require.NoError(t, store.Put(ctx, "boundary.bin", []byte("0123456789")))

	blob, err := store.Open(ctx, "boundary.bin")
	require.NoError(t, err)
	defer blob.Close()

	r, err := blob.ReadRange(ctx, 8, 5)
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "89", string(content))
	require.NoError(t, r.Close())

	_, err = blob.ReadRange(ctx, 20, 5)
	require.ErrorIs(t, err, io.EOF)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := t.Context()

	src := []byte("abc")
	require.NoError(t, store.Put(ctx, "a", src))
	src[0] = 'x'

	got, err := ReadAll(ctx, store, "a")
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))

	w, err := store.Create(ctx, "b")
	require.NoError(t, err)
	_, err = w.Write([]byte("streamed"))
	require.NoError(t, err)

	_, err = store.Open(ctx, "b")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, w.Close())

	got, err = ReadAll(ctx, store, "b")
	require.NoError(t, err)
	require.Equal(t, "streamed", string(got))

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, names)

	require.NoError(t, store.Delete(ctx, "a"))
	_, err = ReadAll(ctx, store, "a")
	require.ErrorIs(t, err, ErrNotFound)
}
