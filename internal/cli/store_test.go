package cli

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rgraph/blobstore"
	"github.com/hupe1980/rgraph/layout"
)

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()

	t.Run("plain path", func(t *testing.T) {
		s, err := OpenStore(t.Context(), dir)
		require.NoError(t, err)
		assert.IsType(t, &blobstore.LocalStore{}, s)
	})

	t.Run("file url", func(t *testing.T) {
		s, err := OpenStore(t.Context(), "file://"+filepath.ToSlash(dir))
		require.NoError(t, err)
		require.NoError(t, s.Put(t.Context(), "x", []byte("y")))
		got, err := blobstore.ReadAll(t.Context(), blobstore.NewLocalStore(dir), "x")
		require.NoError(t, err)
		assert.Equal(t, []byte("y"), got)
	})

	t.Run("memory", func(t *testing.T) {
		s, err := OpenStore(t.Context(), "mem://")
		require.NoError(t, err)
		assert.IsType(t, &blobstore.MemoryStore{}, s)
	})

	for _, loc := range []string{"", "ftp://host/x", "s3://", "minio://host:9000"} {
		t.Run("invalid "+loc, func(t *testing.T) {
			_, err := OpenStore(t.Context(), loc)
			require.Error(t, err)
		})
	}
}

func TestOpenRegistry(t *testing.T) {
	store := blobstore.NewMemoryStore()

	reg, err := OpenRegistry(t.Context(), "", store)
	require.NoError(t, err)
	assert.IsType(t, &layout.BlobRegistry{}, reg)

	_, err = OpenRegistry(t.Context(), "etcd://x", store)
	require.Error(t, err)
	_, err = OpenRegistry(t.Context(), "dynamodb://", store)
	require.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, l)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}
