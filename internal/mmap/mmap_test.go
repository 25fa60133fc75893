package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapAnon(t *testing.T) {
	t.Run("zero filled and writable", func(t *testing.T) {
		m, err := MapAnon(1 << 16)
		require.NoError(t, err)
		defer m.Close()

		data := m.Bytes()
		require.Len(t, data, 1<<16)
		assert.True(t, m.Writable())
		for _, b := range data[:4096] {
			require.Zero(t, b)
		}

		data[100] = 42
		buf := make([]byte, 1)
		_, err = m.ReadAt(buf, 100)
		require.NoError(t, err)
		assert.Equal(t, byte(42), buf[0])

		assert.NoError(t, m.Advise(AccessRandom))
	})

	t.Run("invalid size", func(t *testing.T) {
		_, err := MapAnon(0)
		assert.ErrorIs(t, err, ErrInvalidSize)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		m, err := MapAnon(4096)
		require.NoError(t, err)

		require.NoError(t, m.Close())
		require.NoError(t, m.Close())
		assert.Nil(t, m.Bytes())
		assert.ErrorIs(t, m.Advise(AccessSequential), ErrClosed)

		_, err = m.ReadAt(make([]byte, 1), 0)
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestOpen(t *testing.T) {
	content := []byte("region image")
	path := filepath.Join(t.TempDir(), "image.bin")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	assert.False(t, m.Writable())
	assert.Equal(t, len(content), m.Size())
	assert.Equal(t, content, m.Bytes())

	buf := make([]byte, 5)
	n, err := m.ReadAt(buf, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "image", string(buf))

	n, err = m.ReadAt(make([]byte, 10), 7)
	assert.Equal(t, 5, n)
	assert.Equal(t, io.EOF, err)

	_, err = m.ReadAt(buf, -1)
	assert.ErrorIs(t, err, ErrInvalidOffset)
}

func TestOpen_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	m, err := Open(path)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 0, m.Size())
	assert.Nil(t, m.Bytes())
}
