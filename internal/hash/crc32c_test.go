package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC32C(t *testing.T) {
	// Check value from RFC 3720 B.4.
	assert.Equal(t, uint32(0xE3069283), CRC32C([]byte("123456789")))

	h := NewCRC32C()
	_, err := h.Write([]byte("1234"))
	require.NoError(t, err)
	_, err = h.Write([]byte("56789"))
	require.NoError(t, err)
	assert.Equal(t, uint32(0xE3069283), h.Sum32())
}

func TestTrailer(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		b := AppendCRC32C([]byte("vertex"))
		require.Len(t, b, 6+TrailerSize)

		payload, got, want, ok := SplitCRC32C(b)
		require.True(t, ok)
		assert.Equal(t, got, want)
		assert.Equal(t, []byte("vertex"), payload)
	})

	t.Run("flipped byte", func(t *testing.T) {
		b := AppendCRC32C([]byte("vertex"))
		b[0] ^= 0xff
		_, got, want, ok := SplitCRC32C(b)
		assert.False(t, ok)
		assert.NotEqual(t, got, want)
	})

	t.Run("short", func(t *testing.T) {
		_, _, _, ok := SplitCRC32C([]byte{1, 2})
		assert.False(t, ok)
	})
}
