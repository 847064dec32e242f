package wire

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeChunkIdentity(t *testing.T) {
	data := []byte("hello world")
	chunk, err := EncodeChunk(42, data, EncodingIdentity)
	require.NoError(t, err)

	assert.Equal(t, int64(42), chunk.Offset)
	assert.Equal(t, int64(len(data)), chunk.Size)
	assert.Equal(t, EncodingIdentity, chunk.Encoding)

	out, err := chunk.Decode()
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestEncodeChunkZstd(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 4096)
	chunk, err := EncodeChunk(0, data, EncodingZstd)
	require.NoError(t, err)

	assert.Equal(t, EncodingZstd, chunk.Encoding)
	assert.Less(t, len(chunk.Data), len(data))
	assert.Equal(t, int64(len(data)), chunk.Size)

	out, err := chunk.Decode()
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestEncodeChunkZstdIncompressibleFallsBack(t *testing.T) {
	data := make([]byte, 256)
	_, err := rand.Read(data)
	require.NoError(t, err)

	chunk, err := EncodeChunk(0, data, EncodingZstd)
	require.NoError(t, err)
	assert.Equal(t, EncodingIdentity, chunk.Encoding)
	assert.Equal(t, data, chunk.Data)
}

func TestEncodeChunkTooLarge(t *testing.T) {
	_, err := EncodeChunk(0, make([]byte, MaxChunkSize+1), EncodingIdentity)
	assert.True(t, errors.Is(err, ErrChunkTooLarge))
}

func TestDecodeChunkSizeMismatch(t *testing.T) {
	chunk := &FileChunk{Size: 10, Data: []byte("short")}
	_, err := chunk.Decode()
	assert.ErrorIs(t, err, ErrChunkSizeInvalid)

	data := bytes.Repeat([]byte{'z'}, 1000)
	chunk, err = EncodeChunk(0, data, EncodingZstd)
	require.NoError(t, err)
	chunk.Size = 999
	_, err = chunk.Decode()
	assert.ErrorIs(t, err, ErrChunkSizeInvalid)
}

func TestDecodeChunkCorrupt(t *testing.T) {
	chunk := &FileChunk{Size: 4, Data: []byte{1, 2, 3, 4}, Encoding: EncodingZstd}
	_, err := chunk.Decode()
	assert.Error(t, err)
}

func TestParseEncoding(t *testing.T) {
	for in, want := range map[string]Encoding{"": EncodingIdentity, "identity": EncodingIdentity, "none": EncodingIdentity, "zstd": EncodingZstd} {
		got, err := ParseEncoding(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseEncoding("gzip")
	assert.Error(t, err)
}
