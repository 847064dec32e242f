package wire

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Chunk size limits.
const (
	// DefaultChunkSize is used when a download request asks for chunk size 0.
	DefaultChunkSize = 1 << 16

	// MaxChunkSize is the largest uncompressed chunk either side accepts.
	MaxChunkSize = 4 << 20
)

// Encoding identifies how chunk data is encoded on the wire.
type Encoding uint8

const (
	// EncodingIdentity sends chunk data verbatim.
	EncodingIdentity Encoding = 0

	// EncodingZstd sends zstd-compressed chunk data.
	EncodingZstd Encoding = 1
)

// String returns the encoding name.
func (e Encoding) String() string {
	switch e {
	case EncodingIdentity:
		return "identity"
	case EncodingZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// IsValid returns true if the encoding is known.
func (e Encoding) IsValid() bool {
	return e == EncodingIdentity || e == EncodingZstd
}

// ParseEncoding parses an encoding name as accepted on the command line.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "", "identity", "none":
		return EncodingIdentity, nil
	case "zstd":
		return EncodingZstd, nil
	default:
		return EncodingIdentity, fmt.Errorf("unknown chunk encoding %q", s)
	}
}

// Chunk encoding errors.
var (
	ErrChunkTooLarge    = errors.New("chunk exceeds maximum chunk size")
	ErrChunkSizeInvalid = errors.New("decoded chunk size does not match announced size")
)

// FileChunk is one piece of file content.
//
// Size is the uncompressed length of Data. For EncodingIdentity it equals
// len(Data).
type FileChunk struct {
	Offset   int64    `cbor:"1,keyasint"`
	Size     int64    `cbor:"2,keyasint"`
	Data     []byte   `cbor:"3,keyasint"`
	Encoding Encoding `cbor:"4,keyasint,omitempty"`
}

// Shared zstd coders. Both are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create zstd encoder: %v", err))
	}

	zstdDecoder, err = zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(MaxChunkSize),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create zstd decoder: %v", err))
	}
}

// EncodeChunk builds a chunk for data at offset using the requested
// encoding. Zstd falls back to identity when compression does not shrink
// the data.
func EncodeChunk(offset int64, data []byte, enc Encoding) (*FileChunk, error) {
	if len(data) > MaxChunkSize {
		return nil, ErrChunkTooLarge
	}
	chunk := &FileChunk{Offset: offset, Size: int64(len(data)), Data: data}
	switch enc {
	case EncodingIdentity:
	case EncodingZstd:
		compressed := zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)))
		if len(compressed) < len(data) {
			chunk.Data = compressed
			chunk.Encoding = EncodingZstd
		}
	default:
		return nil, fmt.Errorf("invalid encoding: %d", enc)
	}
	return chunk, nil
}

// Decode returns the uncompressed chunk content.
func (c *FileChunk) Decode() ([]byte, error) {
	if c.Size < 0 || c.Size > MaxChunkSize {
		return nil, ErrChunkTooLarge
	}
	switch c.Encoding {
	case EncodingIdentity:
		if int64(len(c.Data)) != c.Size {
			return nil, ErrChunkSizeInvalid
		}
		return c.Data, nil
	case EncodingZstd:
		out, err := zstdDecoder.DecodeAll(c.Data, make([]byte, 0, c.Size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if int64(len(out)) != c.Size {
			return nil, ErrChunkSizeInvalid
		}
		return out, nil
	default:
		return nil, fmt.Errorf("invalid encoding: %d", c.Encoding)
	}
}
