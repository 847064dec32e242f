// Package digest computes file checksums used to verify transfers.
package digest

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
)

// DefaultBlockSize is the read size used by SHA1Hex.
const DefaultBlockSize = 1024

// EmptySHA1 is the SHA1 hex digest of zero bytes.
const EmptySHA1 = "da39a3ee5e6b4b0d3255bfef95601890afd80709"

// SHA1Hex returns the lower-case hex SHA1 digest of the file at path.
func SHA1Hex(path string) (string, error) {
	return SHA1HexBlock(path, DefaultBlockSize)
}

// SHA1HexBlock is SHA1Hex with an explicit read block size.
func SHA1HexBlock(path string, blockSize int) (string, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha1.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, blockSize)); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Writer hashes everything written to it. It is used to digest a
// transfer while it streams.
type Writer struct {
	h hash.Hash
	n int64
}

// NewWriter returns an empty SHA1 Writer.
func NewWriter() *Writer {
	return &Writer{h: sha1.New()}
}

// Write adds p to the digest.
func (w *Writer) Write(p []byte) (int, error) {
	n, _ := w.h.Write(p)
	w.n += int64(n)
	return n, nil
}

// Len returns the number of bytes hashed so far.
func (w *Writer) Len() int64 {
	return w.n
}

// Hex returns the lower-case hex digest of the bytes written so far.
func (w *Writer) Hex() string {
	return hex.EncodeToString(w.h.Sum(nil))
}

// Equal reports whether two hex digests are equal, ignoring case.
func Equal(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'F' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'F' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
