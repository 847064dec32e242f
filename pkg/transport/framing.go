package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/filetransfer-tool/filetransfer-go/pkg/log"
)

// A frame is a 4-byte big-endian payload length followed by the payload,
// one CBOR message.
const (
	prefixLen = 4

	// DefaultMaxMessageSize leaves room for a maximum-size chunk plus
	// message overhead.
	DefaultMaxMessageSize = 8 << 20

	// maxLoggedFrameData bounds the payload bytes copied into frame events.
	maxLoggedFrameData = 4096
)

// Framing errors.
var (
	ErrFrameEmpty     = errors.New("empty frame")
	ErrFrameTooLarge  = errors.New("frame too large")
	ErrFrameTruncated = errors.New("frame truncated")
)

// FrameOptions configures NewFramer.
type FrameOptions struct {
	// MaxSize bounds the payload in both directions (default:
	// DefaultMaxMessageSize).
	MaxSize uint32

	// Logger receives a transport-layer event per frame (optional).
	Logger log.Logger

	// ConnID tags the logged events.
	ConnID string
}

// Framer reads and writes frames on one connection. Reads must come from a
// single goroutine; writes may be concurrent.
type Framer struct {
	rw     io.ReadWriter
	opts   FrameOptions
	prefix [prefixLen]byte

	wmu  sync.Mutex
	wbuf []byte
}

// NewFramer returns a Framer over rw.
func NewFramer(rw io.ReadWriter, opts FrameOptions) *Framer {
	if opts.MaxSize == 0 {
		opts.MaxSize = DefaultMaxMessageSize
	}
	return &Framer{rw: rw, opts: opts}
}

// FrameSize returns the on-wire size of a frame carrying n payload bytes.
func FrameSize(n int) int {
	return prefixLen + n
}

func (f *Framer) checkSize(n uint32) error {
	switch {
	case n == 0:
		return ErrFrameEmpty
	case n > f.opts.MaxSize:
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFrameTooLarge, n, f.opts.MaxSize)
	}
	return nil
}

// ReadFrame returns the next payload. A clean end of stream between frames
// is io.EOF; an end inside a frame is ErrFrameTruncated.
func (f *Framer) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(f.rw, f.prefix[:]); err != nil {
		return nil, readErr(err, err == io.EOF)
	}
	n := binary.BigEndian.Uint32(f.prefix[:])
	if err := f.checkSize(n); err != nil {
		return nil, err
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(f.rw, payload); err != nil {
		return nil, readErr(err, false)
	}
	f.log(payload, log.DirectionIn)
	return payload, nil
}

func readErr(err error, clean bool) error {
	switch {
	case clean:
		return io.EOF
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return ErrFrameTruncated
	default:
		return fmt.Errorf("read frame: %w", err)
	}
}

// WriteFrame writes payload as one frame. Prefix and payload go out in a
// single Write so a TLS record never holds a bare prefix.
func (f *Framer) WriteFrame(payload []byte) error {
	if err := f.checkSize(uint32(min(len(payload), int(^uint32(0))))); err != nil {
		return err
	}

	f.wmu.Lock()
	defer f.wmu.Unlock()
	f.wbuf = binary.BigEndian.AppendUint32(f.wbuf[:0], uint32(len(payload)))
	f.wbuf = append(f.wbuf, payload...)
	if _, err := f.rw.Write(f.wbuf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	f.log(payload, log.DirectionOut)
	return nil
}

func (f *Framer) log(payload []byte, dir log.Direction) {
	if f.opts.Logger == nil {
		return
	}
	ev := &log.FrameEvent{Size: FrameSize(len(payload))}
	if len(payload) > maxLoggedFrameData {
		ev.Data, ev.Truncated = payload[:maxLoggedFrameData], true
	} else {
		ev.Data = payload
	}
	f.opts.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: f.opts.ConnID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame:        ev,
	})
}
