package log

import (
	"fmt"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLoggerOptions configures OpenFileLogger.
type FileLoggerOptions struct {
	// OmitFrameData drops raw frame bytes and keeps only frame sizes.
	// Chunk frames otherwise dominate the file during large transfers.
	OmitFrameData bool
}

// FileLogger appends events to a .ftlog file as a CBOR sequence. It is safe
// for concurrent use. Log never fails; the first encoding or write error is
// kept and reported by Err and Close.
type FileLogger struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	opts    FileLoggerOptions
	written int
	err     error
	closed  bool
}

// NewFileLogger opens path for appending with default options.
func NewFileLogger(path string) (*FileLogger, error) {
	return OpenFileLogger(path, FileLoggerOptions{})
}

// OpenFileLogger opens path for appending, creating it with mode 0644.
func OpenFileLogger(path string, opts FileLoggerOptions) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{file: f, encoder: NewEncoder(f), opts: opts}, nil
}

// Log appends event. Events logged after Close are dropped.
func (l *FileLogger) Log(event Event) {
	if l.opts.OmitFrameData && event.Frame != nil && len(event.Frame.Data) > 0 {
		frame := *event.Frame
		frame.Data, frame.Truncated = nil, true
		event.Frame = &frame
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	if err := l.encoder.Encode(event); err != nil {
		if l.err == nil {
			l.err = fmt.Errorf("write event %d: %w", l.written+1, err)
		}
		return
	}
	l.written++
}

// Written returns the number of events stored so far.
func (l *FileLogger) Written() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

// Err returns the first error Log ran into, if any.
func (l *FileLogger) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Close closes the file and returns the first write error, if any. Further
// calls return nil.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.file.Close(); err != nil && l.err == nil {
		l.err = err
	}
	return l.err
}

// Compile-time interface satisfaction check.
var _ Logger = (*FileLogger)(nil)
