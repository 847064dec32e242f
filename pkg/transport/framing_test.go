package transport

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filetransfer-tool/filetransfer-go/pkg/log"
)

func TestFrameRoundTrip(t *testing.T) {
	for _, payload := range [][]byte{
		{0x42},
		[]byte("hello"),
		bytes.Repeat([]byte("y"), 1024),
		bytes.Repeat([]byte("c"), 1<<16),
	} {
		buf := new(bytes.Buffer)
		f := NewFramer(buf, FrameOptions{})
		require.NoError(t, f.WriteFrame(payload))
		assert.Equal(t, FrameSize(len(payload)), buf.Len())
		assert.Equal(t, uint32(len(payload)), binary.BigEndian.Uint32(buf.Bytes()))

		got, err := f.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	}
}

func TestFrameWriteLimits(t *testing.T) {
	f := NewFramer(new(bytes.Buffer), FrameOptions{MaxSize: 8})

	assert.ErrorIs(t, f.WriteFrame(nil), ErrFrameEmpty)
	assert.ErrorIs(t, f.WriteFrame(make([]byte, 9)), ErrFrameTooLarge)
	assert.NoError(t, f.WriteFrame(make([]byte, 8)))
}

func TestFrameReadErrors(t *testing.T) {
	prefix := func(n uint32) []byte {
		return binary.BigEndian.AppendUint32(nil, n)
	}

	tests := []struct {
		name    string
		input   []byte
		wantErr error
	}{
		{"eof", nil, io.EOF},
		{"zero length", prefix(0), ErrFrameEmpty},
		{"too large", prefix(DefaultMaxMessageSize + 1), ErrFrameTooLarge},
		{"truncated prefix", []byte{0, 0}, ErrFrameTruncated},
		{"truncated payload", append(prefix(10), 1, 2, 3), ErrFrameTruncated},
		{"missing payload", prefix(3), ErrFrameTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw := struct {
				io.Reader
				io.Writer
			}{bytes.NewReader(tt.input), io.Discard}
			_, err := NewFramer(rw, FrameOptions{}).ReadFrame()
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFrameReadLimit(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, NewFramer(buf, FrameOptions{}).WriteFrame(make([]byte, 100)))

	_, err := NewFramer(buf, FrameOptions{MaxSize: 50}).ReadFrame()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestFramerOverPipe(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	writer := NewFramer(a, FrameOptions{})
	reader := NewFramer(b, FrameOptions{})

	msgs := [][]byte{[]byte("one"), []byte("two"), bytes.Repeat([]byte("3"), 70000)}
	go func() {
		for _, m := range msgs {
			_ = writer.WriteFrame(m)
		}
		a.Close()
	}()

	for _, want := range msgs {
		got, err := reader.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := reader.ReadFrame()
	assert.Equal(t, io.EOF, err)
}

func TestFramerConcurrentWrites(t *testing.T) {
	buf := &lockedBuffer{}
	f := NewFramer(buf, FrameOptions{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(b byte) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = f.WriteFrame(bytes.Repeat([]byte{b}, 100+int(b)))
			}
		}(byte(i))
	}
	wg.Wait()

	r := NewFramer(bytes.NewBuffer(buf.Bytes()), FrameOptions{})
	for i := 0; i < 8*50; i++ {
		frame, err := r.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, bytes.Repeat(frame[:1], len(frame)), frame, "frames must not interleave")
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Read(p)
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

// capturingLogger captures log events for testing.
type capturingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *capturingLogger) Log(event log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *capturingLogger) Events() []log.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]log.Event(nil), l.events...)
}

func TestFramerLogsFrames(t *testing.T) {
	logger := &capturingLogger{}
	f := NewFramer(new(bytes.Buffer), FrameOptions{Logger: logger, ConnID: "conn-7"})

	require.NoError(t, f.WriteFrame([]byte("hello")))
	_, err := f.ReadFrame()
	require.NoError(t, err)

	events := logger.Events()
	require.Len(t, events, 2)
	assert.Equal(t, log.DirectionOut, events[0].Direction)
	assert.Equal(t, log.DirectionIn, events[1].Direction)
	for _, e := range events {
		assert.Equal(t, "conn-7", e.ConnectionID)
		assert.Equal(t, log.LayerTransport, e.Layer)
		require.NotNil(t, e.Frame)
		assert.Equal(t, FrameSize(5), e.Frame.Size)
		assert.Equal(t, []byte("hello"), e.Frame.Data)
		assert.False(t, e.Frame.Truncated)
	}
}

func TestFramerLogsTruncatedData(t *testing.T) {
	logger := &capturingLogger{}
	f := NewFramer(new(bytes.Buffer), FrameOptions{Logger: logger, ConnID: "big"})

	payload := bytes.Repeat([]byte("z"), maxLoggedFrameData+10)
	require.NoError(t, f.WriteFrame(payload))

	events := logger.Events()
	require.Len(t, events, 1)
	assert.True(t, events[0].Frame.Truncated)
	assert.Len(t, events[0].Frame.Data, maxLoggedFrameData)
	assert.Equal(t, FrameSize(len(payload)), events[0].Frame.Size)
}

func BenchmarkFrameWrite(b *testing.B) {
	buf := new(bytes.Buffer)
	f := NewFramer(buf, FrameOptions{})
	payload := bytes.Repeat([]byte("x"), 1<<16)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		_ = f.WriteFrame(payload)
	}
}
