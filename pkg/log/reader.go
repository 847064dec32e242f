package log

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// ErrTruncated is returned by Reader.Next when the file ends inside an
// event, as it does when the writing process was killed. All events before
// it were returned normally.
var ErrTruncated = errors.New("event log ends with a truncated event")

// Reader iterates over the events of a .ftlog file.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
	read    int
}

// NewReader opens path and reads every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens path and reads the events that match filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: NewDecoder(bufio.NewReaderSize(f, 64<<10)),
		filter:  filter,
	}, nil
}

// Next returns the next matching event, io.EOF after the last one, or
// ErrTruncated for a partial trailing event.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		err := r.decoder.Decode(&event)
		switch {
		case err == io.EOF:
			return Event{}, io.EOF
		case errors.Is(err, io.ErrUnexpectedEOF):
			return Event{}, ErrTruncated
		case err != nil:
			return Event{}, fmt.Errorf("event %d: %w", r.read+1, err)
		}
		r.read++
		if r.filter.Match(event) {
			return event, nil
		}
	}
}

// All iterates over the remaining matching events. Iteration stops after
// the first error, which is yielded with a zero Event; io.EOF is not
// yielded.
func (r *Reader) All() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			event, err := r.Next()
			if err == io.EOF {
				return
			}
			if !yield(event, err) || err != nil {
				return
			}
		}
	}
}

// Decoded returns the number of events decoded so far, matching or not.
func (r *Reader) Decoded() int {
	return r.read
}

// Close closes the file.
func (r *Reader) Close() error {
	return r.file.Close()
}
