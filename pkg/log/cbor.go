package log

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Events are stored as a CBOR sequence: one self-delimiting item per event
// with no framing between them. Timestamps are RFC 3339 strings with
// nanoseconds so that ordering survives a round trip.
var eventCodec = struct {
	enc cbor.EncMode
	dec cbor.DecMode
}{
	enc: must(cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()),
	dec: must(cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}.DecMode()),
}

func must[T any](v T, err error) T {
	if err != nil {
		panic("log: invalid CBOR options: " + err.Error())
	}
	return v
}

// EncodeEvent returns the stored form of event.
func EncodeEvent(event Event) ([]byte, error) {
	return eventCodec.enc.Marshal(event)
}

// DecodeEvent parses one stored event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	err := eventCodec.dec.Unmarshal(data, &event)
	return event, err
}

// NewEncoder returns an encoder appending events to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return eventCodec.enc.NewEncoder(w)
}

// NewDecoder returns a decoder reading events from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return eventCodec.dec.NewDecoder(r)
}
