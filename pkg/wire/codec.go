package wire

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Messages are small maps with integer keys; anything nested deeper or
// wider than this is not a valid frame.
const (
	maxNesting  = 8
	maxMapPairs = 64
)

var (
	// Canonical key order makes equal messages encode to equal bytes.
	encMode = mustEncMode(cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	})

	// Unknown keys are ignored so newer peers can add fields.
	decMode = mustDecMode(cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyQuiet,
		IndefLength:     cbor.IndefLengthAllowed,
		MaxNestedLevels: maxNesting,
		MaxMapPairs:     maxMapPairs,
	})
)

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	m, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: CBOR encoder options: %v", err))
	}
	return m
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	m, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: CBOR decoder options: %v", err))
	}
	return m
}

// Marshal encodes v with the message encoding rules.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes data into v with the message decoding rules.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// EncodeRequest validates req and encodes it.
func EncodeRequest(req *Request) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return Marshal(req)
}

// DecodeRequest decodes and validates a request. A request that decodes but
// fails validation is returned along with the error, so the caller can
// still answer on its MessageID.
func DecodeRequest(data []byte) (*Request, error) {
	req := new(Request)
	if err := Unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return req, fmt.Errorf("invalid request: %w", err)
	}
	return req, nil
}

// EncodeResponse encodes resp.
func EncodeResponse(resp *Response) ([]byte, error) {
	return Marshal(resp)
}

// DecodeResponse decodes a response.
func DecodeResponse(data []byte) (*Response, error) {
	resp := new(Response)
	if err := Unmarshal(data, resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// SameEncoding reports whether a and b encode to identical bytes.
func SameEncoding(a, b any) bool {
	x, err := Marshal(a)
	if err != nil {
		return false
	}
	y, err := Marshal(b)
	return err == nil && bytes.Equal(x, y)
}
