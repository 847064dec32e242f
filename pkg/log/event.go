package log

import (
	"time"

	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

// Event represents a transfer log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Interface is the server surface that produced the event.
	Interface Interface `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address.
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Filename is the file the event refers to, if any.
	Filename string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection/transfer state
	Transfer    *TransferEvent    `cbor:"13,keyasint,omitempty"` // Completed or failed transfer
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including length prefix).
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated is set when Data holds only a prefix of the frame or was
	// omitted.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded protocol message at the wire layer.
type MessageEvent struct {
	// Type distinguishes request/response.
	Type MessageType `cbor:"1,keyasint"`

	// MessageID correlates the frames of one operation.
	MessageID uint32 `cbor:"2,keyasint"`

	// Operation being performed (requests only).
	Operation *wire.Operation `cbor:"3,keyasint,omitempty"`

	// Step of a streaming operation (requests only).
	Step *wire.Step `cbor:"4,keyasint,omitempty"`

	// Status code (responses only).
	Status *wire.Status `cbor:"5,keyasint,omitempty"`

	// Progress reported by a response, in percent.
	Progress *int32 `cbor:"6,keyasint,omitempty"`

	// ChunkSize is the uncompressed size of a carried chunk.
	ChunkSize int64 `cbor:"7,keyasint,omitempty"`

	// ProcessingTime is the duration from request receipt to response send
	// (response only). Stored as nanoseconds.
	ProcessingTime *time.Duration `cbor:"9,keyasint,omitempty"`
}

// RequestMessage builds a MessageEvent describing req.
func RequestMessage(req *wire.Request) *MessageEvent {
	op := req.Operation
	ev := &MessageEvent{
		Type:      MessageTypeRequest,
		MessageID: req.MessageID,
		Operation: &op,
	}
	if req.Step != wire.StepNone {
		step := req.Step
		ev.Step = &step
	}
	if req.Chunk != nil {
		ev.ChunkSize = req.Chunk.Size
	}
	return ev
}

// ResponseMessage builds a MessageEvent describing resp.
func ResponseMessage(resp *wire.Response) *MessageEvent {
	status := resp.Status
	ev := &MessageEvent{
		Type:      MessageTypeResponse,
		MessageID: resp.MessageID,
		Status:    &status,
	}
	if resp.Progress != nil {
		p := resp.Progress.State
		ev.Progress = &p
	}
	if resp.Chunk != nil {
		ev.ChunkSize = resp.Chunk.Size
	}
	return ev
}

// StateChangeEvent captures connection and transfer lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// TransferEvent summarizes one finished file operation.
type TransferEvent struct {
	// Operation performed.
	Operation wire.Operation `cbor:"1,keyasint"`

	// Size is the file size in bytes.
	Size int64 `cbor:"2,keyasint"`

	// Bytes is the number of bytes actually transferred.
	Bytes int64 `cbor:"3,keyasint"`

	// SHA1 of the transferred content, if computed.
	SHA1 string `cbor:"4,keyasint,omitempty"`

	// Status the operation ended with.
	Status wire.Status `cbor:"5,keyasint"`

	// Duration of the operation in nanoseconds.
	Duration time.Duration `cbor:"6,keyasint"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the protocol status code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
