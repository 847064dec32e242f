package wire

import (
	"fmt"
)

// MessageID 0 is reserved and never used by a valid request.
const ReservedMessageID uint32 = 0

// Request represents a message from client to server.
//
// CBOR encoding:
//
//	{
//	  1: messageId,    // uint32, shared by all frames of one operation
//	  2: operation,    // uint8
//	  3: step,         // uint8, streaming operations only
//	  4: filename,     // text
//	  5: chunkSize,    // uint32, download only (0 = default)
//	  6: computeSha1,  // bool
//	  7: fileInfo,     // upload Initialize
//	  8: chunk,        // upload SendData
//	  9: encoding,     // preferred download chunk encoding
//	  10: version      // Hello only
//	}
type Request struct {
	MessageID   uint32     `cbor:"1,keyasint"`
	Operation   Operation  `cbor:"2,keyasint"`
	Step        Step       `cbor:"3,keyasint,omitempty"`
	Filename    string     `cbor:"4,keyasint,omitempty"`
	ChunkSize   uint32     `cbor:"5,keyasint,omitempty"`
	ComputeSHA1 bool       `cbor:"6,keyasint,omitempty"`
	FileInfo    *FileInfo  `cbor:"7,keyasint,omitempty"`
	Chunk       *FileChunk `cbor:"8,keyasint,omitempty"`
	Encoding    Encoding   `cbor:"9,keyasint,omitempty"`
	Version     string     `cbor:"10,keyasint,omitempty"`
}

// Validate checks if the request is well formed.
func (r *Request) Validate() error {
	if r.MessageID == ReservedMessageID {
		return fmt.Errorf("messageId 0 is reserved")
	}
	if !r.Operation.IsValid() {
		return fmt.Errorf("invalid operation: %d", r.Operation)
	}
	if r.Operation.IsStreaming() {
		if !r.Step.IsValid() {
			return fmt.Errorf("%s requires a step, got %d", r.Operation, r.Step)
		}
	} else if r.Step != StepNone {
		return fmt.Errorf("%s does not take a step", r.Operation)
	}
	if !r.Encoding.IsValid() {
		return fmt.Errorf("invalid encoding: %d", r.Encoding)
	}
	return nil
}

// Response represents a message from server to client.
//
// CBOR encoding:
//
//	{
//	  1: messageId,    // uint32, matches request
//	  2: status,       // uint8, 0 = OK
//	  3: message,      // text, error detail
//	  4: progress,     // streaming operations
//	  5: fileInfo,
//	  6: chunk,        // download ReceiveData
//	  7: exists,       // GetFileInfo
//	  8: version       // Hello
//	}
type Response struct {
	MessageID uint32     `cbor:"1,keyasint"`
	Status    Status     `cbor:"2,keyasint"`
	Message   string     `cbor:"3,keyasint,omitempty"`
	Progress  *Progress  `cbor:"4,keyasint,omitempty"`
	FileInfo  *FileInfo  `cbor:"5,keyasint,omitempty"`
	Chunk     *FileChunk `cbor:"6,keyasint,omitempty"`
	Exists    bool       `cbor:"7,keyasint,omitempty"`
	Version   string     `cbor:"8,keyasint,omitempty"`
}

// IsSuccess returns true if the response indicates success.
func (r *Response) IsSuccess() bool {
	return r.Status.IsSuccess()
}

// ErrorResponse builds a response carrying a failure status.
func ErrorResponse(messageID uint32, status Status, message string) *Response {
	return &Response{MessageID: messageID, Status: status, Message: message}
}

// FileInfo describes a file.
type FileInfo struct {
	Name string `cbor:"1,keyasint"`
	Size int64  `cbor:"2,keyasint"`
	SHA1 string `cbor:"3,keyasint,omitempty"` // lower-case hex, empty if not computed
}

// Progress is the completion state of a transfer in percent (0 to 100).
type Progress struct {
	State int32 `cbor:"1,keyasint"`
}

// NewProgress returns a Progress with the given state.
func NewProgress(state int32) *Progress {
	return &Progress{State: state}
}
