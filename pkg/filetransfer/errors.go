package filetransfer

import (
	"errors"
	"fmt"

	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

// Messages returned to clients. They are part of the protocol surface and
// matched by clients and tests.
const (
	MsgFileNotFound       = "The desired file does not exist."
	MsgOpenOutput         = "Could not open output file."
	MsgTooMuchData        = "Received more data than the specified file size."
	MsgIncorrectByteCount = "Received an incorrect number of bytes."
	MsgChecksumMismatch   = "Checksum of the received file does not match expected value."
	MsgStreamStopped      = "Request stream stopped prematurely."
	MsgIncorrectStep      = "Incorrect request step."
	MsgUploadNotInit      = "Upload stream did not start with an initialize step."
	MsgUploadNotFinalize  = "Unexpected upload step, should be 'finalize'."
)

// Error is a failure that carries a protocol status code.
type Error struct {
	Status  wire.Status
	Message string

	// Err is the underlying cause, if any. It is not sent to clients.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same status and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Status == t.Status && e.Message == t.Message
}

// NewError returns an error with the given status and message.
func NewError(status wire.Status, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Errorf returns an error with the given status and a formatted message.
func Errorf(status wire.Status, format string, args ...any) *Error {
	return &Error{Status: status, Message: fmt.Sprintf(format, args...)}
}

// wrapError returns an error with the given status and message caused by err.
func wrapError(status wire.Status, message string, err error) *Error {
	return &Error{Status: status, Message: message, Err: err}
}

// StatusOf maps err to a protocol status. nil is StatusOK; errors that do
// not carry a status are StatusUnknown.
func StatusOf(err error) wire.Status {
	if err == nil {
		return wire.StatusOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return wire.StatusUnknown
}

// MessageOf returns the client-facing message for err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// ErrorFromResponse converts a failed response into an *Error. It returns
// nil for successful responses.
func ErrorFromResponse(resp *wire.Response) error {
	if resp == nil || resp.IsSuccess() {
		return nil
	}
	return &Error{Status: resp.Status, Message: resp.Message}
}
