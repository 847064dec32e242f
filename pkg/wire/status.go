package wire

// Status represents a response status code.
type Status uint8

const (
	// StatusOK indicates the operation completed successfully.
	StatusOK Status = 0

	// StatusInvalidArgument indicates a malformed or out-of-range request.
	StatusInvalidArgument Status = 1

	// StatusFailedPrecondition indicates the file system is not in the
	// state required by the operation.
	StatusFailedPrecondition Status = 2

	// StatusNotFound indicates the requested file does not exist.
	StatusNotFound Status = 3

	// StatusDataLoss indicates the transferred content does not match its
	// announced checksum.
	StatusDataLoss Status = 4

	// StatusInternal indicates an unexpected server-side failure.
	StatusInternal Status = 5

	// StatusUnknown indicates an unclassified error.
	StatusUnknown Status = 6

	// StatusUnimplemented indicates the operation is not supported.
	StatusUnimplemented Status = 7
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusInvalidArgument:
		return "INVALID_ARGUMENT"
	case StatusFailedPrecondition:
		return "FAILED_PRECONDITION"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusDataLoss:
		return "DATA_LOSS"
	case StatusInternal:
		return "INTERNAL"
	case StatusUnimplemented:
		return "UNIMPLEMENTED"
	default:
		return "UNKNOWN"
	}
}

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusOK
}

// IsError returns true if the status indicates an error.
func (s Status) IsError() bool {
	return s != StatusOK
}
