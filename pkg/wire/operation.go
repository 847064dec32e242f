package wire

// Operation represents a file-transfer protocol operation.
type Operation uint8

const (
	// OpHello exchanges versions. Sent once after connecting.
	OpHello Operation = 1

	// OpGetFileInfo returns existence, size and optionally SHA1 of a file.
	OpGetFileInfo Operation = 2

	// OpDeleteFile removes a regular file.
	OpDeleteFile Operation = 3

	// OpDownloadFile streams a file from server to client.
	OpDownloadFile Operation = 4

	// OpUploadFile streams a file from client to server.
	OpUploadFile Operation = 5
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpHello:
		return "Hello"
	case OpGetFileInfo:
		return "GetFileInfo"
	case OpDeleteFile:
		return "DeleteFile"
	case OpDownloadFile:
		return "DownloadFile"
	case OpUploadFile:
		return "UploadFile"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the operation is a known operation.
func (o Operation) IsValid() bool {
	return o >= OpHello && o <= OpUploadFile
}

// IsStreaming returns true for operations that span several frames.
func (o Operation) IsStreaming() bool {
	return o == OpDownloadFile || o == OpUploadFile
}

// Step identifies the phase of a streaming operation.
type Step uint8

const (
	// StepNone is used by unary operations.
	StepNone Step = 0

	// StepInitialize opens a transfer.
	StepInitialize Step = 1

	// StepReceiveData asks the server for the file content (download).
	StepReceiveData Step = 2

	// StepSendData carries one chunk from the client (upload).
	StepSendData Step = 3

	// StepFinalize closes a transfer.
	StepFinalize Step = 4
)

// String returns the step name.
func (s Step) String() string {
	switch s {
	case StepNone:
		return "None"
	case StepInitialize:
		return "Initialize"
	case StepReceiveData:
		return "ReceiveData"
	case StepSendData:
		return "SendData"
	case StepFinalize:
		return "Finalize"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the step is a known streaming step.
func (s Step) IsValid() bool {
	return s >= StepInitialize && s <= StepFinalize
}
