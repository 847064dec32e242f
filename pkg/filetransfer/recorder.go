package filetransfer

import (
	"context"
	"time"

	"github.com/filetransfer-tool/filetransfer-go/pkg/log"
	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

// Record describes one finished file operation.
type Record struct {
	// Operation is the kind of operation (download, upload or delete).
	Operation wire.Operation

	// Path is the file name as requested by the client.
	Path string

	// Size is the announced or actual file size in bytes.
	Size int64

	// Bytes is the number of content bytes moved.
	Bytes int64

	// SHA1 is the checksum of the content, if known.
	SHA1 string

	// Status the operation ended with.
	Status wire.Status

	// Message is the client-facing error message for failures.
	Message string

	// Interface is the server surface that handled the operation.
	Interface log.Interface

	// StartedAt is when the operation began.
	StartedAt time.Time

	// Duration is how long the operation took.
	Duration time.Duration
}

// Recorder stores finished operations. Implemented by history.Store.
type Recorder interface {
	// Record stores rec.
	Record(ctx context.Context, rec Record) error
}
