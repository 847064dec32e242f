package filetransfer

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/filetransfer-tool/filetransfer-go/pkg/digest"
	"github.com/filetransfer-tool/filetransfer-go/pkg/log"
	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

// DownloadOptions configures OpenDownload.
type DownloadOptions struct {
	// ChunkSize in bytes. 0 selects wire.DefaultChunkSize.
	ChunkSize uint32

	// ComputeSHA1 fills in the checksum of the returned FileInfo.
	ComputeSHA1 bool

	// Encoding requested for chunk data.
	Encoding wire.Encoding

	// Interface handling the download, for the transfer record.
	Interface log.Interface
}

// Download reads a file in chunks.
//
// The file is split into size/chunk full chunks followed by one partial
// chunk holding the remainder, if any. Full chunk i reports progress
// 100*i/numFull; the partial chunk reports 100.
type Download struct {
	s    *Service
	file *os.File
	info wire.FileInfo
	opts DownloadOptions

	chunkSize int64
	numFull   int64
	partial   int64
	next      int64 // index of the next full chunk
	sent      int64 // content bytes handed out
	done      bool

	started time.Time
	closed  bool
}

// OpenDownload opens name for a chunked download.
func (s *Service) OpenDownload(name string, opts DownloadOptions) (*Download, error) {
	started := s.now()

	chunkSize := int64(opts.ChunkSize)
	if chunkSize == 0 {
		chunkSize = wire.DefaultChunkSize
	}
	if chunkSize > wire.MaxChunkSize {
		return nil, Errorf(wire.StatusInvalidArgument,
			"Chunk size %d exceeds the maximum of %d bytes.", chunkSize, wire.MaxChunkSize)
	}
	if !opts.Encoding.IsValid() {
		return nil, Errorf(wire.StatusInvalidArgument, "Unknown chunk encoding %d.", opts.Encoding)
	}

	path, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}
	st, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, NewError(wire.StatusNotFound, MsgFileNotFound)
	}
	if err != nil {
		return nil, wrapError(wire.StatusInternal, "Could not read file status.", err)
	}
	if !st.Mode().IsRegular() {
		return nil, Errorf(wire.StatusFailedPrecondition, "Path %s is not a regular file.", name)
	}

	info := wire.FileInfo{Name: name, Size: st.Size()}
	if opts.ComputeSHA1 {
		sum, err := digest.SHA1Hex(path)
		if err != nil {
			return nil, wrapError(wire.StatusInternal, "Could not compute the file checksum.", err)
		}
		info.SHA1 = sum
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, wrapError(wire.StatusFailedPrecondition, "Could not open input file.", err)
	}

	return &Download{
		s:         s,
		file:      file,
		info:      info,
		opts:      opts,
		chunkSize: chunkSize,
		numFull:   info.Size / chunkSize,
		partial:   info.Size % chunkSize,
		started:   started,
	}, nil
}

// Info returns the description of the file being downloaded.
func (d *Download) Info() wire.FileInfo {
	return d.info
}

// ChunkSize returns the effective chunk size.
func (d *Download) ChunkSize() int64 {
	return d.chunkSize
}

// ChunkCount returns the total number of chunks.
func (d *Download) ChunkCount() int64 {
	if d.partial > 0 {
		return d.numFull + 1
	}
	return d.numFull
}

// Sent returns the number of content bytes handed out so far.
func (d *Download) Sent() int64 {
	return d.sent
}

// Next returns the next chunk and the progress it reports. It returns
// io.EOF after the last chunk.
func (d *Download) Next() (*wire.FileChunk, int32, error) {
	if d.done {
		return nil, 0, io.EOF
	}

	var (
		offset   int64
		length   int64
		progress int32
	)
	switch {
	case d.next < d.numFull:
		offset = d.next * d.chunkSize
		length = d.chunkSize
		progress = int32(100 * d.next / d.numFull)
		d.next++
	case d.partial > 0:
		offset = d.numFull * d.chunkSize
		length = d.partial
		progress = 100
		d.done = true
	default:
		d.done = true
		return nil, 0, io.EOF
	}
	if d.next == d.numFull && d.partial == 0 {
		d.done = true
	}

	data := make([]byte, length)
	if _, err := d.file.ReadAt(data, offset); err != nil {
		return nil, 0, wrapError(wire.StatusInternal, "Could not read from input file.", err)
	}

	chunk, err := wire.EncodeChunk(offset, data, d.opts.Encoding)
	if err != nil {
		return nil, 0, wrapError(wire.StatusInternal, "Could not encode chunk.", err)
	}
	d.sent += length
	return chunk, progress, nil
}

// WriteTo copies the remaining content to w.
func (d *Download) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for {
		chunk, _, err := d.Next()
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		data, err := chunk.Decode()
		if err != nil {
			return total, wrapError(wire.StatusInternal, "Could not decode chunk.", err)
		}
		n, err := w.Write(data)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
}

// Finish closes the file and records the download with the outcome cause
// (nil for success). Calling Finish more than once has no effect.
func (d *Download) Finish(ctx context.Context, cause error) {
	if d.closed {
		return
	}
	d.closed = true
	_ = d.file.Close()

	d.s.record(ctx, Record{
		Operation: wire.OpDownloadFile,
		Path:      d.info.Name,
		Size:      d.info.Size,
		Bytes:     d.sent,
		SHA1:      d.info.SHA1,
		Status:    StatusOf(cause),
		Message:   MessageOf(cause),
		Interface: d.opts.Interface,
		StartedAt: d.started,
		Duration:  d.s.now().Sub(d.started),
	})
}
