package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/filetransfer-tool/filetransfer-go/pkg/digest"
	"github.com/filetransfer-tool/filetransfer-go/pkg/filetransfer"
	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

// ProgressFunc receives the progress state (0 to 100) reported by the
// server.
type ProgressFunc func(state int32)

// TransferOptions configures Download and Upload.
type TransferOptions struct {
	// ChunkSize in bytes (default: wire.DefaultChunkSize).
	ChunkSize uint32

	// VerifySHA1 makes the transfer check the file checksum end to end.
	VerifySHA1 bool

	// Encoding of chunk data on the wire.
	Encoding wire.Encoding

	// Progress is called for every progress report (optional).
	Progress ProgressFunc
}

func (o TransferOptions) report(state int32) {
	if o.Progress != nil {
		o.Progress(state)
	}
}

// MsgDownloadChecksum is returned when a downloaded file does not match
// the checksum announced by the server.
const MsgDownloadChecksum = "Checksum of the downloaded file does not match expected value."

// Download copies the remote file to local. The local file is replaced
// only when the whole file arrived intact.
func (c *Client) Download(ctx context.Context, remote, local string, opts TransferOptions) (*wire.FileInfo, error) {
	tmp, err := os.CreateTemp(filepath.Dir(local), "."+filepath.Base(local)+".*.part")
	if err != nil {
		return nil, fmt.Errorf("create local file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	var info *wire.FileInfo
	err = c.run(ctx, func(op *operation) error {
		var err error
		info, err = download(op, remote, tmp, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("write local file: %w", err)
	}
	_ = os.Chmod(tmp.Name(), 0o644)
	if err := os.Rename(tmp.Name(), local); err != nil {
		return nil, fmt.Errorf("move local file into place: %w", err)
	}
	committed = true
	return info, nil
}

func download(op *operation, remote string, w io.Writer, opts TransferOptions) (*wire.FileInfo, error) {
	resp, err := op.call(&wire.Request{
		Operation:   wire.OpDownloadFile,
		Step:        wire.StepInitialize,
		Filename:    remote,
		ChunkSize:   opts.ChunkSize,
		ComputeSHA1: opts.VerifySHA1,
		Encoding:    opts.Encoding,
	})
	if err != nil {
		return nil, err
	}
	if resp.FileInfo == nil {
		return nil, fmt.Errorf("%w: file info missing", ErrUnexpectedResponse)
	}
	info := resp.FileInfo
	state, err := progress(resp)
	if err != nil {
		return nil, err
	}
	opts.report(state)

	if err := op.send(&wire.Request{Operation: wire.OpDownloadFile, Step: wire.StepReceiveData}); err != nil {
		return nil, err
	}

	hash := digest.NewWriter()
	var received int64
	for received < info.Size {
		resp, err := op.recv()
		if err != nil {
			return nil, err
		}
		if resp.Chunk == nil {
			return nil, fmt.Errorf("%w: chunk missing", ErrUnexpectedResponse)
		}
		if resp.Chunk.Offset != received {
			return nil, fmt.Errorf("%w: chunk offset %d, expected %d", ErrUnexpectedResponse, resp.Chunk.Offset, received)
		}
		data, err := resp.Chunk.Decode()
		if err != nil {
			return nil, fmt.Errorf("decode chunk: %w", err)
		}
		if received+int64(len(data)) > info.Size {
			return nil, fmt.Errorf("%w: more data than the announced %d bytes", ErrUnexpectedResponse, info.Size)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("write local file: %w", err)
		}
		_, _ = hash.Write(data)
		received += int64(len(data))

		state, err := progress(resp)
		if err != nil {
			return nil, err
		}
		opts.report(state)
	}

	resp, err = op.call(&wire.Request{Operation: wire.OpDownloadFile, Step: wire.StepFinalize})
	if err != nil {
		return nil, err
	}
	if state, err = progress(resp); err != nil {
		return nil, err
	}
	opts.report(state)

	if opts.VerifySHA1 && info.SHA1 != "" && !digest.Equal(info.SHA1, hash.Hex()) {
		return nil, filetransfer.NewError(wire.StatusDataLoss, MsgDownloadChecksum)
	}
	return info, nil
}

// Upload copies the local file to remote.
func (c *Client) Upload(ctx context.Context, local, remote string, opts TransferOptions) error {
	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("open local file: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat local file: %w", err)
	}
	if !st.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", local)
	}
	info := wire.FileInfo{Name: remote, Size: st.Size()}
	if opts.VerifySHA1 {
		sum, err := digest.SHA1Hex(local)
		if err != nil {
			return fmt.Errorf("checksum local file: %w", err)
		}
		info.SHA1 = sum
	}

	return c.run(ctx, func(op *operation) error {
		return upload(op, info, f, opts)
	})
}

func upload(op *operation, info wire.FileInfo, r io.Reader, opts TransferOptions) error {
	resp, err := op.call(&wire.Request{
		Operation: wire.OpUploadFile,
		Step:      wire.StepInitialize,
		FileInfo:  &info,
	})
	if err != nil {
		return err
	}
	state, err := progress(resp)
	if err != nil {
		return err
	}
	opts.report(state)

	chunkSize := int(opts.ChunkSize)
	if chunkSize == 0 {
		chunkSize = wire.DefaultChunkSize
	}
	if chunkSize > wire.MaxChunkSize {
		return fmt.Errorf("chunk size %d exceeds the maximum of %d bytes", chunkSize, wire.MaxChunkSize)
	}

	buf := make([]byte, chunkSize)
	var offset int64
	for offset < info.Size {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			// EncodeChunk may keep buf; hand it a copy.
			data := make([]byte, n)
			copy(data, buf[:n])
			chunk, cerr := wire.EncodeChunk(offset, data, opts.Encoding)
			if cerr != nil {
				return cerr
			}
			resp, cerr := op.call(&wire.Request{
				Operation: wire.OpUploadFile,
				Step:      wire.StepSendData,
				Chunk:     chunk,
			})
			if cerr != nil {
				return cerr
			}
			if state, cerr = progress(resp); cerr != nil {
				return cerr
			}
			opts.report(state)
			offset += int64(n)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("read local file: %w", err)
		}
	}

	resp, err = op.call(&wire.Request{Operation: wire.OpUploadFile, Step: wire.StepFinalize})
	if err != nil {
		return err
	}
	if state, err = progress(resp); err != nil {
		return err
	}
	opts.report(state)
	return nil
}
