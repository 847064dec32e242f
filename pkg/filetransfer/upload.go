package filetransfer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/filetransfer-tool/filetransfer-go/pkg/digest"
	"github.com/filetransfer-tool/filetransfer-go/pkg/log"
	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

// UploadOptions configures BeginUpload.
type UploadOptions struct {
	// Interface handling the upload, for the transfer record.
	Interface log.Interface
}

// Upload receives a file of announced size into a temporary file next to
// the target. Commit moves it into place; Abort discards it. The target is
// never touched before a successful Commit.
type Upload struct {
	s      *Service
	info   wire.FileInfo
	opts   UploadOptions
	target string

	tmp      *os.File
	hash     *digest.Writer
	received int64

	started time.Time
	closed  bool
}

// BeginUpload prepares to receive the file described by info.
func (s *Service) BeginUpload(info wire.FileInfo, opts UploadOptions) (*Upload, error) {
	started := s.now()

	if info.Size < 0 {
		return nil, Errorf(wire.StatusInvalidArgument, "Invalid file size %d.", info.Size)
	}
	target, err := s.Resolve(info.Name)
	if err != nil {
		return nil, err
	}
	if st, err := os.Stat(target); err == nil && !st.Mode().IsRegular() {
		return nil, NewError(wire.StatusFailedPrecondition, MsgOpenOutput)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.part")
	if err != nil {
		return nil, wrapError(wire.StatusFailedPrecondition, MsgOpenOutput, err)
	}
	// CreateTemp uses 0600; committed files get the usual permissions.
	_ = tmp.Chmod(0o644)

	s.logger.Debug("upload started", "file", info.Name, "size", info.Size, "temp", tmp.Name())
	return &Upload{
		s:       s,
		info:    info,
		opts:    opts,
		target:  target,
		tmp:     tmp,
		hash:    digest.NewWriter(),
		started: started,
	}, nil
}

// Info returns the announced description of the file.
func (u *Upload) Info() wire.FileInfo {
	return u.info
}

// Received returns the number of bytes written so far.
func (u *Upload) Received() int64 {
	return u.received
}

// Progress returns the completion in percent.
func (u *Upload) Progress() int32 {
	if u.info.Size == 0 {
		return 100
	}
	return int32(100 * u.received / u.info.Size)
}

// Write appends data and returns the new progress.
func (u *Upload) Write(data []byte) (int32, error) {
	if u.closed {
		return 0, NewError(wire.StatusFailedPrecondition, "Upload already finished.")
	}
	if u.received+int64(len(data)) > u.info.Size {
		return 0, NewError(wire.StatusInvalidArgument, MsgTooMuchData)
	}
	if _, err := u.tmp.Write(data); err != nil {
		return 0, wrapError(wire.StatusInternal, "Could not write to output file.", err)
	}
	_, _ = u.hash.Write(data)
	u.received += int64(len(data))
	return u.Progress(), nil
}

// ReadFrom writes everything from r. It fails as soon as r yields more
// bytes than the announced size.
func (u *Upload) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, wire.DefaultChunkSize)
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := u.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// Commit verifies the byte count and checksum and moves the file into
// place. On failure the temporary file is removed. The outcome is recorded.
func (u *Upload) Commit(ctx context.Context) error {
	if u.closed {
		return NewError(wire.StatusFailedPrecondition, "Upload already finished.")
	}
	err := u.commit()
	u.finish(ctx, err)
	return err
}

func (u *Upload) commit() error {
	u.closed = true
	if err := u.tmp.Close(); err != nil {
		u.removeTemp()
		return wrapError(wire.StatusInternal, "Could not write to output file.", err)
	}
	if u.received != u.info.Size {
		u.removeTemp()
		return NewError(wire.StatusInvalidArgument, MsgIncorrectByteCount)
	}
	if u.info.SHA1 != "" && !digest.Equal(u.info.SHA1, u.hash.Hex()) {
		u.removeTemp()
		return NewError(wire.StatusDataLoss, MsgChecksumMismatch)
	}
	if err := os.Rename(u.tmp.Name(), u.target); err != nil {
		u.removeTemp()
		return wrapError(wire.StatusInternal, "Could not move the received file into place.", err)
	}
	return nil
}

// Abort discards the received data and records the upload as failed with
// cause. Calling Abort after Commit has no effect.
func (u *Upload) Abort(ctx context.Context, cause error) {
	if u.closed {
		return
	}
	u.closed = true
	_ = u.tmp.Close()
	u.removeTemp()
	if cause == nil {
		cause = NewError(wire.StatusUnknown, "Upload aborted.")
	}
	u.finish(ctx, cause)
}

func (u *Upload) removeTemp() {
	if err := os.Remove(u.tmp.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		u.s.logger.Warn("failed to remove temporary upload file", "file", u.tmp.Name(), "error", err)
	}
}

func (u *Upload) finish(ctx context.Context, cause error) {
	u.s.record(ctx, Record{
		Operation: wire.OpUploadFile,
		Path:      u.info.Name,
		Size:      u.info.Size,
		Bytes:     u.received,
		SHA1:      u.hash.Hex(),
		Status:    StatusOf(cause),
		Message:   MessageOf(cause),
		Interface: u.opts.Interface,
		StartedAt: u.started,
		Duration:  u.s.now().Sub(u.started),
	})
}
