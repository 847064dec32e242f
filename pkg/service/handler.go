package service

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/filetransfer-tool/filetransfer-go/pkg/filetransfer"
	"github.com/filetransfer-tool/filetransfer-go/pkg/log"
	"github.com/filetransfer-tool/filetransfer-go/pkg/transport"
	"github.com/filetransfer-tool/filetransfer-go/pkg/version"
	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

// Config configures a Handler.
type Config struct {
	// Files implements the file operations (required).
	Files *filetransfer.Service

	// Logger for operational messages (default: slog.Default()).
	Logger *slog.Logger

	// EventLogger receives message, state, transfer and error events
	// (optional).
	EventLogger log.Logger
}

// Handler serves the file-transfer protocol on transport streams.
type Handler struct {
	files  *filetransfer.Service
	logger *slog.Logger
	events log.Logger
}

// NewHandler creates a protocol handler.
func NewHandler(config Config) (*Handler, error) {
	if config.Files == nil {
		return nil, errors.New("service: file service is required")
	}
	h := &Handler{
		files:  config.Files,
		logger: config.Logger,
		events: config.EventLogger,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h, nil
}

// ServeStream runs the protocol on s until the peer disconnects or ctx is
// cancelled. Operations are served one after another; all frames of one
// operation share its MessageID.
func (h *Handler) ServeStream(ctx context.Context, s transport.Stream) {
	sess := newSession(ctx, s, h.logger, h.events)
	for {
		req, err := sess.recv()
		if err != nil && req == nil {
			if errors.Is(err, transport.ErrInvalidMessage) {
				if sendErr := sess.sendError(wire.ReservedMessageID, filetransfer.NewError(
					wire.StatusInvalidArgument, invalidMessage(err))); sendErr != nil {
					return
				}
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, transport.ErrConnectionClosed) && ctx.Err() == nil {
				sess.logger.Debug("stream ended", "error", err)
			}
			return
		}

		if req.MessageID != wire.ReservedMessageID && req.MessageID == sess.failedID {
			continue
		}
		sess.failedID = wire.ReservedMessageID

		if err != nil {
			status := wire.StatusInvalidArgument
			if !req.Operation.IsValid() {
				status = wire.StatusUnimplemented
			}
			if sendErr := sess.sendError(req.MessageID, filetransfer.NewError(status, invalidMessage(err))); sendErr != nil {
				return
			}
			continue
		}

		err = h.dispatch(sess, req)
		if err == nil {
			continue
		}
		if isConnError(err) {
			sess.logger.Debug("stream ended during operation",
				"operation", req.Operation.String(), "messageId", req.MessageID, "error", err)
			return
		}
		if sendErr := sess.sendError(req.MessageID, err); sendErr != nil {
			return
		}
	}
}

func (h *Handler) dispatch(sess *session, req *wire.Request) error {
	switch req.Operation {
	case wire.OpHello:
		return h.handleHello(sess, req)
	case wire.OpGetFileInfo:
		return h.handleGetFileInfo(sess, req)
	case wire.OpDeleteFile:
		return h.handleDeleteFile(sess, req)
	case wire.OpDownloadFile:
		return h.handleDownload(sess, req)
	case wire.OpUploadFile:
		return h.handleUpload(sess, req)
	default:
		return filetransfer.Errorf(wire.StatusUnimplemented, "Operation %s is not implemented.", req.Operation)
	}
}

func (h *Handler) handleHello(sess *session, req *wire.Request) error {
	if err := version.CheckPeer(req.Version); err != nil {
		return filetransfer.Errorf(wire.StatusFailedPrecondition,
			"Client version %s is not compatible with server version %s.", req.Version, version.Current)
	}
	return sess.send(&wire.Response{
		MessageID: req.MessageID,
		Status:    wire.StatusOK,
		Version:   version.Current,
	})
}

func (h *Handler) handleGetFileInfo(sess *session, req *wire.Request) error {
	info, exists, err := h.files.Info(req.Filename, req.ComputeSHA1)
	if err != nil {
		return err
	}
	return sess.send(&wire.Response{
		MessageID: req.MessageID,
		Status:    wire.StatusOK,
		Exists:    exists,
		FileInfo:  info,
	})
}

func (h *Handler) handleDeleteFile(sess *session, req *wire.Request) (err error) {
	t := sess.beginTransfer(wire.OpDeleteFile, req.Filename)
	defer func() { sess.endTransfer(t, err) }()

	if err := h.files.Delete(sess.ctx, req.Filename, log.InterfaceStream); err != nil {
		return err
	}
	return sess.send(&wire.Response{MessageID: req.MessageID, Status: wire.StatusOK})
}

// recordable maps a connection failure to the outcome stored for an
// interrupted transfer.
func recordable(err error) error {
	if isConnError(err) {
		return filetransfer.NewError(wire.StatusInvalidArgument, filetransfer.MsgStreamStopped)
	}
	return err
}

// handleDownload serves Initialize, ReceiveData and Finalize of one
// download.
func (h *Handler) handleDownload(sess *session, req *wire.Request) (err error) {
	id := req.MessageID
	if req.Step != wire.StepInitialize {
		return filetransfer.NewError(wire.StatusInvalidArgument, filetransfer.MsgIncorrectStep)
	}

	t := sess.beginTransfer(wire.OpDownloadFile, req.Filename)
	defer func() { sess.endTransfer(t, recordable(err)) }()

	dl, err := h.files.OpenDownload(req.Filename, filetransfer.DownloadOptions{
		ChunkSize:   req.ChunkSize,
		ComputeSHA1: req.ComputeSHA1,
		Encoding:    req.Encoding,
		Interface:   log.InterfaceStream,
	})
	if err != nil {
		return err
	}
	defer func() {
		t.bytes = dl.Sent()
		dl.Finish(sess.ctx, recordable(err))
	}()

	info := dl.Info()
	t.size, t.sha1 = info.Size, info.SHA1
	if err := sess.send(&wire.Response{
		MessageID: id,
		Status:    wire.StatusOK,
		FileInfo:  &info,
		Progress:  wire.NewProgress(0),
	}); err != nil {
		return err
	}

	next, err := sess.next(id)
	if err != nil {
		return err
	}
	if next.Step != wire.StepReceiveData {
		return filetransfer.NewError(wire.StatusInvalidArgument, filetransfer.MsgIncorrectStep)
	}

	for {
		chunk, progress, err := dl.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := sess.send(&wire.Response{
			MessageID: id,
			Status:    wire.StatusOK,
			Chunk:     chunk,
			Progress:  wire.NewProgress(progress),
		}); err != nil {
			return err
		}
		if err := sess.ctx.Err(); err != nil {
			return &connError{err: err}
		}
	}

	next, err = sess.next(id)
	if err != nil {
		return err
	}
	if next.Step != wire.StepFinalize {
		return filetransfer.NewError(wire.StatusInvalidArgument, filetransfer.MsgIncorrectStep)
	}
	return sess.send(&wire.Response{
		MessageID: id,
		Status:    wire.StatusOK,
		Progress:  wire.NewProgress(100),
	})
}

// handleUpload serves Initialize, any number of SendData and Finalize of
// one upload.
func (h *Handler) handleUpload(sess *session, req *wire.Request) (err error) {
	id := req.MessageID
	if req.Step != wire.StepInitialize {
		return filetransfer.NewError(wire.StatusInvalidArgument, filetransfer.MsgUploadNotInit)
	}
	if req.FileInfo == nil {
		return filetransfer.NewError(wire.StatusInvalidArgument, "Initialize step requires file info.")
	}

	t := sess.beginTransfer(wire.OpUploadFile, req.FileInfo.Name)
	t.size = req.FileInfo.Size
	defer func() { sess.endTransfer(t, recordable(err)) }()

	up, err := h.files.BeginUpload(*req.FileInfo, filetransfer.UploadOptions{Interface: log.InterfaceStream})
	if err != nil {
		return err
	}
	defer func() {
		t.bytes = up.Received()
		if err != nil {
			up.Abort(sess.ctx, recordable(err))
		}
	}()

	if err := sess.send(&wire.Response{
		MessageID: id,
		Status:    wire.StatusOK,
		Progress:  wire.NewProgress(0),
	}); err != nil {
		return err
	}

	var next *wire.Request
	for {
		next, err = sess.next(id)
		if err != nil {
			return err
		}
		if next.Step != wire.StepSendData {
			break
		}
		if next.Chunk == nil {
			return filetransfer.NewError(wire.StatusInvalidArgument, "SendData step without a chunk.")
		}
		if next.Chunk.Offset != up.Received() {
			return filetransfer.Errorf(wire.StatusInvalidArgument,
				"Chunk offset %d does not match the %d bytes received so far.", next.Chunk.Offset, up.Received())
		}
		data, err := next.Chunk.Decode()
		if err != nil {
			return filetransfer.Errorf(wire.StatusInvalidArgument, "Invalid chunk: %v", err)
		}
		progress, err := up.Write(data)
		if err != nil {
			return err
		}
		if err := sess.send(&wire.Response{
			MessageID: id,
			Status:    wire.StatusOK,
			Progress:  wire.NewProgress(progress),
		}); err != nil {
			return err
		}
	}

	if next.Step != wire.StepFinalize {
		return filetransfer.NewError(wire.StatusInvalidArgument, filetransfer.MsgUploadNotFinalize)
	}
	if err := up.Commit(sess.ctx); err != nil {
		return err
	}
	t.sha1 = req.FileInfo.SHA1
	return sess.send(&wire.Response{
		MessageID: id,
		Status:    wire.StatusOK,
		Progress:  wire.NewProgress(100),
	})
}

// Compile-time interface satisfaction check.
var _ transport.Handler = (*Handler)(nil)
