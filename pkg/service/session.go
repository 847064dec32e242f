package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/filetransfer-tool/filetransfer-go/pkg/filetransfer"
	"github.com/filetransfer-tool/filetransfer-go/pkg/log"
	"github.com/filetransfer-tool/filetransfer-go/pkg/transport"
	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

// connError marks a failure of the connection itself. The session ends
// and no response is sent.
type connError struct {
	err error
}

func (e *connError) Error() string { return e.err.Error() }
func (e *connError) Unwrap() error { return e.err }

func isConnError(err error) bool {
	var ce *connError
	return errors.As(err, &ce)
}

// received is one request read from the stream, possibly invalid.
type received struct {
	req *wire.Request
	err error
}

// session is the state of one stream.
type session struct {
	ctx      context.Context
	stream   transport.Stream
	logger   *slog.Logger
	events   log.Logger
	connID   string
	remote   string
	pending  *received
	failedID uint32
	lastRecv time.Time
}

func newSession(ctx context.Context, stream transport.Stream, logger *slog.Logger, events log.Logger) *session {
	return &session{
		ctx:    ctx,
		stream: stream,
		logger: logger.With("conn", stream.ConnID()),
		events: events,
		connID: stream.ConnID(),
		remote: stream.RemoteAddr(),
	}
}

// recv returns the next request, taking a pushed-back one first. A non-nil
// req with a non-nil err is a frame that decoded but failed validation.
func (s *session) recv() (*wire.Request, error) {
	if p := s.pending; p != nil {
		s.pending = nil
		return p.req, p.err
	}
	req, err := s.stream.Recv()
	s.lastRecv = time.Now()
	if req != nil {
		s.logMessage(log.DirectionIn, log.RequestMessage(req), req.Filename)
	}
	return req, err
}

// next reads the next frame of the operation id. A frame that belongs to
// another operation ends the current one and is kept for the main loop.
func (s *session) next(id uint32) (*wire.Request, error) {
	req, err := s.recv()
	if req == nil && err != nil {
		if errors.Is(err, transport.ErrInvalidMessage) {
			return nil, filetransfer.NewError(wire.StatusInvalidArgument, invalidMessage(err))
		}
		return nil, &connError{err: err}
	}
	if req.MessageID != id {
		s.pending = &received{req: req, err: err}
		return nil, filetransfer.NewError(wire.StatusInvalidArgument, filetransfer.MsgStreamStopped)
	}
	if err != nil {
		return nil, filetransfer.NewError(wire.StatusInvalidArgument, invalidMessage(err))
	}
	return req, nil
}

// send writes resp. Failures end the session.
func (s *session) send(resp *wire.Response) error {
	ev := log.ResponseMessage(resp)
	if !s.lastRecv.IsZero() {
		d := time.Since(s.lastRecv)
		ev.ProcessingTime = &d
	}
	s.logMessage(log.DirectionOut, ev, "")

	if err := s.stream.Send(resp); err != nil {
		return &connError{err: fmt.Errorf("send response: %w", err)}
	}
	return nil
}

// sendError answers id with the status and message of err and discards the
// remaining frames of that operation.
func (s *session) sendError(id uint32, err error) error {
	status := filetransfer.StatusOf(err)
	msg := filetransfer.MessageOf(err)
	s.failedID = id
	s.logError(err, id)
	return s.send(wire.ErrorResponse(id, status, msg))
}

func (s *session) logMessage(dir log.Direction, msg *log.MessageEvent, filename string) {
	if s.events == nil {
		return
	}
	s.events.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.connID,
		Direction:    dir,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Interface:    log.InterfaceStream,
		RemoteAddr:   s.remote,
		Filename:     filename,
		Message:      msg,
	})
}

func (s *session) logError(err error, id uint32) {
	s.logger.Debug("operation failed", "messageId", id, "error", err)
	if s.events == nil {
		return
	}
	code := int(filetransfer.StatusOf(err))
	s.events.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.connID,
		Direction:    log.DirectionOut,
		Layer:        log.LayerService,
		Category:     log.CategoryError,
		Interface:    log.InterfaceStream,
		RemoteAddr:   s.remote,
		Error: &log.ErrorEventData{
			Layer:   log.LayerService,
			Message: filetransfer.MessageOf(err),
			Code:    &code,
			Context: fmt.Sprintf("messageId %d", id),
		},
	})
}

// transfer is the bookkeeping of one download, upload or delete for the
// event log.
type transfer struct {
	op       wire.Operation
	filename string
	size     int64
	bytes    int64
	sha1     string
	started  time.Time
}

func (s *session) beginTransfer(op wire.Operation, filename string) *transfer {
	t := &transfer{op: op, filename: filename, started: time.Now()}
	s.logState(t, "", "STARTED", "")
	return t
}

func (s *session) endTransfer(t *transfer, cause error) {
	status := filetransfer.StatusOf(cause)
	duration := time.Since(t.started)

	newState, reason := "COMPLETED", ""
	if cause != nil {
		newState, reason = "FAILED", filetransfer.MessageOf(cause)
	}
	s.logState(t, "STARTED", newState, reason)

	attrs := []any{
		"operation", t.op.String(),
		"file", t.filename,
		"bytes", t.bytes,
		"status", status.String(),
		"duration", duration,
	}
	if cause != nil {
		s.logger.Warn("transfer failed", append(attrs, "error", reason)...)
	} else {
		s.logger.Info("transfer finished", attrs...)
	}

	if s.events == nil {
		return
	}
	s.events.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.connID,
		Direction:    log.DirectionOut,
		Layer:        log.LayerService,
		Category:     log.CategoryTransfer,
		Interface:    log.InterfaceStream,
		RemoteAddr:   s.remote,
		Filename:     t.filename,
		Transfer: &log.TransferEvent{
			Operation: t.op,
			Size:      t.size,
			Bytes:     t.bytes,
			SHA1:      t.sha1,
			Status:    status,
			Duration:  duration,
		},
	})
}

func (s *session) logState(t *transfer, oldState, newState, reason string) {
	if s.events == nil {
		return
	}
	s.events.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerService,
		Category:     log.CategoryState,
		Interface:    log.InterfaceStream,
		RemoteAddr:   s.remote,
		Filename:     t.filename,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityTransfer,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// invalidMessage turns a request decoding error into a client message.
func invalidMessage(err error) string {
	return strings.TrimPrefix(err.Error(), transport.ErrInvalidMessage.Error()+": ")
}
