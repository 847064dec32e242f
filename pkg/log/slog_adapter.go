package log

import (
	"context"
	"log/slog"
)

// SlogAdapter prints events through an slog.Logger, for watching a server
// on the console. Every event becomes one record whose message is the
// payload kind and whose payload fields sit in a group of the same name.
// Error events are raised to at least Warn.
type SlogAdapter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogAdapter returns an adapter logging at Debug level.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger, level: slog.LevelDebug}
}

// WithLevel returns a copy of the adapter that logs at level.
func (a *SlogAdapter) WithLevel(level slog.Level) *SlogAdapter {
	return &SlogAdapter{logger: a.logger, level: level}
}

// Log writes event as one record.
func (a *SlogAdapter) Log(event Event) {
	level := a.level
	if event.Error != nil {
		level = max(level, slog.LevelWarn)
	}
	ctx := context.Background()
	if !a.logger.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, 8)
	attrs = append(attrs,
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("interface", event.Interface.String()),
	)
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote", event.RemoteAddr))
	}
	if event.Filename != "" {
		attrs = append(attrs, slog.String("file", event.Filename))
	}

	kind, payload := payloadAttrs(event)
	if len(payload) > 0 {
		attrs = append(attrs, slog.Attr{Key: kind, Value: slog.GroupValue(payload...)})
	}
	a.logger.LogAttrs(ctx, level, kind, attrs...)
}

// payloadAttrs names the payload of event and lists its fields.
func payloadAttrs(event Event) (string, []slog.Attr) {
	switch {
	case event.Frame != nil:
		return "frame", []slog.Attr{
			slog.Int("size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		}

	case event.Message != nil:
		m := event.Message
		attrs := []slog.Attr{
			slog.String("type", m.Type.String()),
			slog.Uint64("id", uint64(m.MessageID)),
		}
		if m.Operation != nil {
			attrs = append(attrs, slog.String("operation", m.Operation.String()))
		}
		if m.Step != nil {
			attrs = append(attrs, slog.String("step", m.Step.String()))
		}
		if m.Status != nil {
			attrs = append(attrs, slog.String("status", m.Status.String()))
		}
		if m.Progress != nil {
			attrs = append(attrs, slog.Int("progress", int(*m.Progress)))
		}
		if m.ChunkSize > 0 {
			attrs = append(attrs, slog.Int64("chunk_size", m.ChunkSize))
		}
		if m.ProcessingTime != nil {
			attrs = append(attrs, slog.Duration("processing_time", *m.ProcessingTime))
		}
		return "message", attrs

	case event.StateChange != nil:
		s := event.StateChange
		attrs := []slog.Attr{
			slog.String("entity", s.Entity.String()),
			slog.String("from", s.OldState),
			slog.String("to", s.NewState),
		}
		if s.Reason != "" {
			attrs = append(attrs, slog.String("reason", s.Reason))
		}
		return "state", attrs

	case event.Transfer != nil:
		tr := event.Transfer
		attrs := []slog.Attr{
			slog.String("operation", tr.Operation.String()),
			slog.String("status", tr.Status.String()),
			slog.Int64("size", tr.Size),
			slog.Int64("bytes", tr.Bytes),
			slog.Duration("duration", tr.Duration),
		}
		if tr.SHA1 != "" {
			attrs = append(attrs, slog.String("sha1", tr.SHA1))
		}
		return "transfer", attrs

	case event.Error != nil:
		e := event.Error
		attrs := []slog.Attr{
			slog.String("layer", e.Layer.String()),
			slog.String("message", e.Message),
		}
		if e.Context != "" {
			attrs = append(attrs, slog.String("context", e.Context))
		}
		if e.Code != nil {
			attrs = append(attrs, slog.Int("code", *e.Code))
		}
		return "error", attrs
	}
	return event.Category.String(), nil
}

var _ Logger = (*SlogAdapter)(nil)
