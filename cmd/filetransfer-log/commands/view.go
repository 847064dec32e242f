// Package commands implements the filetransfer-log CLI commands.
package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/filetransfer-tool/filetransfer-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Layer     *log.Layer
	Direction *log.Direction
	Category  *log.Category
	Interface *log.Interface
	Filename  string
}

func (f ViewFilter) logFilter() log.Filter {
	return log.Filter{
		Layer:     f.Layer,
		Direction: f.Direction,
		Category:  f.Category,
		Interface: f.Interface,
		Filename:  f.Filename,
	}
}

const timestampLayout = "2006-01-02T15:04:05.000000Z"

// detail is one indented "Label: value" line below an event header.
type detail struct {
	label, value string
}

func detailf(label, format string, args ...any) detail {
	return detail{label, fmt.Sprintf(format, args...)}
}

// formatEvent writes a header line, the event's details and a blank line.
func formatEvent(w io.Writer, event log.Event) {
	kind, details := describe(event)

	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s (%s)\n",
		event.Timestamp.UTC().Format(timestampLayout),
		shortenConnID(event.ConnectionID),
		event.Direction, event.Layer, kind, event.Interface)

	var common []detail
	if event.Filename != "" {
		common = append(common, detail{"File", event.Filename})
	}
	if event.RemoteAddr != "" {
		common = append(common, detail{"Peer", event.RemoteAddr})
	}
	for _, d := range append(common, details...) {
		fmt.Fprintf(w, "  %s: %s\n", d.label, d.value)
	}
	fmt.Fprintln(w)
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	switch {
	case id == "":
		return "-"
	case len(id) > 8:
		return id[:8]
	}
	return id
}

// describe names the payload of event and lists its details.
func describe(event log.Event) (string, []detail) {
	switch {
	case event.Frame != nil:
		return "Frame", frameDetails(event.Frame)
	case event.Message != nil:
		return event.Message.Type.String(), messageDetails(event.Message)
	case event.StateChange != nil:
		return "State", stateDetails(event.StateChange)
	case event.Transfer != nil:
		return "Transfer", transferDetails(event.Transfer)
	case event.Error != nil:
		return "Error", errorDetails(event.Error)
	}
	return "Unknown", nil
}

func frameDetails(frame *log.FrameEvent) []detail {
	out := []detail{detailf("Size", "%d bytes", frame.Size)}
	switch {
	case len(frame.Data) > 0 && frame.Truncated:
		out = append(out, detail{"Data", hex.EncodeToString(frame.Data) + " (truncated)"})
	case len(frame.Data) > 0:
		out = append(out, detail{"Data", hex.EncodeToString(frame.Data)})
	case frame.Truncated:
		out = append(out, detail{"Data", "(omitted)"})
	}
	return out
}

func messageDetails(msg *log.MessageEvent) []detail {
	out := []detail{detailf("MessageID", "%d", msg.MessageID)}
	if msg.Operation != nil {
		out = append(out, detail{"Operation", msg.Operation.String()})
	}
	if msg.Step != nil {
		out = append(out, detail{"Step", msg.Step.String()})
	}
	if msg.Status != nil {
		out = append(out, detailf("Status", "%s (%d)", msg.Status.String(), *msg.Status))
	}
	if msg.Progress != nil {
		out = append(out, detailf("Progress", "%d%%", *msg.Progress))
	}
	if msg.ProcessingTime != nil {
		out = append(out, detail{"Duration", formatDuration(*msg.ProcessingTime)})
	}
	if msg.ChunkSize > 0 {
		out = append(out, detailf("Chunk", "%d bytes", msg.ChunkSize))
	}
	return out
}

func stateDetails(sc *log.StateChangeEvent) []detail {
	from := sc.OldState
	if from == "" {
		from = "?"
	}
	out := []detail{
		{"Entity", sc.Entity.String()},
		{"Change", from + " -> " + sc.NewState},
	}
	if sc.Reason != "" {
		out = append(out, detail{"Reason", sc.Reason})
	}
	return out
}

func transferDetails(tr *log.TransferEvent) []detail {
	out := []detail{
		{"Operation", tr.Operation.String()},
		{"Status", tr.Status.String()},
		detailf("Bytes", "%d/%d", tr.Bytes, tr.Size),
	}
	if tr.SHA1 != "" {
		out = append(out, detail{"SHA1", tr.SHA1})
	}
	return append(out, detail{"Duration", formatDuration(tr.Duration)})
}

func errorDetails(e *log.ErrorEventData) []detail {
	out := []detail{
		{"Layer", e.Layer.String()},
		{"Message", e.Message},
	}
	if e.Code != nil {
		out = append(out, detailf("Code", "%d", *e.Code))
	}
	if e.Context != "" {
		out = append(out, detail{"Context", e.Context})
	}
	return out
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseLayer parses a layer name (case-insensitive).
func ParseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "wire":
		return log.LayerWire, nil
	case "service":
		return log.LayerService, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport, wire or service)", s)
	}
}

// ParseDirection parses a direction name (case-insensitive).
func ParseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategory parses a category name (case-insensitive).
func ParseCategory(s string) (log.Category, error) {
	if c, ok := log.ParseCategory(strings.ToUpper(s)); ok {
		return c, nil
	}
	return 0, fmt.Errorf("invalid category: %s (must be message, state, transfer or error)", s)
}

// ParseInterface parses an interface name (case-insensitive).
func ParseInterface(s string) (log.Interface, error) {
	switch strings.ToLower(s) {
	case "stream":
		return log.InterfaceStream, nil
	case "rest":
		return log.InterfaceREST, nil
	default:
		return 0, fmt.Errorf("invalid interface: %s (must be stream or rest)", s)
	}
}

// RunView writes every event matching filter to output.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.logFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if errors.Is(err, log.ErrTruncated) {
			fmt.Fprintln(output, "-- log ends with a truncated event --")
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
}
