package commands

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/filetransfer-tool/filetransfer-go/pkg/log"
)

// exporter writes events in one output format.
type exporter interface {
	write(event log.Event) error
	flush() error
}

type jsonlExporter struct{ enc *json.Encoder }

func (e jsonlExporter) write(event log.Event) error { return e.enc.Encode(event) }
func (jsonlExporter) flush() error                  { return nil }

type csvExporter struct{ w *csv.Writer }

func (e csvExporter) write(event log.Event) error { return e.w.Write(csvRow(event)) }

func (e csvExporter) flush() error {
	e.w.Flush()
	return e.w.Error()
}

func newExporter(format string, w io.Writer) (exporter, error) {
	switch format {
	case "jsonl":
		return jsonlExporter{json.NewEncoder(w)}, nil
	case "csv":
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		return csvExporter{cw}, nil
	}
	return nil, fmt.Errorf("unknown format: %s", format)
}

// RunExport converts the log file to jsonl or csv. An empty output writes
// to stdout. A truncated last event is skipped.
func RunExport(path, format, output string, stdout io.Writer) error {
	if format != "jsonl" && format != "csv" {
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	w := stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	exp, err := newExporter(format, w)
	if err != nil {
		return err
	}
	for event, err := range reader.All() {
		if errors.Is(err, log.ErrTruncated) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := exp.write(event); err != nil {
			return fmt.Errorf("failed to export event: %w", err)
		}
	}
	return exp.flush()
}

var csvHeader = []string{
	"timestamp", "connection_id", "direction", "layer", "category", "interface",
	"filename", "type", "message_id", "operation", "status", "bytes",
}

func csvRow(event log.Event) []string {
	eventType := "unknown"
	var msgID, operation, status, bytes string
	switch {
	case event.Frame != nil:
		eventType = "frame"
		bytes = strconv.Itoa(event.Frame.Size)
	case event.Message != nil:
		eventType = event.Message.Type.String()
		msgID = strconv.FormatUint(uint64(event.Message.MessageID), 10)
		if event.Message.Operation != nil {
			operation = event.Message.Operation.String()
		}
		if event.Message.Status != nil {
			status = event.Message.Status.String()
		}
		if event.Message.ChunkSize > 0 {
			bytes = strconv.FormatInt(event.Message.ChunkSize, 10)
		}
	case event.StateChange != nil:
		eventType = "state"
	case event.Transfer != nil:
		eventType = "transfer"
		operation = event.Transfer.Operation.String()
		status = event.Transfer.Status.String()
		bytes = strconv.FormatInt(event.Transfer.Bytes, 10)
	case event.Error != nil:
		eventType = "error"
	}

	return []string{
		event.Timestamp.UTC().Format(timestampLayout),
		event.ConnectionID,
		event.Direction.String(),
		event.Layer.String(),
		event.Category.String(),
		event.Interface.String(),
		event.Filename,
		eventType,
		msgID,
		operation,
		status,
		bytes,
	}
}
