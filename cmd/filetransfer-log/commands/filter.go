package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/filetransfer-tool/filetransfer-go/pkg/log"
)

// FilterOptions specifies filtering criteria for the filter command.
type FilterOptions struct {
	Output    string
	ConnID    string
	Filename  string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
	Interface string
}

// optional parses s with parse unless it is empty.
func optional[T any](s string, parse func(string) (T, error)) (*T, error) {
	if s == "" {
		return nil, nil
	}
	v, err := parse(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseTimeFlag(name string) func(string) (time.Time, error) {
	return func(s string) (time.Time, error) {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return t, fmt.Errorf("invalid %s (want RFC 3339): %w", name, err)
		}
		return t, nil
	}
}

// Filter converts the options into a log.Filter.
func (opts FilterOptions) Filter() (log.Filter, error) {
	filter := log.Filter{
		ConnectionID: opts.ConnID,
		Filename:     opts.Filename,
	}
	var errs []error
	collect := func(err error) { errs = append(errs, err) }

	var err error
	filter.TimeStart, err = optional(opts.TimeStart, parseTimeFlag("time-start"))
	collect(err)
	filter.TimeEnd, err = optional(opts.TimeEnd, parseTimeFlag("time-end"))
	collect(err)
	filter.Layer, err = optional(opts.Layer, ParseLayer)
	collect(err)
	filter.Direction, err = optional(opts.Direction, ParseDirection)
	collect(err)
	filter.Category, err = optional(opts.Category, ParseCategory)
	collect(err)
	filter.Interface, err = optional(opts.Interface, ParseInterface)
	collect(err)

	return filter, errors.Join(errs...)
}

// RunFilter copies the events of path that match opts into opts.Output and
// reports the count on w. A truncated last event is dropped.
func RunFilter(path string, opts FilterOptions, w io.Writer) error {
	if opts.Output == "" {
		return errors.New("output file required")
	}
	filter, err := opts.Filter()
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	out, err := log.NewFileLogger(opts.Output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	var readErr error
	for event, err := range reader.All() {
		if err != nil {
			readErr = err
			break
		}
		out.Log(event)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if readErr != nil && !errors.Is(readErr, log.ErrTruncated) {
		return fmt.Errorf("failed to read event: %w", readErr)
	}

	fmt.Fprintf(w, "Kept %d of %d events in %s\n", out.Written(), reader.Decoded(), opts.Output)
	return nil
}
