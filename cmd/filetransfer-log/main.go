// Command filetransfer-log views and analyzes event log files written by
// filetransfer-server with --event-log.
//
// Usage:
//
//	filetransfer-log <command> [flags] <file.ftlog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSONL or CSV format
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View only wire-layer events
//	filetransfer-log view --layer wire server.ftlog
//
//	# View finished transfers of the REST API
//	filetransfer-log view --category transfer --interface rest server.ftlog
//
//	# Export to CSV
//	filetransfer-log export --format csv -o events.csv server.ftlog
//
//	# Filter by connection and save to new file
//	filetransfer-log filter --conn-id abc12345-... -o conn.ftlog server.ftlog
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/filetransfer-tool/filetransfer-go/cmd/filetransfer-log/commands"
)

const usage = `filetransfer-log - File Transfer Event Log Analyzer

Usage:
  filetransfer-log <command> [flags] <file.ftlog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSONL or CSV format
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "filetransfer-log <command> --help" for more information about a command.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "view":
		err = runView(rest, stdout, stderr)
	case "export":
		err = runExport(rest, stdout, stderr)
	case "filter":
		err = runFilter(rest, stdout, stderr)
	case "stats":
		err = runStats(rest, stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(stderr, usage)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case err == pflag.ErrHelp:
		return 0
	case err == errUsage:
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

var errUsage = errors.New("usage")

// newFlagSet returns a flag set whose usage text names the subcommand.
func newFlagSet(name, summary string, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "filetransfer-log %s - %s\n\nUsage:\n  filetransfer-log %s [flags] <file.ftlog>\n\nFlags:\n",
			name, summary, name)
		fs.PrintDefaults()
	}
	return fs
}

// parse parses args and returns the log file path.
func parse(fs *pflag.FlagSet, args []string, stderr io.Writer) (string, error) {
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return "", err
		}
		return "", errUsage
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "Error: log file path required")
		fs.Usage()
		return "", errUsage
	}
	return fs.Arg(0), nil
}

func runView(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("view", "View log file in human-readable format", stderr)
	layer := fs.String("layer", "", "Filter by layer (transport, wire, service)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (message, state, transfer, error)")
	iface := fs.String("interface", "", "Filter by interface (stream, rest)")
	filename := fs.String("file", "", "Filter by file name")

	path, err := parse(fs, args, stderr)
	if err != nil {
		return err
	}

	filter := commands.ViewFilter{Filename: *filename}
	if *layer != "" {
		l, err := commands.ParseLayer(*layer)
		if err != nil {
			return err
		}
		filter.Layer = &l
	}
	if *direction != "" {
		d, err := commands.ParseDirection(*direction)
		if err != nil {
			return err
		}
		filter.Direction = &d
	}
	if *category != "" {
		c, err := commands.ParseCategory(*category)
		if err != nil {
			return err
		}
		filter.Category = &c
	}
	if *iface != "" {
		i, err := commands.ParseInterface(*iface)
		if err != nil {
			return err
		}
		filter.Interface = &i
	}

	return commands.RunView(path, filter, stdout)
}

func runExport(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("export", "Export log file to JSONL or CSV format", stderr)
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.StringP("output", "o", "", "Output file (default: stdout)")

	path, err := parse(fs, args, stderr)
	if err != nil {
		return err
	}
	return commands.RunExport(path, *format, *output, stdout)
}

func runFilter(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("filter", "Filter log file and write to new file", stderr)
	var opts commands.FilterOptions
	fs.StringVarP(&opts.Output, "output", "o", "", "Output file (required)")
	fs.StringVar(&opts.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&opts.Filename, "file", "", "Filter by file name")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&opts.Layer, "layer", "", "Filter by layer (transport, wire, service)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (message, state, transfer, error)")
	fs.StringVar(&opts.Interface, "interface", "", "Filter by interface (stream, rest)")

	path, err := parse(fs, args, stderr)
	if err != nil {
		return err
	}
	if opts.Output == "" {
		fmt.Fprintln(stderr, "Error: output file (-o) required")
		fs.Usage()
		return errUsage
	}
	return commands.RunFilter(path, opts, stdout)
}

func runStats(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("stats", "Show statistics about the log file", stderr)
	path, err := parse(fs, args, stderr)
	if err != nil {
		return err
	}
	return commands.RunStats(path, stdout)
}
