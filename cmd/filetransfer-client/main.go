// Command filetransfer-client talks to a filetransfer-server.
//
// Usage:
//
//	filetransfer-client [flags] <command> [args]
//
// Commands:
//
//	info <remote>                 Show whether a remote file exists, its size and checksum
//	delete <remote>               Delete a remote file
//	upload <local> [remote]       Upload a file (remote defaults to the local base name)
//	download <remote> [local]     Download a file (local defaults to the remote base name)
//	shell                         Interactive session on one connection
//	discover                      List servers advertised via mDNS
//
// Transport flags are the same as for filetransfer-server. Further flags:
//
//	--sha1               Verify checksums end to end (default true)
//	--zstd               Compress chunk data with zstd
//	--chunk-size int     Chunk size in bytes (default 65536)
//	--retries int        Connection attempts (default 1)
//	--timeout duration   mDNS browse time for discover (default 3s)
//	--quiet              Do not print progress
//	--log-level string   debug, info, warn, error (default "warn")
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/filetransfer-tool/filetransfer-go/pkg/client"
	"github.com/filetransfer-tool/filetransfer-go/pkg/discovery"
	"github.com/filetransfer-tool/filetransfer-go/pkg/transport"
	"github.com/filetransfer-tool/filetransfer-go/pkg/version"
	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

// errUsage marks invalid invocations (exit code 2).
var errUsage = errors.New("usage")

type options struct {
	transport transport.Options
	mode      string

	sha1      bool
	zstd      bool
	chunkSize uint32
	retries   int
	timeout   time.Duration
	quiet     bool
	logLevel  string
	version   bool
}

func registerFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVar(&o.mode, "transport-mode", string(transport.DefaultMode), "Transport mode: insecure, uds or mtls")
	fs.StringVar(&o.transport.Host, "host", "", "Server host for insecure and mtls modes (default \"localhost\")")
	fs.IntVar(&o.transport.Port, "port", 0, "Server port for insecure and mtls modes (default 50052)")
	fs.BoolVar(&o.transport.AllowRemoteHost, "allow-remote-host", false, "Allow hosts other than localhost")
	fs.StringVar(&o.transport.UDSDir, "uds-dir", "", "Socket directory for uds mode (default: ~/"+transport.DefaultUDSDirName+")")
	fs.StringVar(&o.transport.UDSID, "uds-id", "", "Socket name suffix for uds mode")
	fs.StringVar(&o.transport.CertsDir, "certs-dir", "", "Certificates directory for mtls mode")

	fs.BoolVar(&o.sha1, "sha1", true, "Verify checksums end to end")
	fs.BoolVar(&o.zstd, "zstd", false, "Compress chunk data with zstd")
	fs.Uint32Var(&o.chunkSize, "chunk-size", wire.DefaultChunkSize, "Chunk size in bytes")
	fs.IntVar(&o.retries, "retries", 1, "Connection attempts")
	fs.DurationVar(&o.timeout, "timeout", discovery.BrowseTimeout, "mDNS browse time for discover")
	fs.BoolVar(&o.quiet, "quiet", false, "Do not print progress")
	fs.StringVar(&o.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	fs.BoolVar(&o.version, "version", false, "Print the version and exit")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("filetransfer-client", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var o options
	registerFlags(fs, &o)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if o.version {
		fmt.Fprintf(stdout, "filetransfer-client %s\n", version.Current)
		return 0
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "Error: missing command (info, delete, upload, download, shell or discover)")
		return 2
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		fmt.Fprintf(stderr, "Error: invalid log level %q\n", o.logLevel)
		return 2
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	err := execute(ctx, &o, fs.Arg(0), fs.Args()[1:], stdout, stderr, logger)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

// execute runs one command line command.
func execute(ctx context.Context, o *options, name string, args []string, stdout, stderr io.Writer, logger *slog.Logger) error {
	if name == "discover" {
		if len(args) != 0 {
			return fmt.Errorf("%w: discover takes no arguments", errUsage)
		}
		servers, err := discovery.NewBrowser(discovery.BrowserConfig{}).Discover(ctx, o.timeout)
		if err != nil {
			return err
		}
		renderServers(stdout, servers)
		return nil
	}
	if !isCommand(name) && name != "shell" {
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}

	c, err := connect(ctx, o, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	s := newSession(c, o, stdout, stderr)
	if name == "shell" {
		return runShell(ctx, s)
	}
	return s.execute(ctx, name, args)
}

// connect validates the transport flags and dials the server.
func connect(ctx context.Context, o *options, logger *slog.Logger) (*client.Client, error) {
	o.transport.Mode = transport.Mode(o.mode)
	ep, err := transport.Validate(o.transport, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	return client.Dial(ctx, ep, client.Options{MaxAttempts: o.retries, Logger: logger})
}
