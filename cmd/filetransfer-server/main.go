// Command filetransfer-server serves files over the file-transfer protocol.
//
// Usage:
//
//	filetransfer-server [flags]
//
// Flags:
//
//	--transport-mode string  insecure, uds or mtls (default "uds")
//	--host string            Listen host for TCP modes (default "localhost")
//	--port int               Listen port for TCP modes (default 50052)
//	--allow-remote-host      Allow hosts other than localhost/127.0.0.1
//	--uds-dir string         Socket directory (default ~/.conn)
//	--uds-id string          Socket name suffix
//	--certs-dir string       mTLS certificates directory
//	--root string            Root directory for served files
//	--http-address string    Enable the REST interface on this address; the host
//	                         follows the --host rule and mtls mode serves HTTPS
//	                         with client certificates
//	--history-db string      SQLite transfer history
//	--advertise              Advertise via mDNS (TCP modes only)
//	--event-log string       Binary event log (read with filetransfer-log)
//	--event-log-frame-data   Keep raw frame bytes in the event log
//	--log-level string       debug, info, warn, error (default "info")
//	--log-format string      text or json (default "text")
//	--config string          YAML configuration file
//	--version                Print the version and exit
//
// Flags given on the command line override the configuration file.
//
// Examples:
//
//	# Serve ~/shared on the default Unix domain socket
//	filetransfer-server --root ~/shared
//
//	# Serve over mutual TLS with a REST interface and history
//	filetransfer-server --transport-mode mtls --certs-dir ./certs \
//	    --http-address localhost:8080 --history-db transfers.db
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/filetransfer-tool/filetransfer-go/pkg/discovery"
	"github.com/filetransfer-tool/filetransfer-go/pkg/filetransfer"
	"github.com/filetransfer-tool/filetransfer-go/pkg/history"
	ftlog "github.com/filetransfer-tool/filetransfer-go/pkg/log"
	"github.com/filetransfer-tool/filetransfer-go/pkg/restapi"
	"github.com/filetransfer-tool/filetransfer-go/pkg/service"
	"github.com/filetransfer-tool/filetransfer-go/pkg/transport"
	"github.com/filetransfer-tool/filetransfer-go/pkg/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("filetransfer-server", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	var v flagValues
	registerFlags(fs, &v)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if v.showVersion {
		fmt.Fprintf(stdout, "filetransfer-server %s\n", version.Current)
		return 0
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "Error: unexpected arguments: %v\n", fs.Args())
		return 2
	}

	cfg, err := resolveConfig(fs, &v)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	logger, err := newLogger(cfg.Log, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger, nil); err != nil {
		logger.Error("server failed", "error", err)
		return 1
	}
	return 0
}

// newLogger creates the console logger.
func newLogger(cfg LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch cfg.Format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (expected text or json)", cfg.Format)
	}
}

// serve runs the server until ctx is done or a component fails. ready,
// when set, is called once the protocol server accepts connections.
func serve(ctx context.Context, cfg Config, logger *slog.Logger, ready func(*transport.Server)) (err error) {
	var closers []io.Closer
	defer func() {
		var result *multierror.Error
		if err != nil {
			result = multierror.Append(result, err)
		}
		for i := len(closers) - 1; i >= 0; i-- {
			if cerr := closers[i].Close(); cerr != nil {
				result = multierror.Append(result, cerr)
			}
		}
		err = result.ErrorOrNil()
	}()

	ep, err := transport.Validate(cfg.Transport.Options(), logger)
	if err != nil {
		return err
	}
	if cfg.HTTPAddress != "" {
		if err := checkHTTPAddress(cfg.HTTPAddress, cfg.Transport.AllowRemoteHost, logger); err != nil {
			return err
		}
	}

	var events ftlog.Logger
	if cfg.EventLog != "" {
		fileLogger, err := ftlog.OpenFileLogger(cfg.EventLog, ftlog.FileLoggerOptions{
			OmitFrameData: !cfg.EventLogFrameData,
		})
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		closers = append(closers, fileLogger)
		events = fileLogger
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		// Frames of every chunk would drown the console.
		console := ftlog.Filtered{Logger: ftlog.NewSlogAdapter(logger), Keep: ftlog.WithoutFrames}
		events = ftlog.NewMultiLogger(events, console)
	}

	opts := filetransfer.Options{Root: cfg.Root, Logger: logger}
	var store *history.Store
	if cfg.HistoryDB != "" {
		store, err = history.Open(cfg.HistoryDB)
		if err != nil {
			return err
		}
		closers = append(closers, store)
		opts.Recorder = store
	}
	files, err := filetransfer.New(opts)
	if err != nil {
		return err
	}

	handler, err := service.NewHandler(service.Config{Files: files, Logger: logger, EventLogger: events})
	if err != nil {
		return err
	}

	ln, err := transport.Listen(transport.DefaultApp, ep, logger)
	if err != nil {
		return err
	}

	var rest *restapi.Server
	if cfg.HTTPAddress != "" {
		// REST gets the same client authentication as the stream in mtls mode.
		rest, err = restapi.NewServer(restapi.Config{
			Files:     files,
			History:   store,
			Logger:    logger,
			TLSConfig: ln.TLSConfig,
		})
		if err != nil {
			ln.Close()
			return err
		}
	}
	srv, err := transport.NewServer(transport.ServerConfig{Listener: ln, Handler: handler, Logger: events})
	if err != nil {
		ln.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if err := srv.Start(gctx); err != nil {
		ln.Close()
		return err
	}
	logger.Info("server listening",
		"address", ln.Describe(),
		"root", files.Root(),
		"version", version.Current)

	g.Go(func() error {
		<-gctx.Done()
		return srv.Stop()
	})

	if rest != nil {
		g.Go(func() error {
			return rest.ListenAndServe(gctx, cfg.HTTPAddress)
		})
	}

	if cfg.Advertise {
		advertise(gctx, g, ep, srv, logger)
	}

	if ready != nil {
		ready(srv)
	}

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

// checkHTTPAddress applies the listen host rule of the stream transport to
// the REST address. An address without host binds every interface.
func checkHTTPAddress(addr string, allowRemote bool, logger *slog.Logger) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid HTTP address %q: %w", addr, err)
	}
	if err := transport.CheckHost(host, allowRemote, logger); err != nil {
		return fmt.Errorf("HTTP address: %w", err)
	}
	return nil
}

// advertise announces a TCP server via mDNS until ctx is done. Failures
// are logged; the server keeps running without advertisement.
func advertise(ctx context.Context, g *errgroup.Group, ep *transport.Endpoint, srv *transport.Server, logger *slog.Logger) {
	if !ep.IsTCP() {
		logger.Warn("mDNS advertisement is only available in TCP modes", "mode", string(ep.Mode))
		return
	}
	addr, ok := srv.Addr().(*net.TCPAddr)
	if !ok {
		return
	}

	adv := discovery.NewAdvertiser(discovery.DefaultAdvertiserConfig())
	info := &discovery.ServerInfo{
		Port:      addr.Port,
		Version:   version.Current,
		Transport: string(ep.Mode),
	}
	if err := adv.Advertise(info); err != nil {
		logger.Warn("mDNS advertisement failed", "error", err)
		return
	}
	logger.Info("advertising via mDNS", "service", discovery.ServiceType, "port", addr.Port)

	g.Go(func() error {
		<-ctx.Done()
		adv.Stop()
		return nil
	})
}
