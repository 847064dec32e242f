package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/filetransfer-tool/filetransfer-go/pkg/client"
	"github.com/filetransfer-tool/filetransfer-go/pkg/discovery"
	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

var commands = map[string]string{
	"info":     "info <remote>",
	"delete":   "delete <remote>",
	"upload":   "upload <local> [remote]",
	"download": "download <remote> [local]",
}

func isCommand(name string) bool {
	_, ok := commands[name]
	return ok
}

// session runs commands on one connection.
type session struct {
	client *client.Client
	opts   *options
	stdout io.Writer
	stderr io.Writer
}

func newSession(c *client.Client, o *options, stdout, stderr io.Writer) *session {
	return &session{client: c, opts: o, stdout: stdout, stderr: stderr}
}

func (s *session) execute(ctx context.Context, name string, args []string) error {
	switch name {
	case "info":
		if len(args) != 1 {
			return usage(name)
		}
		return s.info(ctx, args[0])

	case "delete":
		if len(args) != 1 {
			return usage(name)
		}
		if err := s.client.DeleteFile(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(s.stdout, "Deleted %s\n", args[0])
		return nil

	case "upload":
		if len(args) < 1 || len(args) > 2 {
			return usage(name)
		}
		local, remote := args[0], filepath.Base(args[0])
		if len(args) == 2 {
			remote = args[1]
		}
		if err := s.client.Upload(ctx, local, remote, s.transferOptions(remote)); err != nil {
			return err
		}
		fmt.Fprintf(s.stdout, "Uploaded %s to %s\n", local, remote)
		return nil

	case "download":
		if len(args) < 1 || len(args) > 2 {
			return usage(name)
		}
		remote, local := args[0], filepath.Base(args[0])
		if len(args) == 2 {
			local = args[1]
		}
		info, err := s.client.Download(ctx, remote, local, s.transferOptions(remote))
		if err != nil {
			return err
		}
		fmt.Fprintf(s.stdout, "Downloaded %s to %s (%d bytes)\n", remote, local, info.Size)
		return nil

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}
}

func (s *session) info(ctx context.Context, remote string) error {
	info, exists, err := s.client.GetFileInfo(ctx, remote, s.opts.sha1)
	if err != nil {
		return err
	}
	renderInfo(s.stdout, remote, info, exists)
	return nil
}

func (s *session) transferOptions(name string) client.TransferOptions {
	opts := client.TransferOptions{
		ChunkSize:  s.opts.chunkSize,
		VerifySHA1: s.opts.sha1,
	}
	if s.opts.zstd {
		opts.Encoding = wire.EncodingZstd
	}
	if !s.opts.quiet {
		opts.Progress = progressPrinter(s.stderr, name)
	}
	return opts
}

func usage(name string) error {
	return fmt.Errorf("%w: %s", errUsage, commands[name])
}

// progressPrinter rewrites one status line per transfer.
func progressPrinter(w io.Writer, name string) client.ProgressFunc {
	last := int32(-1)
	return func(state int32) {
		if state == last {
			return
		}
		last = state
		fmt.Fprintf(w, "\r%s %3d%%", name, state)
		if state >= 100 {
			fmt.Fprintln(w)
		}
	}
}

// renderInfo prints the description of a remote file.
func renderInfo(w io.Writer, name string, info *wire.FileInfo, exists bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"File", "Exists", "Size", "SHA1"})
	if exists && info != nil {
		t.AppendRow(table.Row{info.Name, text.FgGreen.Sprint("yes"), strconv.FormatInt(info.Size, 10), orDash(info.SHA1)})
	} else {
		t.AppendRow(table.Row{name, text.FgRed.Sprint("no"), "-", "-"})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// renderServers prints discovered servers.
func renderServers(w io.Writer, servers []*discovery.Server) {
	if len(servers) == 0 {
		fmt.Fprintln(w, "No servers found.")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Instance", "Host", "Port", "Addresses", "Transport", "Version"})
	for _, s := range servers {
		addrs := "-"
		if len(s.Addresses) > 0 {
			addrs = s.Addresses[0]
			if len(s.Addresses) > 1 {
				addrs += fmt.Sprintf(" (+%d)", len(s.Addresses)-1)
			}
		}
		t.AppendRow(table.Row{s.Instance, s.Host, s.Port, addrs, s.Transport, s.Version})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
