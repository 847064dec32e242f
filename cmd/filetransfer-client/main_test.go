package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filetransfer-tool/filetransfer-go/pkg/discovery"
	"github.com/filetransfer-tool/filetransfer-go/pkg/filetransfer"
	"github.com/filetransfer-tool/filetransfer-go/pkg/service"
	"github.com/filetransfer-tool/filetransfer-go/pkg/transport"
	"github.com/filetransfer-tool/filetransfer-go/pkg/version"
	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// startServer runs an insecure loopback server and returns its root and
// the flags that reach it.
func startServer(t *testing.T) (string, []string) {
	t.Helper()
	root := t.TempDir()
	files, err := filetransfer.New(filetransfer.Options{Root: root, Logger: quietLogger})
	require.NoError(t, err)
	handler, err := service.NewHandler(service.Config{Files: files, Logger: quietLogger})
	require.NoError(t, err)

	ln, err := transport.Listen(transport.DefaultApp, &transport.Endpoint{Mode: transport.ModeInsecure, Host: "127.0.0.1"}, quietLogger)
	require.NoError(t, err)
	srv, err := transport.NewServer(transport.ServerConfig{Listener: ln, Handler: handler})
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { srv.Stop() })

	_, port, err := net.SplitHostPort(srv.Addr().String())
	require.NoError(t, err)
	return root, []string{"--transport-mode", "insecure", "--host", "127.0.0.1", "--port", port, "--quiet"}
}

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunUsage(t *testing.T) {
	code, out, _ := runCmd(t, "--version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "filetransfer-client "+version.Current+"\n", out)

	code, _, errOut := runCmd(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "missing command")

	code, _, _ = runCmd(t, "--bogus")
	assert.Equal(t, 2, code)

	code, _, errOut = runCmd(t, "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "unknown command")

	code, _, _ = runCmd(t, "--log-level", "loud", "info", "x")
	assert.Equal(t, 2, code)

	code, _, errOut = runCmd(t, "--transport-mode", "insecure", "--host", "10.0.0.1", "info", "x")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "remote host not allowed")
}

func TestCommandsEndToEnd(t *testing.T) {
	root, flags := startServer(t)
	local := filepath.Join(t.TempDir(), "data.bin")
	data := bytes.Repeat([]byte("abc"), 100000)
	require.NoError(t, os.WriteFile(local, data, 0o644))

	code, out, errOut := runCmd(t, append(flags, "--zstd", "--chunk-size", "32768", "upload", local, "copy.bin")...)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Uploaded")
	stored, err := os.ReadFile(filepath.Join(root, "copy.bin"))
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	code, out, errOut = runCmd(t, append(flags, "info", "copy.bin")...)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "copy.bin")
	assert.Contains(t, out, strconv.Itoa(len(data)))

	target := filepath.Join(t.TempDir(), "back.bin")
	code, out, errOut = runCmd(t, append(flags, "download", "copy.bin", target)...)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Downloaded")
	downloaded, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, data, downloaded)

	code, _, errOut = runCmd(t, append(flags, "delete", "copy.bin")...)
	require.Equal(t, 0, code, errOut)
	_, err = os.Stat(filepath.Join(root, "copy.bin"))
	assert.True(t, os.IsNotExist(err))

	code, _, errOut = runCmd(t, append(flags, "delete", "copy.bin")...)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "File does not exist: copy.bin")

	code, _, errOut = runCmd(t, append(flags, "upload")...)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, commands["upload"])
}

func TestShellLine(t *testing.T) {
	var out bytes.Buffer
	s := &session{opts: &options{sha1: true}, stdout: &out, stderr: io.Discard}
	ctx := context.Background()

	quit, err := s.shellLine(ctx, "   ")
	assert.False(t, quit)
	assert.NoError(t, err)

	quit, err = s.shellLine(ctx, "zstd on")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.True(t, s.opts.zstd)
	assert.Contains(t, out.String(), "zstd is on")

	_, err = s.shellLine(ctx, "sha1 off")
	require.NoError(t, err)
	assert.False(t, s.opts.sha1)

	_, err = s.shellLine(ctx, "sha1 maybe")
	assert.ErrorIs(t, err, errUsage)

	_, err = s.shellLine(ctx, "info")
	assert.ErrorIs(t, err, errUsage)

	_, err = s.shellLine(ctx, "help")
	assert.NoError(t, err)
	assert.Contains(t, out.String(), "download <remote> [local]")

	quit, err = s.shellLine(ctx, "QUIT")
	assert.NoError(t, err)
	assert.True(t, quit)
}

func TestTransferOptions(t *testing.T) {
	s := &session{opts: &options{sha1: true, zstd: true, chunkSize: 1024, quiet: true}}
	opts := s.transferOptions("f")
	assert.True(t, opts.VerifySHA1)
	assert.Equal(t, wire.EncodingZstd, opts.Encoding)
	assert.Equal(t, uint32(1024), opts.ChunkSize)
	assert.Nil(t, opts.Progress)
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := progressPrinter(&buf, "f")
	p(0)
	p(0)
	p(50)
	p(100)
	assert.Equal(t, "\rf   0%\rf  50%\rf 100%\n", buf.String())
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	renderInfo(&buf, "f", &wire.FileInfo{Name: "f", Size: 42, SHA1: "abc"}, true)
	assert.Contains(t, buf.String(), "42")
	assert.Contains(t, buf.String(), "abc")

	buf.Reset()
	renderServers(&buf, nil)
	assert.Equal(t, "No servers found.\n", buf.String())

	buf.Reset()
	renderServers(&buf, []*discovery.Server{{
		Instance:  "filetransfer-box",
		Host:      "box.local.",
		Port:      50052,
		Addresses: []string{"192.168.1.2", "fe80::2"},
		Transport: "mtls",
		Version:   "0.3.0",
	}})
	assert.Contains(t, buf.String(), "filetransfer-box")
	assert.Contains(t, buf.String(), "192.168.1.2 (+1)")
}
