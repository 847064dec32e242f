package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filetransfer-tool/filetransfer-go/pkg/cert"
)

func TestRunGeneratesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")
	var stdout, stderr bytes.Buffer

	code := run([]string{"--dir", dir, "--host", "ft.example", "--host", "10.0.0.5"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), dir)

	server, err := cert.ReadCertFile(filepath.Join(dir, cert.ServerCertFile))
	require.NoError(t, err)
	assert.Equal(t, "ft.example", server.Subject.CommonName)
	assert.Contains(t, server.DNSNames, "ft.example")
	require.Len(t, server.IPAddresses, 1)
	assert.Equal(t, "10.0.0.5", server.IPAddresses[0].String())

	_, err = cert.LoadCertPool(filepath.Join(dir, cert.CAFile))
	require.NoError(t, err)

	// Existing files are kept unless --force is given.
	stderr.Reset()
	assert.Equal(t, 1, run([]string{"--dir", dir}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "already exists")
	assert.Equal(t, 0, run([]string{"--dir", dir, "--force"}, &stdout, &stderr))
}

func TestRunUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run([]string{"--bogus"}, &stdout, &stderr))
	assert.Equal(t, 2, run([]string{"--validity=-1h"}, &stdout, &stderr))
	assert.Equal(t, 0, run([]string{"--help"}, &stdout, &stderr))
}

func TestDefaultDir(t *testing.T) {
	t.Setenv("ANSYS_GRPC_CERTIFICATES", "/etc/ft-certs")
	assert.Equal(t, "/etc/ft-certs", defaultDir())

	t.Setenv("ANSYS_GRPC_CERTIFICATES", "")
	assert.Equal(t, "certs", defaultDir())
}
