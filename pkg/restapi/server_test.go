package restapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filetransfer-tool/filetransfer-go/pkg/cert"
	"github.com/filetransfer-tool/filetransfer-go/pkg/digest"
	"github.com/filetransfer-tool/filetransfer-go/pkg/filetransfer"
	"github.com/filetransfer-tool/filetransfer-go/pkg/history"
	"github.com/filetransfer-tool/filetransfer-go/pkg/restapi"
	"github.com/filetransfer-tool/filetransfer-go/pkg/transport"
	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	root  string
	store *history.Store
	srv   *restapi.Server
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store, err := history.Open(history.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	root := t.TempDir()
	files, err := filetransfer.New(filetransfer.Options{Root: root, Recorder: store, Logger: quietLogger})
	require.NoError(t, err)

	srv, err := restapi.NewServer(restapi.Config{
		Files:   files,
		History: store,
		Version: "1.2.3",
		Logger:  quietLogger,
	})
	require.NoError(t, err)
	return &fixture{root: root, store: store, srv: srv}
}

func (f *fixture) do(t *testing.T, method, target string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	f.srv.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) restapi.ErrorResponse {
	t.Helper()
	var resp restapi.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestNewServerRequiresFiles(t *testing.T) {
	_, err := restapi.NewServer(restapi.Config{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	f := setup(t)

	w := f.do(t, http.MethodGet, "/api/v1/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "1.2.3", resp["version"])

	w = f.do(t, http.MethodPost, "/api/v1/health", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestFileInfo(t *testing.T) {
	f := setup(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "a.txt"), []byte("hello"), 0o644))

	w := f.do(t, http.MethodGet, "/api/v1/files/info?path=a.txt&sha1=true", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp restapi.InfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Exists)
	require.NotNil(t, resp.File)
	assert.Equal(t, int64(5), resp.File.Size)
	assert.Equal(t, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", resp.File.SHA1)

	w = f.do(t, http.MethodGet, "/api/v1/files/info?path=missing", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = restapi.InfoResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Exists)
	assert.Nil(t, resp.File)

	w = f.do(t, http.MethodGet, "/api/v1/files/info?path=a.txt&sha1=maybe", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/files/info", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ARGUMENT", decodeError(t, w).Status)
}

func TestDelete(t *testing.T) {
	f := setup(t)
	target := filepath.Join(f.root, "gone")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	w := f.do(t, http.MethodDelete, "/api/v1/files?path=gone", nil, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))

	w = f.do(t, http.MethodDelete, "/api/v1/files?path=gone", nil, nil)
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "File does not exist: gone", resp.Error)
	assert.Equal(t, "FAILED_PRECONDITION", resp.Status)

	w = f.do(t, http.MethodGet, "/api/v1/files?path=gone", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestDownload(t *testing.T) {
	f := setup(t)
	data := bytes.Repeat([]byte("0123456789"), 10000)
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "big.bin"), data, 0o644))

	w := f.do(t, http.MethodGet, "/api/v1/files/content?path=big.bin&sha1=true", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, data, w.Body.Bytes())
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Len(t, w.Header().Get(restapi.SHA1Header), 40)

	w = f.do(t, http.MethodGet, "/api/v1/files/content?path=big.bin", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(restapi.SHA1Header))

	w = f.do(t, http.MethodGet, "/api/v1/files/content?path=missing", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, filetransfer.MsgFileNotFound, decodeError(t, w).Error)

	require.NoError(t, os.Mkdir(filepath.Join(f.root, "dir"), 0o755))
	w = f.do(t, http.MethodGet, "/api/v1/files/content?path=dir", nil, nil)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
}

func TestUpload(t *testing.T) {
	f := setup(t)
	data := []byte("uploaded over http")
	sum := digest.NewWriter()
	_, _ = sum.Write(data)

	t.Run("with checksum", func(t *testing.T) {
		w := f.do(t, http.MethodPut, "/api/v1/files/content?path=up.txt", bytes.NewReader(data),
			http.Header{restapi.SHA1Header: {sum.Hex()}})
		require.Equal(t, http.StatusCreated, w.Code)
		var resp restapi.UploadResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, int64(len(data)), resp.File.Size)

		stored, err := os.ReadFile(filepath.Join(f.root, "up.txt"))
		require.NoError(t, err)
		assert.Equal(t, data, stored)
	})

	t.Run("checksum mismatch", func(t *testing.T) {
		w := f.do(t, http.MethodPut, "/api/v1/files/content?path=bad.txt", bytes.NewReader(data),
			http.Header{restapi.SHA1Header: {strings.Repeat("0", 40)}})
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "DATA_LOSS", decodeError(t, w).Status)
		_, err := os.Stat(filepath.Join(f.root, "bad.txt"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("missing directory", func(t *testing.T) {
		w := f.do(t, http.MethodPut, "/api/v1/files/content?path=no/such/dir/f", bytes.NewReader(data), nil)
		require.Equal(t, http.StatusPreconditionFailed, w.Code)
		assert.Equal(t, filetransfer.MsgOpenOutput, decodeError(t, w).Error)
	})

	t.Run("length required", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/files/content?path=x", strings.NewReader("abc"))
		req.ContentLength = -1
		w := httptest.NewRecorder()
		f.srv.ServeHTTP(w, req)
		assert.Equal(t, http.StatusLengthRequired, w.Code)
	})

	t.Run("body longer than announced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/files/content?path=long", strings.NewReader("abcdef"))
		req.ContentLength = 3
		w := httptest.NewRecorder()
		f.srv.ServeHTTP(w, req)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, filetransfer.MsgTooMuchData, decodeError(t, w).Error)
		entries, err := os.ReadDir(f.root)
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotEqual(t, "long", e.Name())
			assert.False(t, strings.HasSuffix(e.Name(), ".part"), "temporary file %s left behind", e.Name())
		}
	})
}

func TestTransfers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "a"), []byte("abc"), 0o644))

	w := f.do(t, http.MethodGet, "/api/v1/files/content?path=a", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodDelete, "/api/v1/files?path=a", nil, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	count, err := f.store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	w = f.do(t, http.MethodGet, "/api/v1/transfers?limit=1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp restapi.TransferListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Transfers, 1)
	assert.Equal(t, "delete", resp.Transfers[0].Kind)
	assert.Equal(t, "rest", resp.Transfers[0].Interface)
	assert.Equal(t, wire.StatusOK.String(), resp.Transfers[0].Status)

	w = f.do(t, http.MethodGet, "/api/v1/transfers?limit=-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransfersWithoutHistory(t *testing.T) {
	files, err := filetransfer.New(filetransfer.Options{Root: t.TempDir(), Logger: quietLogger})
	require.NoError(t, err)
	srv, err := restapi.NewServer(restapi.Config{Files: files, Logger: quietLogger})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/transfers", nil))
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		status wire.Status
		want   int
	}{
		{wire.StatusOK, http.StatusOK},
		{wire.StatusInvalidArgument, http.StatusBadRequest},
		{wire.StatusNotFound, http.StatusNotFound},
		{wire.StatusFailedPrecondition, http.StatusPreconditionFailed},
		{wire.StatusDataLoss, http.StatusUnprocessableEntity},
		{wire.StatusUnimplemented, http.StatusNotImplemented},
		{wire.StatusInternal, http.StatusInternalServerError},
		{wire.StatusUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, restapi.HTTPStatus(tt.status))
		})
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	f := setup(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/v1/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	require.NoError(t, <-done)
}

// brokenWriter accepts headers but fails every body write.
type brokenWriter struct {
	header http.Header
	code   int
}

func (b *brokenWriter) Header() http.Header       { return b.header }
func (b *brokenWriter) WriteHeader(code int)      { b.code = code }
func (b *brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestJSONWriteFailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	files, err := filetransfer.New(filetransfer.Options{Root: t.TempDir(), Logger: quietLogger})
	require.NoError(t, err)
	srv, err := restapi.NewServer(restapi.Config{Files: files, Logger: logger})
	require.NoError(t, err)

	w := &brokenWriter{header: http.Header{}}
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, w.code)
	assert.Contains(t, logs.String(), "failed to write JSON response")
	assert.Contains(t, logs.String(), "connection reset")
}

func TestServeTLSRequiresClientCertificate(t *testing.T) {
	certsDir := t.TempDir()
	require.NoError(t, cert.GenerateDir(certsDir, cert.GenerateDirOptions{}))
	serverTLS, err := transport.LoadServerTLSConfig(certsDir)
	require.NoError(t, err)
	clientTLS, err := transport.LoadClientTLSConfig(certsDir, "localhost")
	require.NoError(t, err)
	clientTLS.NextProtos = nil

	files, err := filetransfer.New(filetransfer.Options{Root: t.TempDir(), Logger: quietLogger})
	require.NoError(t, err)
	srv, err := restapi.NewServer(restapi.Config{Files: files, Logger: quietLogger, TLSConfig: serverTLS})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	url := "https://" + ln.Addr().String() + "/api/v1/health"

	if resp, err := http.Get("http://" + ln.Addr().String() + "/api/v1/health"); err == nil {
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "plain HTTP must not be served")
	}

	noCert := clientTLS.Clone()
	noCert.Certificates = nil
	_, err = (&http.Client{Transport: &http.Transport{TLSClientConfig: noCert}}).Get(url)
	assert.Error(t, err, "a client without certificate must be rejected")

	resp, err := (&http.Client{Transport: &http.Transport{TLSClientConfig: clientTLS}}).Get(url)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
