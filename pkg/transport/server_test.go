package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filetransfer-tool/filetransfer-go/pkg/cert"
	"github.com/filetransfer-tool/filetransfer-go/pkg/version"
	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

const testApp = "transport-test"

// echoHandler answers every request with its filename in Message.
var echoHandler = HandlerFunc(func(ctx context.Context, s Stream) {
	for {
		req, err := s.Recv()
		if err != nil {
			if errors.Is(err, ErrInvalidMessage) && req != nil {
				_ = s.Send(wire.ErrorResponse(req.MessageID, wire.StatusInvalidArgument, err.Error()))
				continue
			}
			return
		}
		if err := s.Send(&wire.Response{MessageID: req.MessageID, Message: req.Filename}); err != nil {
			return
		}
	}
})

func startServer(t *testing.T, ln *Listener) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{Listener: ln, Handler: echoHandler})
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func clientEndpoint(t *testing.T, ep *Endpoint, srv *Server) *Endpoint {
	t.Helper()
	if ep.Mode == ModeUDS {
		return ep
	}
	_, portStr, err := net.SplitHostPort(srv.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	cp := *ep
	cp.Port = port
	return &cp
}

func roundTrip(t *testing.T, conn *ClientConn, id uint32, name string) {
	t.Helper()
	require.NoError(t, conn.Send(&wire.Request{MessageID: id, Operation: wire.OpGetFileInfo, Filename: name}))
	resp, err := conn.Recv()
	require.NoError(t, err)
	assert.Equal(t, id, resp.MessageID)
	assert.Equal(t, name, resp.Message)
}

func TestServerModes(t *testing.T) {
	certsDir := filepath.Join(t.TempDir(), "certs")
	require.NoError(t, cert.GenerateDir(certsDir, cert.GenerateDirOptions{}))

	tests := []struct {
		name string
		ep   *Endpoint
	}{
		{"insecure", &Endpoint{Mode: ModeInsecure, Host: "127.0.0.1"}},
		{"uds", &Endpoint{Mode: ModeUDS, UDSDir: filepath.Join(t.TempDir(), "sock")}},
		{"mtls", &Endpoint{Mode: ModeMTLS, Host: "127.0.0.1", CertsDir: certsDir}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ln, err := Listen(testApp, tt.ep, nil)
			require.NoError(t, err)
			srv := startServer(t, ln)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			conn, err := Dial(ctx, testApp, clientEndpoint(t, tt.ep, srv), DialOptions{})
			require.NoError(t, err)
			defer conn.Close()

			roundTrip(t, conn, 1, "a.txt")
			roundTrip(t, conn, 2, "b.txt")

			assert.Eventually(t, func() bool { return srv.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)
		})
	}
}

func TestServerInvalidRequestIsAnswered(t *testing.T) {
	ln, err := Listen(testApp, &Endpoint{Mode: ModeInsecure, Host: "127.0.0.1"}, nil)
	require.NoError(t, err)
	srv := startServer(t, ln)

	raw, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer raw.Close()

	f := NewFramer(raw, FrameOptions{})
	data, err := wire.Marshal(&wire.Request{MessageID: 9, Operation: wire.OpUploadFile})
	require.NoError(t, err)
	require.NoError(t, f.WriteFrame(data))

	frame, err := f.ReadFrame()
	require.NoError(t, err)
	resp, err := wire.DecodeResponse(frame)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), resp.MessageID)
	assert.Equal(t, wire.StatusInvalidArgument, resp.Status)
}

func TestUDSSocketLifecycle(t *testing.T) {
	ep := &Endpoint{Mode: ModeUDS, UDSDir: filepath.Join(t.TempDir(), "conn"), UDSID: "3"}

	ln, err := Listen(testApp, ep, nil)
	require.NoError(t, err)

	info, err := os.Stat(ep.UDSDir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	path := ep.SocketPath(testApp)
	assert.Equal(t, path, ln.SocketPath)
	assert.Equal(t, "unix://"+path, ln.Describe())
	_, err = os.Stat(path)
	require.NoError(t, err)

	// A second server with the same name refuses to start.
	_, err = Listen(testApp, ep, nil)
	assert.ErrorIs(t, err, ErrSocketExists)

	require.NoError(t, ln.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "socket file should be removed on close")
}

func TestListenMTLSMissingCertificates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, cert.ServerCertFile), []byte("x"), 0o644))

	_, err := Listen(testApp, &Endpoint{Mode: ModeMTLS, Host: "127.0.0.1", CertsDir: dir}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCertFile)
	assert.Contains(t, err.Error(), cert.ServerKeyFile)
	assert.Contains(t, err.Error(), cert.CAFile)
	assert.NotContains(t, err.Error(), filepath.Join(dir, cert.ServerCertFile))
}

func TestServerMTLSRejectsTLS12AndMissingClientCert(t *testing.T) {
	certsDir := t.TempDir()
	require.NoError(t, cert.GenerateDir(certsDir, cert.GenerateDirOptions{Overwrite: true}))

	ln, err := Listen(testApp, &Endpoint{Mode: ModeMTLS, Host: "127.0.0.1", CertsDir: certsDir}, nil)
	require.NoError(t, err)
	srv := startServer(t, ln)

	pool, err := cert.LoadCertPool(filepath.Join(certsDir, cert.CAFile))
	require.NoError(t, err)

	conn12, err := tls.Dial("tcp", srv.Addr().String(), &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS12,
		RootCAs:    pool,
		ServerName: "127.0.0.1",
	})
	if err == nil {
		conn12.Close()
		t.Error("TLS 1.2 connection should have been rejected")
	}

	// TLS 1.3 without a client certificate fails once the server reads.
	noCert, err := tls.Dial("tcp", srv.Addr().String(), &tls.Config{
		MinVersion: tls.VersionTLS13,
		RootCAs:    pool,
		ServerName: "127.0.0.1",
		NextProtos: []string{version.ALPNProtocol()},
	})
	if err == nil {
		defer noCert.Close()
		noCert.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, err = noCert.Read(make([]byte, 1))
		assert.Error(t, err)
	}
	assert.Equal(t, 0, srv.ConnectionCount())
}

func TestServerStopClosesConnections(t *testing.T) {
	ln, err := Listen(testApp, &Endpoint{Mode: ModeInsecure, Host: "127.0.0.1"}, nil)
	require.NoError(t, err)
	srv, err := NewServer(ServerConfig{Listener: ln, Handler: echoHandler})
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return srv.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- srv.Stop() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, 0, srv.ConnectionCount())

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestServerServeReturnsOnCancel(t *testing.T) {
	ln, err := Listen(testApp, &Endpoint{Mode: ModeInsecure, Host: "127.0.0.1"}, nil)
	require.NoError(t, err)
	srv, err := NewServer(ServerConfig{Listener: ln, Handler: echoHandler})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestNewServerRequiresListenerAndHandler(t *testing.T) {
	_, err := NewServer(ServerConfig{Handler: echoHandler})
	assert.Error(t, err)

	ln, err := Listen(testApp, &Endpoint{Mode: ModeInsecure, Host: "127.0.0.1"}, nil)
	require.NoError(t, err)
	defer ln.Close()
	_, err = NewServer(ServerConfig{Listener: ln})
	assert.Error(t, err)
}

func TestDialWithRetry(t *testing.T) {
	// Reserve a port, then release it so the first attempts are refused.
	probe, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, portStr, _ := net.SplitHostPort(probe.Addr().String())
	port, _ := strconv.Atoi(portStr)
	probe.Close()

	ep := &Endpoint{Mode: ModeInsecure, Host: "127.0.0.1", Port: port}

	go func() {
		time.Sleep(300 * time.Millisecond)
		ln, err := Listen(testApp, ep, nil)
		if err != nil {
			return
		}
		srv, err := NewServer(ServerConfig{Listener: ln, Handler: echoHandler})
		if err != nil {
			return
		}
		_ = srv.Start(context.Background())
		t.Cleanup(func() { srv.Stop() })
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, err := DialWithRetry(ctx, testApp, ep, DialOptions{}, 0)
	require.NoError(t, err)
	defer conn.Close()
	roundTrip(t, conn, 1, "retry")
}

func TestDialMTLSMissingClientCertsIsPermanent(t *testing.T) {
	ep := &Endpoint{Mode: ModeMTLS, Host: "127.0.0.1", Port: 1, CertsDir: t.TempDir()}
	_, err := DialWithRetry(context.Background(), testApp, ep, DialOptions{}, 0)
	assert.ErrorIs(t, err, ErrMissingCertFile)
}

// failingListener fails every Accept until it is closed.
type failingListener struct {
	net.Listener
	accepts atomic.Int32
	closed  chan struct{}
}

func (l *failingListener) Accept() (net.Conn, error) {
	l.accepts.Add(1)
	select {
	case <-l.closed:
		return nil, net.ErrClosed
	default:
		return nil, errors.New("too many open files")
	}
}

func (l *failingListener) Close() error {
	close(l.closed)
	return nil
}

func TestServerBacksOffOnAcceptErrors(t *testing.T) {
	fl := &failingListener{closed: make(chan struct{})}
	var reported atomic.Int32
	srv, err := NewServer(ServerConfig{
		Listener: &Listener{Listener: fl, Endpoint: &Endpoint{Mode: ModeInsecure}},
		Handler:  echoHandler,
		OnError:  func(*ServerConn, error) { reported.Add(1) },
	})
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))

	// 5+10+20+40+80ms of backoff fit in 200ms, so only a handful of
	// retries may happen.
	time.Sleep(200 * time.Millisecond)
	assert.LessOrEqual(t, fl.accepts.Load(), int32(8))
	assert.GreaterOrEqual(t, reported.Load(), int32(2))

	stopped := make(chan struct{})
	go func() {
		srv.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop must not wait for the accept backoff")
	}
}
