package restapi

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/filetransfer-tool/filetransfer-go/pkg/filetransfer"
	"github.com/filetransfer-tool/filetransfer-go/pkg/history"
	"github.com/filetransfer-tool/filetransfer-go/pkg/log"
	"github.com/filetransfer-tool/filetransfer-go/pkg/version"
	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

// SHA1Header carries the lower-case hex SHA1 of a file body.
const SHA1Header = "X-File-Sha1"

// Config holds configuration for the HTTP server.
type Config struct {
	// Files implements the file operations (required).
	Files *filetransfer.Service

	// History backs /api/v1/transfers (optional).
	History *history.Store

	// Version reported by the health endpoint (default: version.Current).
	Version string

	// Logger for operational messages (default: slog.Default()).
	Logger *slog.Logger

	// TLSConfig makes Serve accept TLS connections only (optional). Client
	// certificate requirements are kept; ALPN is set to HTTP/1.1.
	TLSConfig *tls.Config
}

// Server is the REST interface to the file service.
type Server struct {
	config Config
	mux    *http.ServeMux
	logger *slog.Logger
}

// NewServer creates a new server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Files == nil {
		return nil, errors.New("restapi: file service is required")
	}
	if cfg.Version == "" {
		cfg.Version = version.Current
	}
	s := &Server{
		config: cfg,
		mux:    http.NewServeMux(),
		logger: cfg.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/api/v1/health", s.handleHealth)
	s.mux.HandleFunc("/api/v1/files/info", s.handleInfo)
	s.mux.HandleFunc("/api/v1/files", s.handleFiles)
	s.mux.HandleFunc("/api/v1/files/content", s.handleContent)
	s.mux.HandleFunc("/api/v1/transfers", s.handleTransfers)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Serve accepts HTTP connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.config.TLSConfig != nil {
		conf := s.config.TLSConfig.Clone()
		conf.NextProtos = []string{"http/1.1"}
		ln = tls.NewListener(ln, conf)
	}
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	s.logger.Info("REST interface listening", "address", ln.Addr().String(), "tls", s.config.TLSConfig != nil)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown REST interface: %w", err)
		}
		<-errCh
		return nil
	}
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// FileInfo is the JSON form of a file description.
type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	SHA1 string `json:"sha1,omitempty"`
}

// InfoResponse is returned by GET /api/v1/files/info.
type InfoResponse struct {
	Exists bool      `json:"exists"`
	File   *FileInfo `json:"file,omitempty"`
}

// UploadResponse is returned by PUT /api/v1/files/content.
type UploadResponse struct {
	File FileInfo `json:"file"`
}

// TransferListResponse is returned by GET /api/v1/transfers.
type TransferListResponse struct {
	Transfers []history.Entry `json:"transfers"`
	Total     int             `json:"total"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.config.Version,
	})
}

// handleInfo handles GET /api/v1/files/info?path=&sha1=.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	withSHA1, err := boolParam(r, "sha1")
	if err != nil {
		s.writeError(w, err)
		return
	}
	info, exists, err := s.config.Files.Info(r.URL.Query().Get("path"), withSHA1)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := InfoResponse{Exists: exists}
	if info != nil {
		resp.File = toFileInfo(*info)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleFiles handles DELETE /api/v1/files?path=.
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if err := s.config.Files.Delete(r.Context(), r.URL.Query().Get("path"), log.InterfaceREST); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleContent handles GET and PUT /api/v1/files/content?path=.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleDownload(w, r)
	case http.MethodPut:
		s.handleUpload(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	withSHA1, err := boolParam(r, "sha1")
	if err != nil {
		s.writeError(w, err)
		return
	}
	dl, err := s.config.Files.OpenDownload(r.URL.Query().Get("path"), filetransfer.DownloadOptions{
		ComputeSHA1: withSHA1,
		Interface:   log.InterfaceREST,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	info := dl.Info()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	if info.SHA1 != "" {
		w.Header().Set(SHA1Header, info.SHA1)
	}
	w.WriteHeader(http.StatusOK)

	_, err = dl.WriteTo(w)
	if err != nil {
		s.logger.Warn("download interrupted", "path", info.Name, "error", err)
		err = filetransfer.NewError(wire.StatusInvalidArgument, filetransfer.MsgStreamStopped)
	}
	dl.Finish(r.Context(), err)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength < 0 {
		s.writeJSON(w, http.StatusLengthRequired, ErrorResponse{
			Error:  "Content-Length is required.",
			Status: wire.StatusInvalidArgument.String(),
		})
		return
	}
	up, err := s.config.Files.BeginUpload(wire.FileInfo{
		Name: r.URL.Query().Get("path"),
		Size: r.ContentLength,
		SHA1: r.Header.Get(SHA1Header),
	}, filetransfer.UploadOptions{Interface: log.InterfaceREST})
	if err != nil {
		s.writeError(w, err)
		return
	}

	if _, err := up.ReadFrom(r.Body); err != nil {
		var ftErr *filetransfer.Error
		if !errors.As(err, &ftErr) {
			err = filetransfer.NewError(wire.StatusInvalidArgument, filetransfer.MsgStreamStopped)
		}
		up.Abort(r.Context(), err)
		s.writeError(w, err)
		return
	}
	if err := up.Commit(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, UploadResponse{File: *toFileInfo(up.Info())})
}

// handleTransfers handles GET /api/v1/transfers?limit=&offset=.
func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.config.History == nil {
		s.writeError(w, filetransfer.NewError(wire.StatusUnimplemented, "Transfer history is not enabled."))
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		s.writeError(w, err)
		return
	}
	offset, err := intParam(r, "offset")
	if err != nil {
		s.writeError(w, err)
		return
	}
	entries, err := s.config.History.List(r.Context(), limit, offset)
	if err != nil {
		s.writeError(w, filetransfer.Errorf(wire.StatusInternal, "Failed to list transfers: %v", err))
		return
	}
	total, err := s.config.History.Count(r.Context())
	if err != nil {
		s.writeError(w, filetransfer.Errorf(wire.StatusInternal, "Failed to count transfers: %v", err))
		return
	}
	s.writeJSON(w, http.StatusOK, TransferListResponse{Transfers: entries, Total: total})
}

func toFileInfo(info wire.FileInfo) *FileInfo {
	return &FileInfo{Name: info.Name, Size: info.Size, SHA1: info.SHA1}
}

func boolParam(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, filetransfer.Errorf(wire.StatusInvalidArgument, "Invalid value for %s: %q.", name, v)
	}
	return b, nil
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, filetransfer.Errorf(wire.StatusInvalidArgument, "Invalid value for %s: %q.", name, v)
	}
	return n, nil
}

// HTTPStatus maps a protocol status to an HTTP status code.
func HTTPStatus(status wire.Status) int {
	switch status {
	case wire.StatusOK:
		return http.StatusOK
	case wire.StatusInvalidArgument:
		return http.StatusBadRequest
	case wire.StatusNotFound:
		return http.StatusNotFound
	case wire.StatusFailedPrecondition:
		return http.StatusPreconditionFailed
	case wire.StatusDataLoss:
		return http.StatusUnprocessableEntity
	case wire.StatusUnimplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := filetransfer.StatusOf(err)
	s.writeJSON(w, HTTPStatus(status), ErrorResponse{
		Error:  filetransfer.MessageOf(err),
		Status: status.String(),
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

// writeJSON sends data with status. Encoding errors happen after the
// header is out, so they can only be logged.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("failed to write JSON response", "status", status, "error", err)
	}
}
