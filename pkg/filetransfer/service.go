package filetransfer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/filetransfer-tool/filetransfer-go/pkg/digest"
	"github.com/filetransfer-tool/filetransfer-go/pkg/log"
	"github.com/filetransfer-tool/filetransfer-go/pkg/wire"
)

// Options configures a Service.
type Options struct {
	// Root confines all file names to this directory. Empty means names
	// are used as given, relative to the working directory.
	Root string

	// Recorder receives every finished download, upload and delete
	// (optional).
	Recorder Recorder

	// Logger for operational messages (default: slog.Default()).
	Logger *slog.Logger
}

// Service implements the file semantics shared by the stream protocol and
// the REST interface. It is safe for concurrent use; the Download and
// Upload values it returns are not.
type Service struct {
	root     string
	realRoot string
	recorder Recorder
	logger   *slog.Logger

	// now is replaced in tests.
	now func() time.Time
}

// New creates a Service.
func New(opts Options) (*Service, error) {
	s := &Service{
		recorder: opts.Recorder,
		logger:   opts.Logger,
		now:      time.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	if opts.Root != "" {
		root, err := filepath.Abs(opts.Root)
		if err != nil {
			return nil, fmt.Errorf("resolve root: %w", err)
		}
		st, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("root directory: %w", err)
		}
		if !st.IsDir() {
			return nil, fmt.Errorf("root %s is not a directory", root)
		}
		resolved, err := filepath.EvalSymlinks(root)
		if err != nil {
			return nil, fmt.Errorf("resolve root: %w", err)
		}
		s.root, s.realRoot = root, resolved
	}
	return s, nil
}

// Root returns the absolute root directory, or "" when unconfined.
func (s *Service) Root() string {
	return s.root
}

// Resolve maps a client-supplied file name to a local path. With a root,
// the path must stay under it both lexically and after following the
// symlinks of its existing part.
func (s *Service) Resolve(name string) (string, error) {
	if name == "" {
		return "", NewError(wire.StatusInvalidArgument, "A file name is required.")
	}
	if strings.IndexByte(name, 0) >= 0 {
		return "", Errorf(wire.StatusInvalidArgument, "Invalid file name: %q", name)
	}
	if s.root == "" {
		return filepath.Clean(name), nil
	}

	path := filepath.Join(s.root, filepath.FromSlash(name))
	if !within(s.root, path) {
		return "", errOutsideRoot(name)
	}
	resolved, err := evalExisting(path)
	if err != nil || !within(s.realRoot, resolved) {
		return "", errOutsideRoot(name)
	}
	return path, nil
}

func errOutsideRoot(name string) error {
	return Errorf(wire.StatusInvalidArgument, "Path %s is outside the server root.", name)
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// evalExisting follows the symlinks of the longest existing prefix of path
// and appends the missing rest. A dangling link fails.
func evalExisting(path string) (string, error) {
	existing, rest := path, ""
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolved, rest), nil
}

// Info returns the description of the regular file name. exists is false
// when the file does not exist; info is nil in that case.
func (s *Service) Info(name string, computeSHA1 bool) (info *wire.FileInfo, exists bool, err error) {
	path, err := s.Resolve(name)
	if err != nil {
		return nil, false, err
	}

	st, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapError(wire.StatusInternal, "Could not read file status.", err)
	}
	if !st.Mode().IsRegular() {
		return nil, false, Errorf(wire.StatusFailedPrecondition, "Path %s is not a regular file.", name)
	}

	info = &wire.FileInfo{Name: name, Size: st.Size()}
	if computeSHA1 {
		sum, err := digest.SHA1Hex(path)
		if err != nil {
			return nil, false, wrapError(wire.StatusInternal, "Could not compute the file checksum.", err)
		}
		info.SHA1 = sum
	}
	return info, true, nil
}

// Delete removes the regular file name.
func (s *Service) Delete(ctx context.Context, name string, iface log.Interface) error {
	started := s.now()
	s.logger.Info("got deletion request", "file", name, "interface", iface.String())

	err := s.delete(name)

	rec := Record{
		Operation: wire.OpDeleteFile,
		Path:      name,
		Status:    StatusOf(err),
		Message:   MessageOf(err),
		Interface: iface,
		StartedAt: started,
		Duration:  s.now().Sub(started),
	}
	s.record(ctx, rec)

	if err != nil {
		return err
	}
	s.logger.Info("deleted file", "file", name)
	return nil
}

func (s *Service) delete(name string) error {
	path, err := s.Resolve(name)
	if err != nil {
		return err
	}
	st, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Errorf(wire.StatusFailedPrecondition, "File does not exist: %s", name)
	}
	if err != nil {
		return wrapError(wire.StatusInternal, "Could not read file status.", err)
	}
	if !st.Mode().IsRegular() {
		return Errorf(wire.StatusFailedPrecondition, "Path %s is not a regular file.", name)
	}
	if err := os.Remove(path); err != nil {
		return wrapError(wire.StatusInternal, "Could not delete file.", err)
	}
	return nil
}

// record hands rec to the recorder. Failures are logged, never returned.
func (s *Service) record(ctx context.Context, rec Record) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, rec); err != nil {
		s.logger.Warn("failed to record transfer",
			"operation", rec.Operation.String(), "file", rec.Path, "error", err)
	}
}
