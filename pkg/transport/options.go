package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Mode selects how the server is reachable.
type Mode string

const (
	// ModeInsecure is plain TCP without TLS.
	ModeInsecure Mode = "insecure"

	// ModeUDS is a Unix domain socket in a per-user directory.
	ModeUDS Mode = "uds"

	// ModeMTLS is TCP with mutual TLS 1.3.
	ModeMTLS Mode = "mtls"
)

// Transport defaults.
const (
	DefaultMode = ModeUDS
	DefaultHost = "localhost"
	DefaultPort = 50052

	// DefaultApp names the server application; it determines the socket
	// file name in uds mode.
	DefaultApp = "filetransfer-server"

	// CertsDirEnv names the environment variable holding the default mTLS
	// certificates directory.
	CertsDirEnv = "ANSYS_GRPC_CERTIFICATES"

	// DefaultCertsDir is used when CertsDirEnv is unset.
	DefaultCertsDir = "certs"

	// DefaultUDSDirName is created in the user's home directory.
	DefaultUDSDirName = ".conn"
)

// Option validation errors.
var (
	ErrInvalidMode     = errors.New("invalid transport mode")
	ErrHostNotAllowed  = errors.New("remote host not allowed")
	ErrInvalidPort     = errors.New("invalid port")
	ErrNoHomeDirectory = errors.New("cannot determine home directory")
)

// ParseMode parses a transport mode name. The empty string selects
// DefaultMode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultMode, nil
	case ModeInsecure:
		return ModeInsecure, nil
	case ModeUDS:
		return ModeUDS, nil
	case ModeMTLS:
		return ModeMTLS, nil
	default:
		return "", fmt.Errorf("%w %q (expected insecure, uds or mtls)", ErrInvalidMode, s)
	}
}

// Options are the user-facing transport settings. Zero values mean
// "not given" and are replaced with defaults by Validate.
type Options struct {
	Mode            Mode
	Host            string
	Port            int
	AllowRemoteHost bool
	UDSDir          string
	UDSID           string
	CertsDir        string
}

// Endpoint is a validated, fully defaulted set of transport options.
type Endpoint struct {
	Mode     Mode
	Host     string
	Port     int
	UDSDir   string
	UDSID    string
	CertsDir string
}

// Validate checks opts and fills in defaults. Warnings about ignored or
// risky settings are written to logger (slog.Default when nil).
func Validate(opts Options, logger *slog.Logger) (*Endpoint, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mode, err := ParseMode(string(opts.Mode))
	if err != nil {
		return nil, err
	}
	ep := &Endpoint{Mode: mode}

	switch mode {
	case ModeInsecure, ModeMTLS:
		ep.Host = opts.Host
		if ep.Host == "" {
			ep.Host = DefaultHost
		}
		if err := CheckHost(ep.Host, opts.AllowRemoteHost, logger); err != nil {
			return nil, err
		}

		ep.Port = opts.Port
		if ep.Port == 0 {
			ep.Port = DefaultPort
		}
		if ep.Port < 1 || ep.Port > 65535 {
			return nil, fmt.Errorf("%w: %d (must be between 1 and 65535)", ErrInvalidPort, ep.Port)
		}

		if mode == ModeMTLS {
			ep.CertsDir = opts.CertsDir
			if ep.CertsDir == "" {
				ep.CertsDir = os.Getenv(CertsDirEnv)
			}
			if ep.CertsDir == "" {
				ep.CertsDir = DefaultCertsDir
			}
		}

	case ModeUDS:
		if opts.Host != "" || opts.Port != 0 {
			logger.Warn("Host and port are ignored in uds mode.", "host", opts.Host, "port", opts.Port)
		}
		ep.UDSID = opts.UDSID
		ep.UDSDir = opts.UDSDir
		if ep.UDSDir == "" {
			home := homeDir()
			if home == "" {
				return nil, fmt.Errorf("%w for the default socket directory; set the UDS directory explicitly", ErrNoHomeDirectory)
			}
			ep.UDSDir = filepath.Join(home, DefaultUDSDirName)
		}
	}

	return ep, nil
}

// homeDir returns the user's home directory from the environment.
func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("USERPROFILE")
	}
	return os.Getenv("HOME")
}

// IsLocalHost reports whether host is localhost or 127.0.0.1. The empty
// host binds every interface and is not local.
func IsLocalHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1"
}

// CheckHost applies the listen rule of the TCP modes to host: only local
// hosts are accepted unless allowRemote is set, in which case a warning is
// logged.
func CheckHost(host string, allowRemote bool, logger *slog.Logger) error {
	if IsLocalHost(host) {
		return nil
	}
	if !allowRemote {
		return fmt.Errorf("%w: %q; only localhost or 127.0.0.1 are permitted unless remote hosts are explicitly allowed", ErrHostNotAllowed, host)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("Listening on a remote host. Make sure the network is trusted.", "host", host)
	return nil
}

// Address returns host:port for TCP modes.
func (e *Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Network returns the net package network name for the endpoint.
func (e *Endpoint) Network() string {
	if e.Mode == ModeUDS {
		return "unix"
	}
	return "tcp"
}

// SocketName returns the socket file name for app: "<app>.sock" or
// "<app>-<id>.sock".
func (e *Endpoint) SocketName(app string) string {
	if e.UDSID != "" {
		return app + "-" + e.UDSID + ".sock"
	}
	return app + ".sock"
}

// SocketPath returns the full socket path for app.
func (e *Endpoint) SocketPath(app string) string {
	return filepath.Join(e.UDSDir, e.SocketName(app))
}

// Target returns the dial target for app (socket path or host:port).
func (e *Endpoint) Target(app string) string {
	if e.Mode == ModeUDS {
		return e.SocketPath(app)
	}
	return e.Address()
}

// IsTCP returns true for the TCP-based modes.
func (e *Endpoint) IsTCP() bool {
	return e.Mode == ModeInsecure || e.Mode == ModeMTLS
}
