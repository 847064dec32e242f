package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/filetransfer-tool/filetransfer-go/pkg/transport"
)

// Config is the server configuration. It is read from an optional YAML
// file; flags given on the command line take precedence.
type Config struct {
	Transport TransportConfig `yaml:"transport"`

	// Root directory served; empty means paths are used as given.
	Root string `yaml:"root"`

	// HTTPAddress enables the REST interface, e.g. "localhost:8080".
	HTTPAddress string `yaml:"http_address"`

	// HistoryDB is the SQLite transfer history ("" disables it).
	HistoryDB string `yaml:"history_db"`

	// Advertise announces TCP servers via mDNS.
	Advertise bool `yaml:"advertise"`

	// EventLog is the path of the binary event log ("" disables it).
	EventLog string `yaml:"event_log"`

	// EventLogFrameData keeps raw frame bytes in the event log.
	EventLogFrameData bool `yaml:"event_log_frame_data"`

	Log LogConfig `yaml:"log"`
}

// TransportConfig mirrors transport.Options.
type TransportConfig struct {
	Mode            string `yaml:"mode"`
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	AllowRemoteHost bool   `yaml:"allow_remote_host"`
	UDSDir          string `yaml:"uds_dir"`
	UDSID           string `yaml:"uds_id"`
	CertsDir        string `yaml:"certs_dir"`
}

// LogConfig selects the console log output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Options returns the transport options.
func (c TransportConfig) Options() transport.Options {
	return transport.Options{
		Mode:            transport.Mode(c.Mode),
		Host:            c.Host,
		Port:            c.Port,
		AllowRemoteHost: c.AllowRemoteHost,
		UDSDir:          c.UDSDir,
		UDSID:           c.UDSID,
		CertsDir:        c.CertsDir,
	}
}

// defaultConfig returns the configuration used without file and flags.
func defaultConfig() Config {
	return Config{
		Transport: TransportConfig{Mode: string(transport.DefaultMode)},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// loadConfigFile reads a YAML configuration on top of cfg.
func loadConfigFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// flagValues holds the raw command-line values.
type flagValues struct {
	configPath  string
	showVersion bool
	cfg         Config
}

// registerFlags binds all server flags to fs.
func registerFlags(fs *pflag.FlagSet, v *flagValues) {
	def := defaultConfig()
	fs.StringVar(&v.configPath, "config", "", "YAML configuration file")
	fs.BoolVar(&v.showVersion, "version", false, "Print the version and exit")

	fs.StringVar(&v.cfg.Transport.Mode, "transport-mode", def.Transport.Mode, "Transport mode: insecure, uds or mtls")
	fs.StringVar(&v.cfg.Transport.Host, "host", transport.DefaultHost, "Listen host for insecure and mtls modes")
	fs.IntVar(&v.cfg.Transport.Port, "port", transport.DefaultPort, "Listen port for insecure and mtls modes")
	fs.BoolVar(&v.cfg.Transport.AllowRemoteHost, "allow-remote-host", false, "Allow listening on hosts other than localhost")
	fs.StringVar(&v.cfg.Transport.UDSDir, "uds-dir", "", "Socket directory for uds mode (default: ~/"+transport.DefaultUDSDirName+")")
	fs.StringVar(&v.cfg.Transport.UDSID, "uds-id", "", "Optional socket name suffix for uds mode")
	fs.StringVar(&v.cfg.Transport.CertsDir, "certs-dir", "", "Certificates directory for mtls mode (default: $"+transport.CertsDirEnv+" or "+transport.DefaultCertsDir+")")

	fs.StringVar(&v.cfg.Root, "root", "", "Root directory for served files")
	fs.StringVar(&v.cfg.HTTPAddress, "http-address", "", "Address of the REST interface (disabled when empty)")
	fs.StringVar(&v.cfg.HistoryDB, "history-db", "", "SQLite transfer history database (disabled when empty)")
	fs.BoolVar(&v.cfg.Advertise, "advertise", false, "Advertise the server via mDNS (TCP modes only)")
	fs.StringVar(&v.cfg.EventLog, "event-log", "", "Binary event log file (disabled when empty)")
	fs.BoolVar(&v.cfg.EventLogFrameData, "event-log-frame-data", false, "Keep raw frame bytes in the event log")
	fs.StringVar(&v.cfg.Log.Level, "log-level", def.Log.Level, "Log level: debug, info, warn, error")
	fs.StringVar(&v.cfg.Log.Format, "log-format", def.Log.Format, "Log format: text or json")
}

// resolveConfig combines defaults, the configuration file and the flags
// that were set explicitly.
func resolveConfig(fs *pflag.FlagSet, v *flagValues) (Config, error) {
	cfg := defaultConfig()
	if v.configPath != "" {
		if err := loadConfigFile(v.configPath, &cfg); err != nil {
			return Config{}, err
		}
	}

	overrides := map[string]func(){
		"transport-mode":       func() { cfg.Transport.Mode = v.cfg.Transport.Mode },
		"host":                 func() { cfg.Transport.Host = v.cfg.Transport.Host },
		"port":                 func() { cfg.Transport.Port = v.cfg.Transport.Port },
		"allow-remote-host":    func() { cfg.Transport.AllowRemoteHost = v.cfg.Transport.AllowRemoteHost },
		"uds-dir":              func() { cfg.Transport.UDSDir = v.cfg.Transport.UDSDir },
		"uds-id":               func() { cfg.Transport.UDSID = v.cfg.Transport.UDSID },
		"certs-dir":            func() { cfg.Transport.CertsDir = v.cfg.Transport.CertsDir },
		"root":                 func() { cfg.Root = v.cfg.Root },
		"http-address":         func() { cfg.HTTPAddress = v.cfg.HTTPAddress },
		"history-db":           func() { cfg.HistoryDB = v.cfg.HistoryDB },
		"advertise":            func() { cfg.Advertise = v.cfg.Advertise },
		"event-log":            func() { cfg.EventLog = v.cfg.EventLog },
		"event-log-frame-data": func() { cfg.EventLogFrameData = v.cfg.EventLogFrameData },
		"log-level":            func() { cfg.Log.Level = v.cfg.Log.Level },
		"log-format":           func() { cfg.Log.Format = v.cfg.Log.Format },
	}
	for name, apply := range overrides {
		if fs.Changed(name) {
			apply()
		}
	}
	return cfg, nil
}

// parseLevel maps a level name to an slog level.
func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q (expected debug, info, warn or error)", s)
	}
	return level, nil
}
