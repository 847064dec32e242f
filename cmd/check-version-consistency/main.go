// Command check-version-consistency verifies that the project version is the
// same everywhere it has to be written by hand.
//
// It is meant to run as a CI gate from the project root:
//
//	check-version-consistency [flags]
//
// Flags:
//
//	--root string    Project root directory (default ".")
//	--config string  Sources configuration file
//	                 (default "<root>/.version-consistency.yaml" if present)
//
// Without a configuration file the VERSION file and the PROJECT_NUMBER of
// doc/doxygen/Doxyfile are compared.
//
// Exit codes:
//
//	0  all versions match
//	1  an expected file is missing, a version cannot be determined, or the
//	   versions differ
//	2  invalid invocation or configuration
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/filetransfer-tool/filetransfer-go/pkg/versioncheck"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("check-version-consistency", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	root := fs.String("root", ".", "Project root directory")
	configPath := fs.String("config", "", "Sources configuration file (default: <root>/"+versioncheck.DefaultConfigFile+" if present)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "Error: unexpected arguments: %v\n", fs.Args())
		return 2
	}

	sources, err := loadSources(*root, *configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	checker, err := versioncheck.New(*root, sources)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	version, err := checker.Run()
	if err != nil {
		fmt.Fprintln(stdout, err)
		return 1
	}

	fmt.Fprintf(stdout, "All versions are consistent: %s\n", version)
	return 0
}

// loadSources returns the configured sources, falling back to the defaults
// when no configuration file was requested and none exists under root.
func loadSources(root, configPath string) ([]versioncheck.Source, error) {
	if configPath == "" {
		candidate := filepath.Join(root, versioncheck.DefaultConfigFile)
		if _, err := os.Stat(candidate); err != nil {
			return versioncheck.DefaultSources(), nil
		}
		configPath = candidate
	}

	cfg, err := versioncheck.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return cfg.Sources, nil
}
