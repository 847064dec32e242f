// Package versioncheck verifies that the project version is written
// identically in every file that has to carry it by hand.
//
// Each Source names a file relative to the project root and a regular
// expression with three capture groups (major, minor, patch). The first
// match in each file is joined with dots and compared against the others.
package versioncheck

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is looked up under the project root when no explicit
// configuration file is given.
const DefaultConfigFile = ".version-consistency.yaml"

// Patterns for the two files every release has to touch.
const (
	VersionFilePattern = `([0-9]+)\.([0-9]+)\.([0-9a-z.]+)`
	DoxyfilePattern    = `PROJECT_NUMBER\s*=\s*"v([0-9]+)\.([0-9]+)\.([0-9a-z.]+)"`
)

// ErrInvalidPattern indicates a source pattern that does not compile or
// does not have exactly three capture groups.
var ErrInvalidPattern = errors.New("invalid version pattern")

// Source is a file that carries the project version.
type Source struct {
	Path    string `yaml:"path"`
	Pattern string `yaml:"pattern"`
}

// DefaultSources returns the sources checked when no configuration file
// exists: the VERSION file and the Doxygen configuration.
func DefaultSources() []Source {
	return []Source{
		{Path: "VERSION", Pattern: VersionFilePattern},
		{Path: filepath.Join("doc", "doxygen", "Doxyfile"), Pattern: DoxyfilePattern},
	}
}

// Config is the on-disk form of a source list.
type Config struct {
	Sources []Source `yaml:"sources"`
}

// LoadConfig reads a YAML source list.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("config %s lists no sources", path)
	}
	return &cfg, nil
}

// FileVersion is the version found in one file.
type FileVersion struct {
	Path    string
	Version string
}

// MissingFilesError lists every expected file that does not exist.
type MissingFilesError struct {
	Paths []string
}

func (e *MissingFilesError) Error() string {
	return fmt.Sprintf("The following expected files do not exist: %s.", strings.Join(e.Paths, ", "))
}

// UndeterminedVersionError indicates a file whose content does not match
// its pattern.
type UndeterminedVersionError struct {
	Path string
}

func (e *UndeterminedVersionError) Error() string {
	return fmt.Sprintf("Could not determine version for %s", e.Path)
}

// MismatchError lists the version found in every file when they differ.
type MismatchError struct {
	Versions []FileVersion
}

func (e *MismatchError) Error() string {
	var b strings.Builder
	b.WriteString("Versions are not equal:")
	for _, v := range e.Versions {
		fmt.Fprintf(&b, "\n%s from %s", v.Version, v.Path)
	}
	return b.String()
}

type compiledSource struct {
	path string
	re   *regexp.Regexp
}

// Checker compares the versions found in a fixed set of files.
type Checker struct {
	root    string
	sources []compiledSource
}

// New compiles the sources. All invalid patterns are reported together.
func New(root string, sources []Source) (*Checker, error) {
	if len(sources) == 0 {
		return nil, errors.New("no sources to check")
	}

	var merr *multierror.Error
	compiled := make([]compiledSource, 0, len(sources))
	for _, src := range sources {
		re, err := regexp.Compile(src.Pattern)
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%w for %s: %v", ErrInvalidPattern, src.Path, err))
			continue
		}
		if re.NumSubexp() != 3 {
			merr = multierror.Append(merr, fmt.Errorf("%w for %s: want 3 capture groups, got %d",
				ErrInvalidPattern, src.Path, re.NumSubexp()))
			continue
		}
		compiled = append(compiled, compiledSource{
			path: filepath.Join(root, src.Path),
			re:   re,
		})
	}
	if err := merr.ErrorOrNil(); err != nil {
		return nil, err
	}

	return &Checker{root: root, sources: compiled}, nil
}

// CheckFilesExist fails with a *MissingFilesError when any source file is
// absent.
func (c *Checker) CheckFilesExist() error {
	var missing []string
	for _, src := range c.sources {
		if _, err := os.Stat(src.path); err != nil {
			missing = append(missing, src.path)
		}
	}
	if len(missing) > 0 {
		return &MissingFilesError{Paths: missing}
	}
	return nil
}

// Versions extracts the version from every source file, in source order.
func (c *Checker) Versions() ([]FileVersion, error) {
	versions := make([]FileVersion, 0, len(c.sources))
	for _, src := range c.sources {
		data, err := os.ReadFile(src.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", src.path, err)
		}
		m := src.re.FindStringSubmatch(string(data))
		if m == nil {
			return nil, &UndeterminedVersionError{Path: src.path}
		}
		versions = append(versions, FileVersion{
			Path:    src.path,
			Version: m[1] + "." + m[2] + "." + m[3],
		})
	}
	return versions, nil
}

// CheckVersionsMatch returns the common version, or a *MismatchError when
// the files disagree.
func (c *Checker) CheckVersionsMatch() (string, error) {
	versions, err := c.Versions()
	if err != nil {
		return "", err
	}

	distinct := make(map[string]struct{}, len(versions))
	for _, v := range versions {
		distinct[v.Version] = struct{}{}
	}
	if len(distinct) > 1 {
		return "", &MismatchError{Versions: versions}
	}
	return versions[0].Version, nil
}

// Run checks that all files exist and agree on the version.
func (c *Checker) Run() (string, error) {
	if err := c.CheckFilesExist(); err != nil {
		return "", err
	}
	return c.CheckVersionsMatch()
}
