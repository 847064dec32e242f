// Package version provides the release version, semantic version parsing,
// and the compatibility rules used in the connection handshake.
package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Current is the release implemented by this module. It must match the
// VERSION file and the Doxygen PROJECT_NUMBER; CI enforces this with
// check-version-consistency.
const Current = "0.3.0"

// Build metadata, set at build time via ldflags.
var (
	BuildDate = "dev"
	GitCommit = "unknown"
)

// Canonical returns v in canonical semver form ("v1.2.3"). A missing "v"
// prefix is accepted.
func Canonical(v string) (string, error) {
	sv := v
	if !strings.HasPrefix(sv, "v") {
		sv = "v" + sv
	}
	if !semver.IsValid(sv) {
		return "", fmt.Errorf("invalid version %q", v)
	}
	return semver.Canonical(sv), nil
}

// Major returns the major component of v as a decimal string.
func Major(v string) (string, error) {
	c, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(semver.Major(c), "v"), nil
}

// Compatible returns true if both versions have the same major version.
// Invalid versions are never compatible.
func Compatible(a, b string) bool {
	ca, err := Canonical(a)
	if err != nil {
		return false
	}
	cb, err := Canonical(b)
	if err != nil {
		return false
	}
	return semver.Major(ca) == semver.Major(cb)
}

// CheckPeer validates a peer's version against Current. An empty peer
// version is accepted for clients that do not announce one.
func CheckPeer(peer string) error {
	if peer == "" {
		return nil
	}
	if _, err := Canonical(peer); err != nil {
		return err
	}
	if !Compatible(Current, peer) {
		return fmt.Errorf("incompatible major versions: local %s, peer %s", Current, peer)
	}
	return nil
}

// ALPNProtocol returns the ALPN protocol string for the current major
// version: "filetransfer/N".
func ALPNProtocol() string {
	major, _ := Major(Current)
	return "filetransfer/" + major
}

// Summary returns a human-friendly version line for CLI output.
func Summary(program string) string {
	return fmt.Sprintf("%s %s (built %s, commit %s)", program, Current, BuildDate, GitCommit)
}
