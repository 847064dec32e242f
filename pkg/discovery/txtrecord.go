package discovery

import (
	"fmt"
	"slices"
	"strings"
)

// TXT returns the TXT strings advertised for info in key order.
func (info *ServerInfo) TXT() []string {
	return []string{
		TXTKeyTransport + "=" + info.Transport,
		TXTKeyVersion + "=" + info.Version,
	}
}

// parseTXT reads the version and transport of a discovered server. Keys are
// matched case-insensitively as DNS-SD requires; a key without '=' is
// present with an empty value, and only its first occurrence counts.
func parseTXT(txt []string) (version, transport string, err error) {
	values := make(map[string]string, len(txt))
	for _, s := range txt {
		k, v, _ := strings.Cut(s, "=")
		k = strings.ToLower(k)
		if _, dup := values[k]; k == "" || dup {
			continue
		}
		values[k] = v
	}

	for _, key := range []string{TXTKeyVersion, TXTKeyTransport} {
		if values[key] == "" {
			return "", "", fmt.Errorf("%w: %s", ErrMissingRequired, key)
		}
	}
	return values[TXTKeyVersion], values[TXTKeyTransport], nil
}

// ValidateInstanceName checks that name fits in one DNS label.
func ValidateInstanceName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty instance name", ErrInvalidTXTRecord)
	case len(name) > MaxInstanceNameLen:
		return ErrInstanceNameTooLong
	case slices.Contains([]byte(name), 0):
		return fmt.Errorf("%w: NUL in instance name", ErrInvalidTXTRecord)
	}
	return nil
}
