//go:build tools

package tools

// Mocks in pkg/*/mocks are generated by mockery v3 from .mockery.yaml.
// mockery is used as an installed binary, so nothing is imported here.
// Regenerate with: mockery (from the repository root).
