// Package version exposes the otto build version.
package version

import (
	_ "embed"
	"strings"
)

//go:embed VERSION
var raw string

// Get returns the version string with surrounding whitespace trimmed.
func Get() string {
	return strings.TrimSpace(raw)
}
