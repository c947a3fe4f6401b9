// Package version holds build-time version information, injected via
// linker flags at build time and defaulted for local/test runs.
package version

import "runtime"

var (
	// Version is the semantic version of the build, set with
	// -ldflags "-X github.com/ichnaea-go/locate/pkg/version.Version=...".
	Version = "dev"
	// Commit is the VCS commit the binary was built from.
	Commit = "unknown"
	// BuildDate is the UTC build timestamp, RFC3339 formatted.
	BuildDate = "unknown"
)

// Info returns the version fields as strings, keyed for direct use as
// Prometheus label values or JSON fields.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"go_version": runtime.Version(),
		"commit":     Commit,
		"build_date": BuildDate,
	}
}
