// Package build carries build metadata and the daemon's logging
// plumbing: a rotating file writer and a fan-out slog handler.
package build

import (
	"fmt"
	"runtime"
)

// Set at link time via -ldflags.
var (
	// version is the semantic version of the release.
	version = "0.1.0"

	// Commit is the git commit hash the binary was built from.
	Commit string
)

// Version returns the full version string.
func Version() string {
	if Commit != "" {
		return fmt.Sprintf("%s commit=%s", version, Commit)
	}
	return version
}

// GoVersion returns the version of the Go toolchain that built the
// binary.
func GoVersion() string {
	return runtime.Version()
}
