// Package version provides build information for the recall binary.
package version

import (
	"fmt"
	"runtime"
)

// Name is the service name reported in traces, metrics and /status.
const Name = "recall"

// These variables are set during build time via ldflags
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GoVersion = runtime.Version()
)

// Info returns a map with all version information.
func Info() map[string]string {
	return map[string]string{
		"name":      Name,
		"version":   Version,
		"buildTime": BuildTime,
		"gitCommit": GitCommit,
		"goVersion": GoVersion,
	}
}

// String renders a single-line version banner.
func String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s, %s)", Name, Version, GitCommit, BuildTime, GoVersion)
}
