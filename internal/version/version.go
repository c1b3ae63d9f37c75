// Package version holds build metadata injected via ldflags:
//
//	-ldflags "-X github.com/kailas-cloud/ragpack/internal/version.Version=v1.2.0"
package version

import "fmt"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String formats the build metadata for logs and --version output.
func String() string {
	return fmt.Sprintf("ragpack %s (commit %s, built %s)", Version, Commit, Date)
}

// UserAgent is the User-Agent the Go client sends.
func UserAgent() string {
	return "ragpack-go/" + Version
}
