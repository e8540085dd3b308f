// Package buildinfo carries release metadata stamped in with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/transmailifier/transmailifier/internal/buildinfo.Version=v1.2.0"
package buildinfo

import "fmt"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String formats the metadata for --version.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}
