// Package version carries build metadata, set at link time with
// -ldflags "-X github.com/carmarket/backend/internal/version.Version=...".
package version

var (
	Version = "dev"
	Commit  = "unknown"
)
