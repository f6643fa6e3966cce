// Package version holds build metadata for the docqa binary, injected with
// -ldflags:
//
//	go build -ldflags="-X github.com/54b3r/docqa-go/internal/version.Version=v1.2.3 \
//	                    -X github.com/54b3r/docqa-go/internal/version.Commit=abc1234 \
//	                    -X github.com/54b3r/docqa-go/internal/version.BuildDate=2025-01-01"
//
// Unset values keep readable defaults so `go run` builds still report something.
package version

import "fmt"

var (
	// Version is the semantic version, "dev" for local builds.
	Version = "dev"
	// Commit is the short git SHA, "unknown" for local builds.
	Commit = "unknown"
	// BuildDate is the UTC build date, "unknown" for local builds.
	BuildDate = "unknown"
)

// String renders the full build line printed by `docqa version`.
func String() string {
	return fmt.Sprintf("docqa %s (commit: %s, built: %s)", Version, Commit, BuildDate)
}
