// Package version holds build metadata injected via ldflags:
//
//	go build -ldflags "-X github.com/kailas-cloud/flagdex/internal/version.Version=v1.2.0 \
//	  -X github.com/kailas-cloud/flagdex/internal/version.Commit=$(git rev-parse --short HEAD)"
package version

import "fmt"

// Name is the service name reported in logs and by -version.
const Name = "flagdex"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String is the one-line build description, e.g. "flagdex v1.2.0 (abc1234, 2026-01-02)".
func String() string {
	return fmt.Sprintf("%s %s (%s, %s)", Name, Version, Commit, Date)
}
