// Package version holds build metadata injected with ldflags:
//
//	go build -ldflags "-X git.home.luguber.info/inful/nightlybuilder/internal/version.Version=v1.2.0"
package version

import "fmt"

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// String renders the version line printed by --version.
func String() string {
	return fmt.Sprintf("nightlybuilder %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
