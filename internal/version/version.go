package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String returns the version line printed by -version.
func String() string {
	return fmt.Sprintf("featurebench %s (commit %s, built %s)", Version, GitSHA, BuildTime)
}
