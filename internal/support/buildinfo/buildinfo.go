// Package buildinfo carries version metadata stamped at build time via
// -ldflags.
package buildinfo

var (
	// Version is the release tag, "dev" for local builds.
	Version = "dev"
	// Commit is the VCS revision the binary was built from.
	Commit = "unknown"
)

// String renders the version with its commit suffix.
func String() string {
	return Version + " (" + Commit + ")"
}
