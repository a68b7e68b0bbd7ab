// Package version reports the binary version stamped at build time.
package version

// version is overridden at link time via
// -ldflags "-X github.com/bkyoung/review-agent/internal/version.version=v1.2.3".
var version = "v0.0.0"

// Value returns the stamped version.
func Value() string {
	return version
}
