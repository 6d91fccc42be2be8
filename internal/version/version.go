// Package version exposes the build version stamped in at link time.
package version

// version is overridden via -ldflags at release build time.
var version = "v0.0.0-dev"

// Get returns the build version.
func Get() string {
	return version
}
