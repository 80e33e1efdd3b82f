// Package version holds the build version, overridden at link time via
// -ldflags "-X github.com/asyrjasalo/augent/internal/version.Version=...".
package version

// Version is the current augent version.
var Version = "dev"
