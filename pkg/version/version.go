// Package version exposes build version information.
package version

// Version is the service version, overridden at build time via ldflags.
//
//nolint:gochecknoglobals // set by the linker
var Version = "dev"
