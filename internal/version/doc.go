// Package version exposes build metadata for the labsetup binary.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags and default to sensible values for local builds. The self-update
// service compares Short() against the published release manifest.
package version
