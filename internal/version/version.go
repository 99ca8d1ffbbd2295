// Package version holds the build version, overridden with -ldflags at release time.
package version

// Version is the semantic version of the build
var Version = "0.1.0"
