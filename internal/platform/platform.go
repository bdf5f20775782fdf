// Package platform maps the running OS/architecture to the target triple
// and dynamic-library extension plugin artifacts are published under.
package platform

import (
	"fmt"
	"runtime"
)

// Target describes the platform a plugin artifact is built for.
type Target struct {
	// Triple is the canonical target triple, e.g. "x86_64-unknown-linux-gnu".
	Triple string
	// Extension is the dynamic library extension for this platform, without a leading dot.
	Extension string
}

var targets = map[string]map[string]Target{
	"linux": {
		"amd64": {Triple: "x86_64-unknown-linux-gnu", Extension: "so"},
		"arm64": {Triple: "aarch64-unknown-linux-gnu", Extension: "so"},
	},
	"darwin": {
		"amd64": {Triple: "x86_64-apple-darwin", Extension: "dylib"},
		"arm64": {Triple: "aarch64-apple-darwin", Extension: "dylib"},
	},
	"windows": {
		"amd64": {Triple: "x86_64-pc-windows-msvc", Extension: "dll"},
		"arm64": {Triple: "aarch64-pc-windows-msvc", Extension: "dll"},
	},
}

// UnsupportedPlatformError is returned by Current when the running OS/arch pair
// has no known target triple.
type UnsupportedPlatformError struct {
	OS   string
	Arch string
}

func (err *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf(
		"unsupported platform %s/%s; marty supports: linux/amd64, linux/arm64, darwin/amd64, darwin/arm64, windows/amd64, windows/arm64",
		err.OS, err.Arch,
	)
}

// Current returns the Target for the running process's GOOS/GOARCH.
func Current() (Target, error) {
	return For(runtime.GOOS, runtime.GOARCH)
}

// For returns the Target for an explicit os/arch pair, for testability.
func For(goos, goarch string) (Target, error) {
	byArch, ok := targets[goos]
	if !ok {
		return Target{}, &UnsupportedPlatformError{OS: goos, Arch: goarch}
	}

	target, ok := byArch[goarch]
	if !ok {
		return Target{}, &UnsupportedPlatformError{OS: goos, Arch: goarch}
	}

	return target, nil
}
