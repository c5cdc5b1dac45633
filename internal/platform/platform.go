// Package platform identifies the host platform and normalizes OS and
// architecture names to the ones used by terraform-ls release artifacts.
//
// Release builds are published under Go-style platform names ("windows",
// "amd64"). Hosts that report Node-style names ("win32", "x64") are mapped
// to their Go equivalents; anything unrecognized passes through unchanged so
// artifact selection can fail with a precise platform name.
package platform

import "runtime"

// Info contains the normalized platform pair used to select a release build.
type Info struct {
	OS   string // "linux", "darwin", "windows"
	Arch string // "amd64", "arm64", "386"
}

// osMap maps foreign OS identifiers to release artifact OS names.
var osMap = map[string]string{
	"win32": "windows",
}

// archMap maps foreign architecture identifiers to release artifact names.
var archMap = map[string]string{
	"x64": "amd64",
	"x32": "386",
}

// NormalizeOS maps an OS identifier to the name used by release artifacts.
// Unrecognized values pass through unchanged.
func NormalizeOS(os string) string {
	if mapped, ok := osMap[os]; ok {
		return mapped
	}
	return os
}

// NormalizeArch maps an architecture identifier to the name used by release
// artifacts. Unrecognized values pass through unchanged.
func NormalizeArch(arch string) string {
	if mapped, ok := archMap[arch]; ok {
		return mapped
	}
	return arch
}

// Normalize returns the normalized form of an OS/architecture pair.
func Normalize(os, arch string) Info {
	return Info{
		OS:   NormalizeOS(os),
		Arch: NormalizeArch(arch),
	}
}

// Host returns the normalized platform of the running process.
func Host() Info {
	return Normalize(runtime.GOOS, runtime.GOARCH)
}
