package install

import (
	"context"
	"os/exec"
	"regexp"
	"time"
)

// InstalledBinary describes the currently installed server binary. An empty
// Version means not installed or unreadable.
type InstalledBinary struct {
	Path    string
	Version string
}

// versionPattern matches a semantic version, with optional prerelease
// identifiers, anywhere in the probe output.
var versionPattern = regexp.MustCompile(`\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?`)

// probeTimeout bounds the --version probe; a wedged binary must not stall
// activation.
const probeTimeout = 10 * time.Second

// Probe invokes the binary's --version flag and parses the reported version
// from its combined output. Probe never fails: a missing binary, non-zero
// exit, or unparseable output yields an empty Version, which callers treat
// as "not installed".
func Probe(ctx context.Context, path string) InstalledBinary {
	installed := InstalledBinary{Path: path}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil && len(out) == 0 {
		return installed
	}

	installed.Version = versionPattern.FindString(string(out))
	return installed
}
