package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/charmbracelet/log"
	"golang.org/x/mod/semver"

	"github.com/lsmux/lsmux/internal/platform"
	"github.com/lsmux/lsmux/internal/releases"
)

// BinaryName is the base name of the installed server binary.
const BinaryName = "terraform-ls"

// Prompter is the user-facing collaborator consulted before and after an
// installation. Implementations belong to the host surface, not this
// package.
type Prompter interface {
	// ConfirmInstall asks whether the given version should be installed.
	// A false answer is a successful no-op, not a failure.
	ConfirmInstall(ctx context.Context, version string) (bool, error)
	// ShowChangelog offers the release changelog after a successful install.
	// Fire-and-forget.
	ShowChangelog(version string)
}

// Progress receives one increment per completed pipeline stage (download,
// verify, unpack).
type Progress interface {
	Increment(stage string)
}

type noopProgress struct{}

func (noopProgress) Increment(string) {}

// Result describes the outcome of an Install call.
type Result struct {
	// Version is the version now present at Path (or confirmed current).
	Version string
	// Path is the installed binary path.
	Path string
	// Skipped is true when installation was unnecessary or declined.
	Skipped bool
}

// Config holds the collaborators of an Installer.
type Config struct {
	// Releases resolves the latest published release.
	Releases *releases.Client
	// Fetcher downloads release resources.
	Fetcher *Fetcher
	// Verifier checks downloads against the checksum manifest.
	Verifier *Verifier
	// Platform is the normalized host platform for build selection.
	Platform platform.Info
	// Prompter confirms installation with the user.
	Prompter Prompter
	// Progress receives stage completion increments. Optional.
	Progress Progress
	// Logger receives pipeline diagnostics.
	Logger *log.Logger
}

// Installer sequences resolve, fetch, verify, and unpack for one release,
// guaranteeing the target directory holds no partial package on failure.
type Installer struct {
	releases *releases.Client
	fetcher  *Fetcher
	verifier *Verifier
	platform platform.Info
	prompter Prompter
	progress Progress
	log      *log.Logger
}

// New creates an installer from cfg.
func New(cfg Config) (*Installer, error) {
	if cfg.Releases == nil {
		return nil, fmt.Errorf("Releases is required")
	}
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("Fetcher is required")
	}
	if cfg.Verifier == nil {
		return nil, fmt.Errorf("Verifier is required")
	}
	if cfg.Prompter == nil {
		return nil, fmt.Errorf("Prompter is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("Logger is required")
	}
	if cfg.Progress == nil {
		cfg.Progress = noopProgress{}
	}
	return &Installer{
		releases: cfg.Releases,
		fetcher:  cfg.Fetcher,
		verifier: cfg.Verifier,
		platform: cfg.Platform,
		prompter: cfg.Prompter,
		progress: cfg.Progress,
		log:      cfg.Logger,
	}, nil
}

// BinaryPath returns the path the server binary occupies inside targetDir.
func BinaryPath(targetDir string) string {
	name := BinaryName
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(targetDir, name)
}

// Install brings targetDir up to the latest published release. It is a no-op
// success when the installed version is already current or the user
// declines. Any failure between download and unpack removes the in-progress
// package file before returning.
func (i *Installer) Install(ctx context.Context, targetDir string) (*Result, error) {
	binPath := BinaryPath(targetDir)

	installed := Probe(ctx, binPath)
	if installed.Version == "" {
		i.log.Warn("could not determine installed version, treating as not installed", "path", binPath)
	}

	release, err := i.releases.Latest(ctx)
	if err != nil {
		return nil, err
	}

	if installed.Version != "" &&
		semver.Compare(releases.Canonical(installed.Version), releases.Canonical(release.Version)) >= 0 {
		i.log.Info("installed version is current", "installed", installed.Version, "latest", release.Version)
		return &Result{Version: installed.Version, Path: binPath, Skipped: true}, nil
	}

	proceed, err := i.prompter.ConfirmInstall(ctx, release.Version)
	if err != nil {
		return nil, fmt.Errorf("confirm install: %w", err)
	}
	if !proceed {
		i.log.Info("installation declined", "version", release.Version)
		return &Result{Version: installed.Version, Path: binPath, Skipped: true}, nil
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, fmt.Errorf("create target dir: %w", err)
	}

	build, ok := release.Build(i.platform.OS, i.platform.Arch)
	if !ok {
		return nil, &UnsupportedPlatformError{OS: i.platform.OS, Arch: i.platform.Arch}
	}

	// Best-effort removal of the previous binary; a missing file is fine.
	if err := os.Remove(binPath); err != nil && !os.IsNotExist(err) {
		i.log.Warn("could not remove previous binary", "path", binPath, "error", err)
	}

	packagePath := filepath.Join(targetDir, fmt.Sprintf("%s_v%s.zip", BinaryName, release.Version))
	if err := i.acquire(ctx, release, build, targetDir, packagePath); err != nil {
		// The target directory never retains an unverified package.
		if rmErr := os.Remove(packagePath); rmErr != nil && !os.IsNotExist(rmErr) {
			i.log.Warn("could not remove partial package", "path", packagePath, "error", rmErr)
		}
		return nil, err
	}

	i.log.Info("installed", "version", release.Version, "path", binPath)
	i.prompter.ShowChangelog(release.Version)

	return &Result{Version: release.Version, Path: binPath}, nil
}

// acquire runs download, verify, and unpack. The caller owns cleanup of
// packagePath on failure.
func (i *Installer) acquire(ctx context.Context, release *releases.Release, build *releases.Build, targetDir, packagePath string) error {
	i.log.Debug("downloading", "url", build.URL)
	if err := i.fetcher.Download(ctx, build.URL, packagePath); err != nil {
		return err
	}
	i.progress.Increment("download")

	if err := i.verifier.Verify(ctx, release, packagePath, build); err != nil {
		return err
	}
	i.progress.Increment("verify")

	if err := Unpack(ctx, i.log, targetDir, packagePath); err != nil {
		return err
	}
	i.progress.Increment("unpack")

	// The archive has served its purpose.
	if err := os.Remove(packagePath); err != nil {
		i.log.Warn("could not remove package archive", "path", packagePath, "error", err)
	}

	return nil
}
