package install

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/lsmux/lsmux/internal/platform"
	"github.com/lsmux/lsmux/internal/releases"
)

// fakePrompter records prompt interactions and answers with a fixed
// decision.
type fakePrompter struct {
	approve    bool
	confirmed  []string
	changelogs []string
}

func (p *fakePrompter) ConfirmInstall(_ context.Context, version string) (bool, error) {
	p.confirmed = append(p.confirmed, version)
	return p.approve, nil
}

func (p *fakePrompter) ShowChangelog(version string) {
	p.changelogs = append(p.changelogs, version)
}

// recordingProgress collects stage increments.
type recordingProgress struct {
	stages []string
}

func (p *recordingProgress) Increment(stage string) {
	p.stages = append(p.stages, stage)
}

// releaseServer serves a one-version release feed with a matching build for
// the host platform, counting requests per path.
type releaseServer struct {
	server   *httptest.Server
	version  string
	zipBytes []byte
	filename string

	mu   sync.Mutex
	hits map[string]int

	// breakShasums makes the manifest advertise a wrong digest.
	breakShasums bool
	// buildOS overrides the build's os field when non-empty.
	buildOS string
}

func newReleaseServer(t *testing.T, version string) *releaseServer {
	t.Helper()

	host := platform.Host()
	rs := &releaseServer{
		version:  version,
		filename: fmt.Sprintf("terraform-ls_%s_%s_%s.zip", version, host.OS, host.Arch),
		hits:     map[string]int{},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("terraform-ls")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	fmt.Fprintf(w, "#!/bin/sh\necho \"terraform-ls %s\"\n", version)
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	rs.zipBytes = buf.Bytes()

	rs.server = httptest.NewServer(http.HandlerFunc(rs.handle))
	t.Cleanup(rs.server.Close)
	return rs
}

func (rs *releaseServer) handle(w http.ResponseWriter, r *http.Request) {
	rs.mu.Lock()
	rs.hits[r.URL.Path]++
	rs.mu.Unlock()

	host := platform.Host()
	buildOS := host.OS
	if rs.buildOS != "" {
		buildOS = rs.buildOS
	}

	base := fmt.Sprintf("/terraform-ls/%s", rs.version)
	switch r.URL.Path {
	case "/index.json":
		fmt.Fprintf(w, `{%q: {"version": %q, "shasums": %q, "builds": [{"os": %q, "arch": %q, "url": %q, "filename": %q}]}}`,
			rs.version, rs.version,
			fmt.Sprintf("terraform-ls_%s_SHA256SUMS", rs.version),
			buildOS, host.Arch,
			rs.server.URL+base+"/"+rs.filename,
			rs.filename)
	case base + "/" + rs.filename:
		w.Write(rs.zipBytes)
	case fmt.Sprintf("%s/terraform-ls_%s_SHA256SUMS", base, rs.version):
		sum := sha256.Sum256(rs.zipBytes)
		digest := hex.EncodeToString(sum[:])
		if rs.breakShasums {
			digest = "0000000000000000000000000000000000000000000000000000000000000000"
		}
		fmt.Fprintf(w, "%s  %s\n", digest, rs.filename)
	default:
		http.NotFound(w, r)
	}
}

func (rs *releaseServer) hitCount(path string) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.hits[path]
}

func newTestInstaller(t *testing.T, rs *releaseServer, prompter *fakePrompter, progress Progress) *Installer {
	t.Helper()

	fetcher := NewFetcher(testUserAgent)
	installer, err := New(Config{
		Releases: releases.NewClient(rs.server.URL+"/index.json", testUserAgent),
		Fetcher:  fetcher,
		Verifier: NewVerifier(fetcher, nil),
		Platform: platform.Host(),
		Prompter: prompter,
		Progress: progress,
		Logger:   log.New(io.Discard),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return installer
}

func TestInstallFresh(t *testing.T) {
	rs := newReleaseServer(t, "0.2.0")
	prompter := &fakePrompter{approve: true}
	progress := &recordingProgress{}
	installer := newTestInstaller(t, rs, prompter, progress)

	targetDir := t.TempDir()
	result, err := installer.Install(context.Background(), targetDir)
	if err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	if result.Skipped {
		t.Error("Install() skipped a fresh install")
	}
	if result.Version != "0.2.0" {
		t.Errorf("Version = %q, want 0.2.0", result.Version)
	}

	binPath := BinaryPath(targetDir)
	info, err := os.Stat(binPath)
	if err != nil {
		t.Fatalf("stat installed binary: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0o755 {
		t.Errorf("binary mode = %o, want 755", info.Mode().Perm())
	}

	// The archive must not linger after a successful install.
	if _, err := os.Stat(filepath.Join(targetDir, "terraform-ls_v0.2.0.zip")); !os.IsNotExist(err) {
		t.Error("package archive remains after install")
	}

	if len(progress.stages) != 3 {
		t.Errorf("progress stages = %v, want download/verify/unpack", progress.stages)
	}
	if len(prompter.changelogs) != 1 || prompter.changelogs[0] != "0.2.0" {
		t.Errorf("changelog calls = %v", prompter.changelogs)
	}
}

func TestInstallSkipsWhenCurrent(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures are not portable to windows")
	}

	rs := newReleaseServer(t, "0.2.0")
	prompter := &fakePrompter{approve: true}
	installer := newTestInstaller(t, rs, prompter, nil)

	// Pre-install a binary that reports the latest version.
	targetDir := t.TempDir()
	script := "#!/bin/sh\necho \"terraform-ls 0.2.0\"\n"
	if err := os.WriteFile(BinaryPath(targetDir), []byte(script), 0o755); err != nil {
		t.Fatalf("write fake binary: %v", err)
	}

	result, err := installer.Install(context.Background(), targetDir)
	if err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	if !result.Skipped {
		t.Error("Install() did not skip with a current binary")
	}
	if len(prompter.confirmed) != 0 {
		t.Errorf("user was prompted on a no-op install: %v", prompter.confirmed)
	}

	// Fetch, verify, and unpack must not run: only the index is consulted.
	if hits := rs.hitCount("/terraform-ls/0.2.0/" + rs.filename); hits != 0 {
		t.Errorf("package endpoint hit %d times on a skipped install", hits)
	}
	if hits := rs.hitCount("/terraform-ls/0.2.0/terraform-ls_0.2.0_SHA256SUMS"); hits != 0 {
		t.Errorf("manifest endpoint hit %d times on a skipped install", hits)
	}
}

func TestInstallUpgradesToPrerelease(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures are not portable to windows")
	}

	rs := newReleaseServer(t, "1.1.0-beta")
	prompter := &fakePrompter{approve: true}
	installer := newTestInstaller(t, rs, prompter, nil)

	targetDir := t.TempDir()
	script := "#!/bin/sh\necho \"terraform-ls 1.0.0\"\n"
	if err := os.WriteFile(BinaryPath(targetDir), []byte(script), 0o755); err != nil {
		t.Fatalf("write fake binary: %v", err)
	}

	result, err := installer.Install(context.Background(), targetDir)
	if err != nil {
		t.Fatalf("Install() error: %v", err)
	}

	// 1.1.0-beta > 1.0.0 under prerelease-inclusive comparison, so the
	// prompt fires and the upgrade proceeds.
	if result.Skipped {
		t.Error("Install() skipped a prerelease upgrade")
	}
	if len(prompter.confirmed) != 1 || prompter.confirmed[0] != "1.1.0-beta" {
		t.Errorf("confirm calls = %v", prompter.confirmed)
	}
}

func TestInstallDeclinedIsNoOp(t *testing.T) {
	rs := newReleaseServer(t, "0.2.0")
	prompter := &fakePrompter{approve: false}
	installer := newTestInstaller(t, rs, prompter, nil)

	targetDir := t.TempDir()
	result, err := installer.Install(context.Background(), targetDir)
	if err != nil {
		t.Fatalf("Install() error: %v", err)
	}
	if !result.Skipped {
		t.Error("Install() proceeded after decline")
	}

	if _, err := os.Stat(BinaryPath(targetDir)); !os.IsNotExist(err) {
		t.Error("binary installed despite decline")
	}
	if hits := rs.hitCount("/terraform-ls/0.2.0/" + rs.filename); hits != 0 {
		t.Errorf("package downloaded despite decline: %d hits", hits)
	}
}

func TestInstallCleansUpOnChecksumMismatch(t *testing.T) {
	rs := newReleaseServer(t, "0.2.0")
	rs.breakShasums = true
	prompter := &fakePrompter{approve: true}
	installer := newTestInstaller(t, rs, prompter, nil)

	targetDir := t.TempDir()
	_, err := installer.Install(context.Background(), targetDir)

	var mismatch *ChecksumMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Install() error = %v, want *ChecksumMismatchError", err)
	}

	// The cleanup invariant: no package file in the target dir.
	entries, readErr := os.ReadDir(targetDir)
	if readErr != nil {
		t.Fatalf("read target dir: %v", readErr)
	}
	for _, entry := range entries {
		t.Errorf("target dir retains %q after failed install", entry.Name())
	}
}

func TestInstallUnsupportedPlatform(t *testing.T) {
	rs := newReleaseServer(t, "0.2.0")
	rs.buildOS = "plan9"
	prompter := &fakePrompter{approve: true}
	installer := newTestInstaller(t, rs, prompter, nil)

	targetDir := t.TempDir()
	_, err := installer.Install(context.Background(), targetDir)

	var unsupported *UnsupportedPlatformError
	if !errors.As(err, &unsupported) {
		t.Fatalf("Install() error = %v, want *UnsupportedPlatformError", err)
	}

	host := platform.Host()
	if unsupported.OS != host.OS || unsupported.Arch != host.Arch {
		t.Errorf("error names %s/%s, want %s/%s", unsupported.OS, unsupported.Arch, host.OS, host.Arch)
	}

	entries, readErr := os.ReadDir(targetDir)
	if readErr != nil {
		t.Fatalf("read target dir: %v", readErr)
	}
	for _, entry := range entries {
		t.Errorf("target dir retains %q after unsupported-platform failure", entry.Name())
	}
}

func TestInstallResolveFailure(t *testing.T) {
	rs := newReleaseServer(t, "0.2.0")
	rs.server.Close()
	prompter := &fakePrompter{approve: true}
	installer := newTestInstaller(t, rs, prompter, nil)

	_, err := installer.Install(context.Background(), t.TempDir())

	var fetchErr *releases.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Install() error = %v, want *releases.FetchError", err)
	}
}

func TestInstallCancelled(t *testing.T) {
	rs := newReleaseServer(t, "0.2.0")
	prompter := &fakePrompter{approve: true}
	installer := newTestInstaller(t, rs, prompter, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	targetDir := t.TempDir()
	if _, err := installer.Install(ctx, targetDir); err == nil {
		t.Fatal("Install() succeeded with cancelled context")
	}

	entries, readErr := os.ReadDir(targetDir)
	if readErr == nil {
		for _, entry := range entries {
			t.Errorf("target dir retains %q after cancelled install", entry.Name())
		}
	}
}
