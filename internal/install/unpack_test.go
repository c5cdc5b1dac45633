package install

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/charmbracelet/log"
)

// buildZip writes a zip archive with the given name->content entries.
func buildZip(t *testing.T, path string, entries map[string]string, order []string) {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create zip entry: %v", err)
		}
		if _, err := io.WriteString(w, entries[name]); err != nil {
			t.Fatalf("write zip entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
}

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestUnpackSingleEntry(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "pkg.zip")
	buildZip(t, archive, map[string]string{"terraform-ls": "#!binary"}, []string{"terraform-ls"})

	target := t.TempDir()
	if err := Unpack(context.Background(), testLogger(), target, archive); err != nil {
		t.Fatalf("Unpack() error: %v", err)
	}

	extracted := filepath.Join(target, "terraform-ls")
	content, err := os.ReadFile(extracted)
	if err != nil {
		t.Fatalf("read extracted file: %v", err)
	}
	if string(content) != "#!binary" {
		t.Errorf("content = %q", content)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(extracted)
		if err != nil {
			t.Fatalf("stat extracted file: %v", err)
		}
		if info.Mode().Perm() != 0o755 {
			t.Errorf("mode = %o, want 755", info.Mode().Perm())
		}
	}
}

func TestUnpackMultipleEntriesNotFatal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "pkg.zip")
	buildZip(t, archive,
		map[string]string{"README.md": "docs", "terraform-ls": "#!binary"},
		[]string{"README.md", "terraform-ls"})

	target := t.TempDir()
	if err := Unpack(context.Background(), testLogger(), target, archive); err != nil {
		t.Fatalf("Unpack() error: %v", err)
	}

	// The last written entry carries the executable bit.
	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(target, "terraform-ls"))
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if info.Mode().Perm() != 0o755 {
			t.Errorf("mode = %o, want 755", info.Mode().Perm())
		}
	}
}

func TestUnpackRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "pkg.zip")
	buildZip(t, archive, map[string]string{"../evil": "payload"}, []string{"../evil"})

	target := t.TempDir()
	err := Unpack(context.Background(), testLogger(), target, archive)

	var archiveErr *ArchiveError
	if !errors.As(err, &archiveErr) {
		t.Fatalf("Unpack() error = %v, want *ArchiveError", err)
	}

	if _, statErr := os.Stat(filepath.Join(filepath.Dir(target), "evil")); !os.IsNotExist(statErr) {
		t.Error("traversal entry was written outside the target directory")
	}
}

func TestUnpackMalformedArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "pkg.zip")
	if err := os.WriteFile(archive, []byte("not a zip"), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	err := Unpack(context.Background(), testLogger(), t.TempDir(), archive)

	var archiveErr *ArchiveError
	if !errors.As(err, &archiveErr) {
		t.Fatalf("Unpack() error = %v, want *ArchiveError", err)
	}
}

func TestUnpackEmptyArchive(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "pkg.zip")
	buildZip(t, archive, nil, nil)

	err := Unpack(context.Background(), testLogger(), t.TempDir(), archive)

	var archiveErr *ArchiveError
	if !errors.As(err, &archiveErr) {
		t.Fatalf("Unpack() error = %v, want *ArchiveError", err)
	}
}
