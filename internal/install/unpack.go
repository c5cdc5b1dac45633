package install

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Unpack extracts archivePath into targetDir, streaming one entry at a time,
// and marks the extracted binary executable. Release archives carry exactly
// one payload entry; additional entries are anomalous and logged, with the
// last written file receiving the executable bit.
func Unpack(ctx context.Context, logger *log.Logger, targetDir, archivePath string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return &ArchiveError{Path: archivePath, Err: fmt.Errorf("open archive: %w", err)}
	}

	var lastWritten string
	written := 0

	for _, entry := range reader.File {
		if err := ctx.Err(); err != nil {
			reader.Close()
			return err
		}
		if entry.FileInfo().IsDir() {
			continue
		}

		target, err := entryPath(targetDir, entry.Name)
		if err != nil {
			reader.Close()
			return &ArchiveError{Path: archivePath, Err: err}
		}

		if err := extractEntry(entry, target); err != nil {
			reader.Close()
			return &ArchiveError{Path: archivePath, Err: err}
		}

		lastWritten = target
		written++
	}

	if err := reader.Close(); err != nil {
		return &ArchiveError{Path: archivePath, Err: fmt.Errorf("close archive: %w", err)}
	}

	if written == 0 {
		return &ArchiveError{Path: archivePath, Err: fmt.Errorf("archive contains no file entries")}
	}
	if written > 1 {
		logger.Warn("archive contains more than one entry", "archive", filepath.Base(archivePath), "entries", written)
	}

	if err := os.Chmod(lastWritten, 0o755); err != nil {
		return &ArchiveError{Path: archivePath, Err: fmt.Errorf("set executable: %w", err)}
	}

	return nil
}

// entryPath joins an archive entry name onto targetDir, rejecting names that
// escape it.
func entryPath(targetDir, name string) (string, error) {
	target := filepath.Join(targetDir, filepath.FromSlash(name))
	if !strings.HasPrefix(target, filepath.Clean(targetDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal entry path: %s", name)
	}
	return target, nil
}

// extractEntry streams one archive entry's decompressed content to target.
func extractEntry(entry *zip.File, target string) error {
	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", entry.Name, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", entry.Name, err)
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}

	return out.Close()
}
