// Package workspace tracks project roots and maps documents to the
// outermost root that encloses them.
//
// Nested project roots collapse to their outermost ancestor: when both /a
// and /a/b are open, a document under /a/b belongs to /a, so a single
// language server instance covers the whole tree.
package workspace

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.lsp.dev/uri"
)

// Canonical returns the root key for a filesystem path: the file URI of its
// absolute, cleaned form.
func Canonical(path string) (uri.URI, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return uri.File(filepath.Clean(abs)), nil
}

// Contains reports whether path lies inside root (or is root itself).
func Contains(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Outermost returns the folder enclosing doc with the shortest path, i.e.
// the outermost ancestor among the given folders. ok is false when no folder
// contains doc.
func Outermost(folders []string, doc string) (string, bool) {
	var (
		best  string
		found bool
	)
	for _, folder := range folders {
		if !Contains(folder, doc) {
			continue
		}
		cleaned := filepath.Clean(folder)
		if !found || len(cleaned) < len(best) {
			best = cleaned
			found = true
		}
	}
	return best, found
}
