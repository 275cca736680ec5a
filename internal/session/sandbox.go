package session

import (
	"os"
	"path/filepath"
	"strings"
)

// absRoot resolves a sandbox root to a clean absolute path.
func absRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return filepath.Clean(abs), nil
}

// ResolveWorkDir resolves cwd against root and clamps anything that escapes
// the sandbox back to root. Relative paths are joined to root; absolute paths
// must already sit inside it. Traversal (".." sequences) that climbs out of
// root also lands back at root rather than erroring: a session always starts
// somewhere valid.
func ResolveWorkDir(root, cwd string) string {
	if strings.TrimSpace(cwd) == "" {
		return root
	}

	var candidate string
	if filepath.IsAbs(cwd) {
		candidate = filepath.Clean(cwd)
	} else {
		candidate = filepath.Clean(filepath.Join(root, cwd))
	}

	if !within(root, candidate) {
		return root
	}

	// A cwd pointing at a missing or non-directory path falls back to root.
	if info, err := os.Stat(candidate); err != nil || !info.IsDir() {
		return root
	}

	return candidate
}

// within reports whether path is root or a descendant of root.
func within(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}
