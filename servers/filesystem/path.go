package filesystem

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// validatePath resolves requestedPath to a real absolute path and verifies it
// stays inside one of the allowed root directories. Symlinks are resolved
// first so a link cannot smuggle the operation outside the sandbox. Paths
// that do not exist yet are allowed as long as their parent directory exists
// and passes the same check, so tools can create new files.
func validatePath(requestedPath string, roots []string) (string, error) {
	expanded := os.ExpandEnv(filepath.FromSlash(requestedPath))

	absolute, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", requestedPath, err)
	}

	if !insideRoots(filepath.Clean(absolute), roots) {
		return "", fmt.Errorf("access denied: path %s is outside the allowed directories %s",
			requestedPath, strings.Join(roots, ", "))
	}

	realPath, err := filepath.EvalSymlinks(absolute)
	if err == nil {
		if !insideRoots(filepath.Clean(realPath), roots) {
			return "", fmt.Errorf("access denied: %s resolves to %s outside the allowed directories %s",
				requestedPath, realPath, strings.Join(roots, ", "))
		}
		return realPath, nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("resolve path %s: %w", requestedPath, err)
	}

	// The target does not exist yet. Its parent must, and must be inside the
	// sandbox after resolving symlinks.
	parent := filepath.Dir(absolute)
	realParent, err := filepath.EvalSymlinks(parent)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("access denied: parent directory %s does not exist", parent)
		}
		return "", fmt.Errorf("resolve parent directory %s: %w", parent, err)
	}
	if !insideRoots(filepath.Clean(realParent), roots) {
		return "", fmt.Errorf("access denied: parent directory %s is outside the allowed directories %s",
			parent, strings.Join(roots, ", "))
	}

	return absolute, nil
}

func insideRoots(path string, roots []string) bool {
	for _, root := range roots {
		if isSubpath(path, root) {
			return true
		}
	}
	return false
}

func isSubpath(path, base string) bool {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// pathToURI maps an absolute filesystem path to its file scheme URI.
func pathToURI(path string) string {
	return "file://" + filepath.ToSlash(path)
}

// uriToPath maps a file scheme URI back to a filesystem path.
func uriToPath(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse resource URI %s: %w", uri, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported resource URI scheme %q", u.Scheme)
	}
	if u.Path == "" {
		return "", fmt.Errorf("resource URI %s has no path", uri)
	}
	return filepath.FromSlash(u.Path), nil
}
