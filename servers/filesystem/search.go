package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"golang.org/x/sync/errgroup"
)

const searchConcurrency = 16

// searchPaths walks the tree under startPath looking for entries whose name
// contains pattern, case-insensitively. Entries matching one of the exclude
// glob patterns, relative to startPath, are skipped along with everything
// below them. Directories are walked concurrently; when all workers are busy
// the walk continues inline so deep trees cannot stall it.
func searchPaths(ctx context.Context, roots []string, startPath, pattern string, excludes []string) ([]string, error) {
	excludeGlobs, err := compileExcludes(excludes)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(pattern)

	var mu sync.Mutex
	var results []string

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(searchConcurrency)

	var walk func(dir string) error
	walk = func(dir string) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Unreadable directories and sandbox violations end this branch
		// without failing the whole search.
		validDir, err := validatePath(dir, roots)
		if err != nil {
			return nil
		}
		entries, err := os.ReadDir(validDir)
		if err != nil {
			return nil
		}

		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())
			rel, err := filepath.Rel(startPath, full)
			if err != nil {
				continue
			}
			if matchesAny(excludeGlobs, filepath.ToSlash(rel)) {
				continue
			}

			if strings.Contains(strings.ToLower(entry.Name()), needle) {
				mu.Lock()
				results = append(results, full)
				mu.Unlock()
			}

			if entry.IsDir() {
				sub := full
				if !g.TryGo(func() error { return walk(sub) }) {
					if err := walk(sub); err != nil {
						return err
					}
				}
			}
		}

		return nil
	}

	g.Go(func() error { return walk(startPath) })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.Sort(results)
	return results, nil
}

// compileExcludes compiles the exclude patterns. A plain name with no
// wildcard excludes that name anywhere in the tree.
func compileExcludes(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		if !strings.Contains(pattern, "*") {
			pattern = "**/" + pattern + "/**"
		}
		compiled, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compile exclude pattern %q: %w", pattern, err)
		}
		globs = append(globs, compiled)
	}
	return globs, nil
}

func matchesAny(globs []glob.Glob, path string) bool {
	for _, g := range globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}
