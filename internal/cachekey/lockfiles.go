package cachekey

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
)

// skipDirs are never descended into while looking for lockfiles
var skipDirs = map[string]bool{
	".git":   true,
	"target": true,
}

// FindLockfiles walks root and returns every file whose base name matches pattern.
// The result is sorted by full path.
func FindLockfiles(root, pattern string) ([]string, error) {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid lockfile pattern %q: %w", pattern, err)
	}

	var found []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return fs.SkipAll
			}

			return err
		}

		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return fs.SkipDir
			}

			return nil
		}

		if ok, _ := filepath.Match(pattern, d.Name()); ok {
			found = append(found, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search for lockfiles: %w", err)
	}

	sort.Strings(found)

	return found, nil
}

// Platform returns the platform component of the cache key, e.g. linux-amd64
func Platform() string {
	return runtime.GOOS + "-" + runtime.GOARCH
}
