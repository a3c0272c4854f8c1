// Package cachekey derives the identity used to restore and save the compiler cache store.
//
// A key has the shape prefix-toolVersion-platform-lockHash. The single fallback prefix
// drops only the lockHash, so a restore can fall back to the newest store for the same
// tool version and platform. Tool versions are never mixed.
package cachekey

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

const (
	// NoLockfile replaces the lock hash when no lockfiles were found
	NoLockfile = "no-lockfile"

	// UnknownVersion is used when the cache tool cannot report its version
	UnknownVersion = "unknown"

	// hashLength is the number of hex characters kept from the lockfile digest
	hashLength = 16
)

// Descriptor identifies a persisted cache store snapshot
type Descriptor struct {
	// PrimaryKey is the exact key to restore and save under
	PrimaryKey string `json:"primary_key"`

	// FallbackPrefixes are tried in order when PrimaryKey has no match, most specific first
	FallbackPrefixes []string `json:"fallback_prefixes"`
}

// Derive computes the cache key descriptor for a run.
// Lockfiles are hashed in sorted path order, so discovery order does not matter.
// A lockfile that cannot be read is an error: a partial hash would not be reproducible.
func Derive(prefix, toolVersion, platform string, lockfiles []string) (Descriptor, error) {
	if prefix == "" {
		return Descriptor{}, fmt.Errorf("cache key prefix must not be empty")
	}

	if toolVersion == "" {
		toolVersion = UnknownVersion
	}

	lockHash, err := HashLockfiles(lockfiles)
	if err != nil {
		return Descriptor{}, err
	}

	base := strings.Join([]string{prefix, toolVersion, platform}, "-") + "-"

	return Descriptor{
		PrimaryKey:       base + lockHash,
		FallbackPrefixes: []string{base},
	}, nil
}

// HashLockfiles returns the truncated SHA-256 over the content of every lockfile,
// or NoLockfile when paths is empty
func HashLockfiles(paths []string) (string, error) {
	if len(paths) == 0 {
		return NoLockfile, nil
	}

	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	h := sha256.New()
	for _, path := range sorted {
		if err := hashInto(h, path); err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil))[:hashLength], nil
}

func hashInto(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open lockfile: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to hash lockfile %s: %w", path, err)
	}

	return nil
}
