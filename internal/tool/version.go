// Package tool probes the compiler cache binary.
package tool

import (
	"context"
	"os/exec"
	"regexp"
	"time"

	"github.com/Norgate-AV/cachestat/internal/cachekey"
)

const probeTimeout = 10 * time.Second

var versionPattern = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?(?:[-+][0-9A-Za-z.-]+)?`)

// Outputter interface for testing
type Outputter interface {
	Output() ([]byte, error)
}

var execCommand = func(ctx context.Context, name string, args ...string) Outputter {
	return exec.CommandContext(ctx, name, args...)
}

// Version runs "<binary> --version" and returns the version it reports,
// or cachekey.UnknownVersion when that fails
func Version(ctx context.Context, binary string) string {
	if binary == "" {
		return cachekey.UnknownVersion
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := execCommand(ctx, binary, "--version").Output()
	if err != nil {
		return cachekey.UnknownVersion
	}

	return parseVersion(string(out))
}

// parseVersion extracts the first version token, e.g. "sccache 0.8.1" -> "0.8.1"
func parseVersion(out string) string {
	if v := versionPattern.FindString(out); v != "" {
		return v
	}

	return cachekey.UnknownVersion
}
