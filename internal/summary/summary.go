// Package summary appends sections to the CI job summary file.
package summary

import (
	"fmt"
	"os"
	"strings"
)

// Append writes "## heading" followed by body to the summary file at path.
// An empty path means the platform has no summary sink and nothing is written.
func Append(path, heading, body string) error {
	if path == "" {
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open job summary: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", heading)
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to write job summary: %w", err)
	}

	return f.Close()
}
