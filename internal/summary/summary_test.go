package summary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.md")
	require.NoError(t, os.WriteFile(path, []byte("# Existing\n\n"), 0o644))

	require.NoError(t, Append(path, "Compiler cache report", "| a | b |"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Existing\n\n## Compiler cache report\n\n| a | b |\n\n", string(data))
}

func TestAppend_NoPath(t *testing.T) {
	assert.NoError(t, Append("", "heading", "body"))
}

func TestAppend_BadPath(t *testing.T) {
	err := Append(filepath.Join(t.TempDir(), "missing", "summary.md"), "heading", "body")
	assert.Error(t, err)
}
