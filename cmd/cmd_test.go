package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Norgate-AV/cachestat/internal/cachekey"
	"github.com/Norgate-AV/cachestat/internal/config"
)

const sampleLog = `{"result":"local_hit","crate_name":"serde","elapsed_ms":5,"size":100}
{"result":"miss","crate_name":"app","elapsed_ms":4200,"size":3000}
`

func TestWriteKey(t *testing.T) {
	var buf bytes.Buffer

	err := writeKey(&buf, cachekey.Descriptor{
		PrimaryKey:       "rust-0.8.1-linux-amd64-abc",
		FallbackPrefixes: []string{"rust-0.8.1-linux-amd64-"},
	})
	require.NoError(t, err)
	assert.Equal(t, "rust-0.8.1-linux-amd64-abc\nrust-0.8.1-linux-amd64-\n", buf.String())
}

func TestRenderReport(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(logPath, []byte(sampleLog), 0o644))

	tests := []struct {
		name        string
		path        string
		comment     bool
		contains    []string
		notContains []string
	}{
		{
			name:        "summary",
			path:        logPath,
			contains:    []string{"| Hit rate | 50.0% |", "| Backend | local |", "Slowest misses (1)"},
			notContains: []string{"## Compiler cache report"},
		},
		{
			name:     "comment",
			path:     logPath,
			comment:  true,
			contains: []string{"## Compiler cache report", "`50.0%` hit rate"},
		},
		{
			name:        "missing log",
			path:        filepath.Join(t.TempDir(), "none.jsonl"),
			contains:    []string{"| Backend | local |"},
			notContains: []string{"Hit rate"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := renderReport(tt.path, "local", tt.comment)
			require.NoError(t, err)

			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.notContains {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestNewCommentService(t *testing.T) {
	tests := []struct {
		name    string
		github  config.GitHubConfig
		wantNil bool
	}{
		{name: "no token", github: config.GitHubConfig{Repository: "octo/widgets"}, wantNil: true},
		{name: "no repository", github: config.GitHubConfig{Token: "t"}, wantNil: true},
		{name: "bad repository", github: config.GitHubConfig{Token: "t", Repository: "widgets"}, wantNil: true},
		{name: "configured", github: config.GitHubConfig{Token: "t", Repository: "octo/widgets"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newCommentService(&config.Config{GitHub: tt.github}, zerolog.Nop())
			if tt.wantNil {
				assert.Nil(t, svc)
			} else {
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := newLogger(&buf, false)
	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	logger = newLogger(&buf, true)
	logger.Debug().Msg("hidden")
	assert.Contains(t, buf.String(), "hidden")
}

func TestKeyCommand(t *testing.T) {
	viper.Reset()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("CACHESTAT_TOOL_VERSION", "0.8.1")
	t.Setenv("CACHESTAT_PREFIX", "")

	workspace := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "Cargo.lock"), []byte("lock"), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"key", "--workspace", workspace})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	base := "cachestat-0.8.1-" + cachekey.Platform() + "-"
	assert.True(t, strings.HasPrefix(lines[0], base))
	assert.NotEqual(t, base+cachekey.NoLockfile, lines[0])
	assert.Equal(t, base, lines[1])
}
