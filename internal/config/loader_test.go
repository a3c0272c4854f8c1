package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateEnv points the user config directory at a temp dir and clears the CI variables
func isolateEnv(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("APPDATA", filepath.Join(home, "AppData"))

	for _, name := range []string{
		"GITHUB_WORKSPACE", "GITHUB_STEP_SUMMARY", "GITHUB_TOKEN", "GITHUB_REPOSITORY",
		"GITHUB_API_URL", "GITHUB_EVENT_PATH", "GITHUB_REF", "SCCACHE_DIR", "RUNNER_TEMP",
		"CACHESTAT_PREFIX", "CACHESTAT_BACKEND", "CACHESTAT_WORKSPACE",
	} {
		t.Setenv(name, "")
	}

	configDir, err := os.UserConfigDir()
	require.NoError(t, err)

	globalDir := filepath.Join(configDir, "cachestat")
	require.NoError(t, os.MkdirAll(globalDir, 0o755))

	return globalDir
}

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "Config file")
	cmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	cmd.Flags().String("workspace", "", "Workspace")
	cmd.Flags().String("log-file", "", "Event log")
	cmd.Flags().String("state-file", "", "State file")
	cmd.Flags().String("backend", "", "Backend")

	return cmd
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	assert.NotNil(t, loader)
}

func TestLoader_SetupViperDefaults(t *testing.T) {
	viper.Reset()
	t.Setenv("RUNNER_TEMP", "/runner/tmp")

	loader := NewLoader()
	loader.setupViperDefaults()

	assert.Equal(t, "cachestat", viper.GetString("prefix"))
	assert.Equal(t, "sccache", viper.GetString("tool_binary"))
	assert.Equal(t, "none", viper.GetString("backend"))
	assert.Equal(t, filepath.Join("/runner/tmp", "cachestat", "events.jsonl"), viper.GetString("log_file"))
	assert.Equal(t, filepath.Join("/runner/tmp", "cachestat", "state.json"), viper.GetString("state_file"))
	assert.Equal(t, false, viper.GetBool("strict_key"))
}

func TestLoader_LoadGlobalConfig(t *testing.T) {
	globalDir := isolateEnv(t)

	t.Run("loads yaml config", func(t *testing.T) {
		viper.Reset()
		configPath := filepath.Join(globalDir, "config.yml")
		configContent := `prefix: "global"
backend: "remote"
verbose: true`
		err := os.WriteFile(configPath, []byte(configContent), 0o644)
		require.NoError(t, err)
		defer os.Remove(configPath)

		loader := NewLoader()
		loader.loadGlobalConfig()

		assert.Equal(t, "global", viper.GetString("prefix"))
		assert.Equal(t, "remote", viper.GetString("backend"))
		assert.Equal(t, true, viper.GetBool("verbose"))
	})

	t.Run("loads json config", func(t *testing.T) {
		viper.Reset()
		configPath := filepath.Join(globalDir, "config.json")
		err := os.WriteFile(configPath, []byte(`{"prefix": "json", "github": {"repository": "octo/widgets"}}`), 0o644)
		require.NoError(t, err)
		defer os.Remove(configPath)

		loader := NewLoader()
		loader.loadGlobalConfig()

		assert.Equal(t, "json", viper.GetString("prefix"))
		assert.Equal(t, "octo/widgets", viper.GetString("github.repository"))
	})

	t.Run("handles missing config gracefully", func(t *testing.T) {
		viper.Reset()

		loader := NewLoader()
		assert.NotPanics(t, func() {
			loader.loadGlobalConfig()
		})
		assert.Equal(t, "", viper.GetString("prefix"))
	})
}

func TestLoader_LoadLocalConfig(t *testing.T) {
	t.Run("walks up directory tree to find config", func(t *testing.T) {
		viper.Reset()

		tempDir := t.TempDir()
		subDir := filepath.Join(tempDir, "crates", "nested")
		err := os.MkdirAll(subDir, 0o755)
		require.NoError(t, err)

		configPath := filepath.Join(tempDir, ".cachestat.yml")
		err = os.WriteFile(configPath, []byte(`lockfile_glob: "*.lock"`), 0o644)
		require.NoError(t, err)

		loader := NewLoader()
		loader.loadLocalConfig(subDir)

		assert.Equal(t, "*.lock", viper.GetString("lockfile_glob"))
	})

	t.Run("merges over global config", func(t *testing.T) {
		globalDir := isolateEnv(t)
		viper.Reset()

		err := os.WriteFile(filepath.Join(globalDir, "config.yml"), []byte("prefix: global\nbackend: remote"), 0o644)
		require.NoError(t, err)

		localDir := t.TempDir()
		err = os.WriteFile(filepath.Join(localDir, ".cachestat.yml"), []byte("prefix: local"), 0o644)
		require.NoError(t, err)

		loader := NewLoader()
		loader.loadGlobalConfig()
		loader.loadLocalConfig(localDir)

		assert.Equal(t, "local", viper.GetString("prefix"))
		assert.Equal(t, "remote", viper.GetString("backend"), "Global values not set locally are kept")
	})

	t.Run("handles missing workspace", func(t *testing.T) {
		viper.Reset()

		loader := NewLoader()
		assert.NotPanics(t, func() {
			loader.loadLocalConfig(filepath.Join(t.TempDir(), "does", "not", "exist"))
			loader.loadLocalConfig("")
		})
	})
}

func TestLoader_BindEnv(t *testing.T) {
	isolateEnv(t)
	viper.Reset()

	t.Setenv("CACHESTAT_PREFIX", "from-env")
	t.Setenv("GITHUB_REPOSITORY", "octo/widgets")
	t.Setenv("GITHUB_STEP_SUMMARY", "/tmp/summary.md")
	t.Setenv("CACHESTAT_GITHUB_THREAD", "17")

	loader := NewLoader()
	loader.bindEnv()

	assert.Equal(t, "from-env", viper.GetString("prefix"))
	assert.Equal(t, "octo/widgets", viper.GetString("github.repository"))
	assert.Equal(t, "/tmp/summary.md", viper.GetString("summary_file"))
	assert.Equal(t, 17, viper.GetInt("github.thread"))
}

func TestLoader_BindCommandFlags(t *testing.T) {
	viper.Reset()

	cmd := newTestCommand()
	cmd.Flags().Set("verbose", "true")
	cmd.Flags().Set("log-file", "custom.jsonl")
	cmd.Flags().Set("backend", "local")

	loader := NewLoader()
	loader.bindCommandFlags(cmd)

	assert.Equal(t, true, viper.GetBool("verbose"))
	assert.Equal(t, "custom.jsonl", viper.GetString("log_file"))
	assert.Equal(t, "local", viper.GetString("backend"))
}

func TestLoader_BindCommandFlags_MissingFlags(t *testing.T) {
	viper.Reset()

	loader := NewLoader()
	assert.NotPanics(t, func() {
		loader.bindCommandFlags(&cobra.Command{})
	})
}

func TestLoader_LoadForRun_Integration(t *testing.T) {
	t.Run("flags override env override local override global", func(t *testing.T) {
		globalDir := isolateEnv(t)
		viper.Reset()

		err := os.WriteFile(filepath.Join(globalDir, "config.yml"), []byte("prefix: global\ntool_binary: ccache\nbackend: remote"), 0o644)
		require.NoError(t, err)

		workspace := t.TempDir()
		err = os.WriteFile(filepath.Join(workspace, ".cachestat.yml"), []byte("prefix: local\nbackend: none\nverbose: true"), 0o644)
		require.NoError(t, err)

		t.Setenv("GITHUB_WORKSPACE", workspace)
		t.Setenv("CACHESTAT_PREFIX", "env")

		cmd := newTestCommand()
		cmd.Flags().Set("backend", "remote")

		loader := NewLoader()
		cfg, err := loader.LoadForRun(cmd)
		require.NoError(t, err)

		assert.Equal(t, "remote", cfg.Backend, "Flag value should win")
		assert.Equal(t, "env", cfg.Prefix, "Environment should override config files")
		assert.Equal(t, true, cfg.Verbose, "Local config should be read from the workspace")
		assert.Equal(t, "ccache", cfg.ToolBinary, "Global config should be used as base")
		assert.Equal(t, workspace, cfg.Workspace)
	})

	t.Run("explicit config file", func(t *testing.T) {
		isolateEnv(t)
		viper.Reset()

		configPath := filepath.Join(t.TempDir(), "ci.toml")
		err := os.WriteFile(configPath, []byte("prefix = \"explicit\"\n"), 0o644)
		require.NoError(t, err)

		cmd := newTestCommand()
		cmd.Flags().Set("config", configPath)

		cfg, err := NewLoader().LoadForRun(cmd)
		require.NoError(t, err)
		assert.Equal(t, "explicit", cfg.Prefix)
	})

	t.Run("missing explicit config file", func(t *testing.T) {
		isolateEnv(t)
		viper.Reset()

		cmd := newTestCommand()
		cmd.Flags().Set("config", filepath.Join(t.TempDir(), "missing.yml"))

		_, err := NewLoader().LoadForRun(cmd)
		assert.Error(t, err)
	})
}
