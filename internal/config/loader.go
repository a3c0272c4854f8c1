package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from various sources
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForRun loads configuration for the start, finish and key commands.
// Precedence, lowest first: defaults, global config, local config, environment, flags.
func (l *Loader) LoadForRun(cmd *cobra.Command) (*Config, error) {
	l.setupViperDefaults()
	l.bindEnv()
	l.bindCommandFlags(cmd)

	if explicit := viper.GetString("config"); explicit != "" {
		viper.SetConfigFile(explicit)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", explicit, err)
		}
	} else {
		l.loadGlobalConfig()
		l.loadLocalConfig(viper.GetString("workspace"))
	}

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	tmp := runTempDir()

	viper.SetDefault("prefix", DefaultPrefix)
	viper.SetDefault("tool_binary", DefaultToolBinary)
	viper.SetDefault("lockfile_glob", DefaultLockfileGlob)
	viper.SetDefault("backend", DefaultBackend)
	viper.SetDefault("log_file", filepath.Join(tmp, "cachestat", "events.jsonl"))
	viper.SetDefault("state_file", filepath.Join(tmp, "cachestat", "state.json"))
	viper.SetDefault("strict_key", false)
	viper.SetDefault("verbose", false)

	if home, err := os.UserHomeDir(); err == nil {
		viper.SetDefault("store_dir", filepath.Join(home, ".cache", "cachestat"))
		viper.SetDefault("cache_paths", []string{filepath.Join(home, ".cache", "sccache")})
	}
}

// bindEnv maps CACHESTAT_* variables and the CI provided ones onto config keys
func (l *Loader) bindEnv() {
	viper.SetEnvPrefix("CACHESTAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("workspace", "CACHESTAT_WORKSPACE", "GITHUB_WORKSPACE")
	_ = viper.BindEnv("cache_paths", "CACHESTAT_CACHE_PATHS", "SCCACHE_DIR")
	_ = viper.BindEnv("summary_file", "CACHESTAT_SUMMARY_FILE", "GITHUB_STEP_SUMMARY")
	_ = viper.BindEnv("github.token", "CACHESTAT_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = viper.BindEnv("github.repository", "CACHESTAT_GITHUB_REPOSITORY", "GITHUB_REPOSITORY")
	_ = viper.BindEnv("github.api_url", "CACHESTAT_GITHUB_API_URL", "GITHUB_API_URL")
	_ = viper.BindEnv("github.event_path", "CACHESTAT_GITHUB_EVENT_PATH", "GITHUB_EVENT_PATH")
	_ = viper.BindEnv("github.ref", "CACHESTAT_GITHUB_REF", "GITHUB_REF")
	_ = viper.BindEnv("github.thread", "CACHESTAT_GITHUB_THREAD")
}

// loadGlobalConfig loads global configuration from the user config directory
func (l *Loader) loadGlobalConfig() {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return
	}

	globalDir := filepath.Join(configDir, "cachestat")

	for _, ext := range configExtensions {
		globalPath := filepath.Join(globalDir, "config."+ext)

		if _, err := os.Stat(globalPath); err == nil {
			viper.SetConfigFile(globalPath)

			if err := viper.ReadInConfig(); err == nil {
				break
			}
		}
	}
}

// loadLocalConfig merges local configuration found from the workspace upwards
func (l *Loader) loadLocalConfig(workspace string) {
	if workspace == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return // config.Load() will report it
		}

		workspace = cwd
	}

	absWorkspace, err := filepath.Abs(workspace)
	if err != nil {
		return
	}

	localPath := FindLocalConfig(absWorkspace)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.MergeInConfig()
	}
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	flags := map[string]string{
		"config":     "config",
		"verbose":    "verbose",
		"workspace":  "workspace",
		"log_file":   "log-file",
		"state_file": "state-file",
		"backend":    "backend",
		"strict_key": "strict-key",
	}

	for key, name := range flags {
		if f := cmd.Flags().Lookup(name); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}

// runTempDir is the per-job temp directory on CI, or the system one
func runTempDir() string {
	if dir := os.Getenv("RUNNER_TEMP"); dir != "" {
		return dir
	}

	return os.TempDir()
}
