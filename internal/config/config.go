package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Default configuration values
const (
	DefaultPrefix       = "cachestat"
	DefaultToolBinary   = "sccache"
	DefaultLockfileGlob = "Cargo.lock"
	DefaultBackend      = BackendNone
)

// Backends
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
	BackendNone   = "none"
)

// Holds the configuration options for cachestat
type Config struct {
	// Root of the source tree searched for lockfiles
	Workspace string

	// First component of the cache key
	Prefix string

	// Compiler cache binary probed for its version
	ToolBinary string
	// Overrides the probed version when set
	ToolVersion string

	// Base name pattern of lockfiles hashed into the key
	LockfileGlob string

	// Event log written by the compiler cache during the build
	LogFile string

	// Handoff state between start and finish
	StateFile string

	// Persistence backend: local, remote or none
	Backend string
	// Directory of the local store
	StoreDir string
	// Directories saved and restored by the local backend
	CachePaths []string
	// Command used by the remote backend
	SyncCommand string

	// Job summary file, usually $GITHUB_STEP_SUMMARY
	SummaryFile string

	// Prometheus textfile output
	MetricsFile string

	// Abort start when the key cannot be derived
	StrictKey bool

	// Enable debug logging
	Verbose bool

	GitHub GitHubConfig
}

// GitHubConfig holds what is needed to publish the sticky comment
type GitHubConfig struct {
	Token      string
	Repository string
	APIURL     string
	Thread     int
	EventPath  string
	Ref        string
}

func Load() (*Config, error) {
	cfg := &Config{
		Workspace:    viper.GetString("workspace"),
		Prefix:       viper.GetString("prefix"),
		ToolBinary:   viper.GetString("tool_binary"),
		ToolVersion:  viper.GetString("tool_version"),
		LockfileGlob: viper.GetString("lockfile_glob"),
		LogFile:      viper.GetString("log_file"),
		StateFile:    viper.GetString("state_file"),
		Backend:      viper.GetString("backend"),
		StoreDir:     viper.GetString("store_dir"),
		CachePaths:   viper.GetStringSlice("cache_paths"),
		SyncCommand:  viper.GetString("sync_command"),
		SummaryFile:  viper.GetString("summary_file"),
		MetricsFile:  viper.GetString("metrics_file"),
		StrictKey:    viper.GetBool("strict_key"),
		Verbose:      viper.GetBool("verbose"),
		GitHub: GitHubConfig{
			Token:      viper.GetString("github.token"),
			Repository: viper.GetString("github.repository"),
			APIURL:     viper.GetString("github.api_url"),
			Thread:     viper.GetInt("github.thread"),
			EventPath:  viper.GetString("github.event_path"),
			Ref:        viper.GetString("github.ref"),
		},
	}

	// Apply defaults if not set
	if cfg.Workspace == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}

		cfg.Workspace = cwd
	}

	if cfg.Backend == "" {
		cfg.Backend = DefaultBackend
	}

	if cfg.LockfileGlob == "" {
		cfg.LockfileGlob = DefaultLockfileGlob
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Prefix == "" {
		return fmt.Errorf("cache key prefix must not be empty")
	}

	switch c.Backend {
	case BackendLocal:
		if c.StoreDir == "" {
			return fmt.Errorf("store_dir is required for the local backend")
		}
	case BackendRemote, BackendNone:
	default:
		return fmt.Errorf("invalid backend: %s", c.Backend)
	}

	if _, err := filepath.Match(c.LockfileGlob, ""); err != nil {
		return fmt.Errorf("invalid lockfile pattern: %s", c.LockfileGlob)
	}

	// Resolve paths
	for _, p := range []*string{&c.Workspace, &c.LogFile, &c.StateFile, &c.StoreDir, &c.SummaryFile, &c.MetricsFile} {
		if err := absPath(p); err != nil {
			return err
		}
	}

	for i := range c.CachePaths {
		if err := absPath(&c.CachePaths[i]); err != nil {
			return err
		}
	}

	return nil
}

func absPath(p *string) error {
	if *p == "" {
		return nil
	}

	abs, err := filepath.Abs(*p)
	if err != nil {
		return fmt.Errorf("invalid path %s: %v", *p, err)
	}

	*p = abs

	return nil
}
