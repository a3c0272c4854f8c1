package cmd

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/cachestat/internal/backend"
	"github.com/Norgate-AV/cachestat/internal/config"
	"github.com/Norgate-AV/cachestat/internal/pipeline"
	"github.com/Norgate-AV/cachestat/internal/sticky"
)

// loadConfig loads the configuration for cmd and builds a logger from it
func loadConfig(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.NewLoader().LoadForRun(cmd)
	if err != nil {
		verbose, _ := cmd.Flags().GetBool("verbose")
		return nil, newLogger(os.Stderr, verbose), err
	}

	return cfg, newLogger(os.Stderr, cfg.Verbose), nil
}

func newLogger(out io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}).Level(level).With().Timestamp().Logger()
}

// newPipeline wires the configured backend and comment service.
// A backend that fails to open is replaced by none so the run can go on.
func newPipeline(cfg *config.Config, logger zerolog.Logger) (*pipeline.Pipeline, func()) {
	b, err := backend.Open(cfg, logger)
	if err != nil {
		logger.Warn().Err(err).Str("backend", cfg.Backend).Msg("Failed to open cache backend, continuing without persistence")
		b = backend.None{}
	}

	closeFn := func() {
		if err := b.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close cache backend")
		}
	}

	reporter := sticky.NewReporter(newCommentService(cfg, logger), logger)

	return pipeline.New(cfg, b, reporter, logger), closeFn
}

// newCommentService returns nil when comments can not be published
func newCommentService(cfg *config.Config, logger zerolog.Logger) sticky.CommentService {
	if cfg.GitHub.Token == "" || cfg.GitHub.Repository == "" {
		logger.Debug().Msg("No GitHub token or repository, report comment disabled")
		return nil
	}

	svc, err := sticky.NewGitHubService(cfg.GitHub.Token, cfg.GitHub.Repository, cfg.GitHub.APIURL)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to create GitHub client, report comment disabled")
		return nil
	}

	return svc
}
