package cmd

import (
	"github.com/spf13/cobra"
)

var finishCmd = &cobra.Command{
	Use:   "finish",
	Short: "Report on the compiler cache after a build",
	Long: `Parse the event log, write the job summary, update the pull request comment
and save the cache store. Problems are logged and never fail the build.`,
	RunE:         runFinish,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func runFinish(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load config, skipping report")
		return nil
	}

	p, closeFn := newPipeline(cfg, logger)
	defer closeFn()

	res := p.Finish(cmd.Context())

	event := logger.Info().
		Str("run_id", res.State.RunID).
		Int64("duration_s", res.DurationSeconds).
		Str("comment", res.Published.String()).
		Bool("saved", res.Saved)
	if res.Stats != nil {
		event = event.Str("hit_rate", res.Stats.HitRate).Int("total", res.Stats.Total)
	}
	event.Msg("Compiler cache report done")

	return nil
}
