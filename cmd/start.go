package cmd

import (
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Prepare the compiler cache before a build",
	Long: `Derive the cache key, clear the event log and restore the cache store.
State is written for the finish command.`,
	RunE:         runStart,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func init() {
	startCmd.Flags().Bool("strict-key", false, "Fail when the cache key can not be derived")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	p, closeFn := newPipeline(cfg, logger)
	defer closeFn()

	st, err := p.Start(cmd.Context())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to derive cache key")
		return err
	}

	logger.Info().
		Str("run_id", st.RunID).
		Str("key", st.Key.PrimaryKey).
		Str("restored", st.RestoredKey).
		Str("backend", st.Backend).
		Msg("Compiler cache ready")

	return nil
}
