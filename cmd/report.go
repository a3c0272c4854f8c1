package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/cachestat/internal/eventlog"
	"github.com/Norgate-AV/cachestat/internal/report"
	"github.com/Norgate-AV/cachestat/internal/stats"
)

var reportCmd = &cobra.Command{
	Use:   "report [log]",
	Short: "Render a report for an event log",
	Long: `Render the job summary fragment for an event log to stdout without publishing it.
The log defaults to the configured log_file.`,
	RunE:         runReport,
	SilenceUsage: true,
	Args:         cobra.MaximumNArgs(1),
}

func init() {
	reportCmd.Flags().Bool("comment", false, "Render the full pull request comment instead")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path := cfg.LogFile
	if len(args) == 1 {
		path = args[0]
	}

	comment, _ := cmd.Flags().GetBool("comment")

	out, err := renderReport(path, cfg.Backend, comment)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), out)
	return err
}

func renderReport(path, backendName string, comment bool) (string, error) {
	records, err := eventlog.ReadFile(path)
	if err != nil {
		return "", err
	}

	// duration is only known to finish
	if len(records) == 0 {
		return report.RenderDegraded(backendName, 0), nil
	}

	s := stats.Aggregate(records)
	if comment {
		return report.RenderComment(s, backendName, 0), nil
	}

	return report.RenderSummary(s, backendName, 0), nil
}
