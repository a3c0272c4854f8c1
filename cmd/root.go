package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/cachestat/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "cachestat",
	Short: "Compiler cache accounting for CI",
	Long: `Derive compiler cache keys, restore and save the cache store, and report
hit rates for a CI build to the job summary and the pull request.`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)
	rootCmd.PersistentFlags().String("config", "", "Config file (default: global and .cachestat.* in the workspace)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringP("workspace", "w", "", "Workspace searched for lockfiles (default: $GITHUB_WORKSPACE or the working directory)")
	rootCmd.PersistentFlags().String("log-file", "", "Compiler cache event log")
	rootCmd.PersistentFlags().String("state-file", "", "State file handed from start to finish")
	rootCmd.PersistentFlags().StringP("backend", "b", "", "Cache backend: local, remote or none")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(finishCmd)
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(reportCmd)
}
