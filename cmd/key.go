package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/cachestat/internal/backend"
	"github.com/Norgate-AV/cachestat/internal/cachekey"
	"github.com/Norgate-AV/cachestat/internal/pipeline"
)

var keyCmd = &cobra.Command{
	Use:          "key",
	Short:        "Print the cache key",
	Long:         `Print the primary cache key followed by the fallback prefixes, one per line.`,
	RunE:         runKey,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
}

func runKey(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// key derivation never touches the store
	p := pipeline.New(cfg, backend.None{}, nil, logger)

	key, err := p.DeriveKey(cmd.Context())
	if err != nil {
		return err
	}

	return writeKey(cmd.OutOrStdout(), key)
}

func writeKey(w io.Writer, key cachekey.Descriptor) error {
	if _, err := fmt.Fprintln(w, key.PrimaryKey); err != nil {
		return err
	}

	for _, prefix := range key.FallbackPrefixes {
		if _, err := fmt.Fprintln(w, prefix); err != nil {
			return err
		}
	}

	return nil
}
