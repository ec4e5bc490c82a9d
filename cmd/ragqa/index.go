package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ragqa/internal/app"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Embed the configured corpus and save the index",
	Long:  `Reads every configured corpus source, splits documents into overlapping chunks, embeds them and replaces the stored index.`,
	Args:  cobra.NoArgs,
	RunE:  runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	stats, err := app.BuildIndex(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d documents: %d chunks, %d embedded, %d skipped in %s\n",
		stats.Documents, stats.Chunks, stats.Embedded, stats.Skipped, stats.Elapsed.Round(time.Millisecond))
	return nil
}
