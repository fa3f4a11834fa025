package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show library statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if err := requirePersistentStorage(cfg, "stats"); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, cfg, logger, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.library.Stats(ctx)
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}

	cmd.Printf("Chunks:     %d\n", st.Count)
	cmd.Printf("Storage:    %s (%s)\n", st.Name, st.Location)
	cmd.Printf("Model:      %s\n", st.Model.Name)
	cmd.Printf("Dimension:  %d\n", st.Model.Dimension)
	cmd.Printf("Max tokens: %d\n", st.Model.MaxSeqLength)
	return nil
}
