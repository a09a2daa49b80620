package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untoldecay/elixir/internal/config"
)

// Global state shared across subcommands, following the teacher's own cmd/bd convention of a
// small set of package-level variables populated in PersistentPreRunE rather than threading a
// context struct through every command.
var (
	rootCtx context.Context
	cfg     *config.Config

	flagRepo string
	flagData string
)

var rootCmd = &cobra.Command{
	Use:           "elixir",
	Short:         "A source-code cross-referencer",
	Long:          "elixir indexes tagged snapshots of a version-control store and answers definition/reference queries over them.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		rootCtx = cmd.Context()
		if rootCtx == nil {
			rootCtx = context.Background()
		}
		c, err := config.Initialize(flagRepo, flagData)
		if err != nil {
			return fmt.Errorf("resolving configuration: %w", err)
		}
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRepo, "repo", "", "path to the version-control store being indexed (ELIXIR_REPO)")
	rootCmd.PersistentFlags().StringVar(&flagData, "data", "", "path to the cross-reference database directory (ELIXIR_DATA)")
}

// Execute runs the command tree.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}
