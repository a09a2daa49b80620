package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/untoldecay/elixir/internal/blobstore"
	"github.com/untoldecay/elixir/internal/config"
	"github.com/untoldecay/elixir/internal/progress"
	"github.com/untoldecay/elixir/internal/repoadapter"
	"github.com/untoldecay/elixir/internal/update"
	"github.com/untoldecay/elixir/internal/xrefdb"
)

const minWorkers = 5

var updateCmd = &cobra.Command{
	Use:   "update [workers]",
	Short: "Index every un-indexed tag into the cross-reference database",
	Long: "update drives the repo adapter, blob identity store, and extractors over every " +
		"tag not yet fully indexed. workers bounds the extraction worker pool (minimum 5, " +
		"default from configuration); progress is written to standard error, and one " +
		"machine-readable line per completed tag is written to standard output.",
	Args: cobra.MaximumNArgs(1),
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	workers := cfg.Workers
	if len(args) == 1 {
		w, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("workers must be an integer: %w", err)
		}
		workers = w
	}
	if workers < minWorkers {
		return fmt.Errorf("workers must be >= %d, got %d", minWorkers, workers)
	}

	if err := os.MkdirAll(cfg.DataPath, 0o755); err != nil {
		return fmt.Errorf("creating data directory %s: %w", cfg.DataPath, err)
	}

	ctx := rootCtx
	db, err := xrefdb.Open(ctx, filepath.Join(cfg.DataPath, "xref.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := blobstore.Open(ctx, db)
	if err != nil {
		return err
	}

	descriptor, err := config.LoadDescriptor(cfg.RepoPath)
	if err != nil {
		return err
	}

	reporter := progress.New(cfg.DataPath)
	defer reporter.Close()

	repo := repoadapter.NewGitAdapter(cfg.RepoPath)
	coordinator := update.New(repo, db, store, descriptor, cfg.DataPath, workers,
		update.WithReporter(reporter),
		update.WithLockTimeout(cfg.LockTimeout),
	)

	result, err := coordinator.Run(ctx)
	if err != nil {
		return err
	}

	for _, tag := range result.TagsIndexed {
		fmt.Fprintln(cmd.OutOrStdout(), tag)
	}
	if len(result.TagsFailed) > 0 {
		for tag, failErr := range result.TagsFailed {
			fmt.Fprintf(cmd.ErrOrStderr(), "tag %s failed: %v\n", tag, failErr)
		}
		return fmt.Errorf("%d tag(s) failed to index", len(result.TagsFailed))
	}
	return nil
}
