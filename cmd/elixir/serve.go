package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/untoldecay/elixir/internal/query"
	"github.com/untoldecay/elixir/internal/rpc"
	"github.com/untoldecay/elixir/internal/xrefdb"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local query RPC listener",
	Long: "serve opens the cross-reference database, only reads from it, and listens on a Unix socket " +
		"inside the data directory, answering file/ident/search queries for whatever has " +
		"been committed so far (spec §6: the attachment point for an out-of-process " +
		"HTML/REST front-end).",
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	db, err := xrefdb.Open(rootCtx, filepath.Join(cfg.DataPath, "xref.db"))
	if err != nil {
		return err
	}
	defer db.Close()

	socketPath := rpc.SocketPath(cfg.DataPath)
	server := rpc.NewServer(socketPath, query.New(db))

	ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.ErrOrStderr(), "elixir serve: listening on %s\n", socketPath)
	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("serving %s: %w", socketPath, err)
	}
	return nil
}
