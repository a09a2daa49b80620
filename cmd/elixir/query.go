package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/untoldecay/elixir/internal/query"
	"github.com/untoldecay/elixir/internal/types"
	"github.com/untoldecay/elixir/internal/xrefdb"
)

// queryCmd groups the operations spec §6 calls `query <tag> file <path>` and `query <tag>
// ident <name> <family>`. Cobra resolves subcommands before positional args, so each leaf
// takes tag as its own first positional rather than a shared one ahead of the operation name;
// the argument order and semantics otherwise match the spec exactly.
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the cross-reference database",
}

var queryFileCmd = &cobra.Command{
	Use:   "file <tag> <path>",
	Short: "Show the definition/reference overlay for one file within one tag",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQueries(func(q *query.Interface) error {
			result, err := q.File(rootCtx, args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		})
	},
}

var queryIdentCmd = &cobra.Command{
	Use:   "ident <tag> <name> <family>",
	Short: "Show every definition and reference of one identifier in one family within one tag",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQueries(func(q *query.Interface) error {
			result, err := q.Ident(rootCtx, args[0], args[1], types.Family(args[2]))
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		})
	},
}

var querySearchCmd = &cobra.Command{
	Use:   "search <prefix>",
	Short: "List identifiers with a definition whose name starts with prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withQueries(func(q *query.Interface) error {
			result, err := q.Search(rootCtx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		})
	},
}

func init() {
	queryCmd.AddCommand(queryFileCmd, queryIdentCmd, querySearchCmd)
	rootCmd.AddCommand(queryCmd)
}

// withQueries opens the database for the lifetime of fn and only reads from it -- every query subcommand
// is a one-shot process, unlike `elixir serve`'s long-lived connection.
func withQueries(fn func(q *query.Interface) error) error {
	db, err := xrefdb.Open(rootCtx, filepath.Join(cfg.DataPath, "xref.db"))
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(query.New(db))
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return nil
}
