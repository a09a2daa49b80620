package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untoldecay/elixir/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect resolved configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved repo/data paths and project descriptor as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		descriptor, err := config.LoadDescriptor(cfg.RepoPath)
		if err != nil {
			return err
		}
		out := struct {
			RepoPath    string             `json:"repo_path"`
			DataPath    string             `json:"data_path"`
			Workers     int                `json:"workers"`
			LockTimeout string             `json:"lock_timeout"`
			Descriptor  *config.Descriptor `json:"descriptor"`
		}{
			RepoPath:    cfg.RepoPath,
			DataPath:    cfg.DataPath,
			Workers:     cfg.Workers,
			LockTimeout: cfg.LockTimeout.String(),
			Descriptor:  descriptor,
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encoding config: %w", err)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
