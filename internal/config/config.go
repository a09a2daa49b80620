// Package config resolves elixir's runtime configuration: the tool's own settings
// (discovered from .elixir/config.yaml, the user's config directory, or environment
// variables) and, separately, the per-project descriptor (elixir.toml) that a repository
// being indexed carries to declare its family-classification and tag policy.
//
// Nothing here is a process-wide singleton read implicitly by other packages: Initialize
// returns an explicit *Config that callers thread through constructors (spec §9, "Global
// mutable state").
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration for one invocation of the elixir CLI.
type Config struct {
	// RepoPath is the location of the external version-control store (ELIXIR_REPO).
	RepoPath string
	// DataPath is the directory holding the cross-reference database (ELIXIR_DATA).
	DataPath string
	// Workers is the default worker-pool size for `elixir update`, overridable on the CLI.
	Workers int
	// LockTimeout bounds how long `elixir update` waits to acquire the single-writer lock.
	LockTimeout time.Duration

	v *viper.Viper
}

// Initialize resolves configuration for a single project. Non-empty repoPath/dataPath win;
// otherwise each value comes from viper (env > the config file > defaults). The config file
// is the first one locateConfigFile finds; only that one file is read. If repo and data are
// both still empty and ELIXIR_ROOT is set, they are derived from ELIXIR_ROOT/ELIXIR_PROJECT.
func Initialize(repoPath, dataPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("ELIXIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("repo", "")
	v.SetDefault("data", "")
	v.SetDefault("workers", 10)
	v.SetDefault("lock-timeout", "30s")

	if configFile, ok := locateConfigFile(); ok {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		RepoPath: firstNonEmpty(repoPath, v.GetString("repo")),
		DataPath: firstNonEmpty(dataPath, v.GetString("data")),
		Workers:  v.GetInt("workers"),
		v:        v,
	}
	cfg.LockTimeout = v.GetDuration("lock-timeout")

	if root := os.Getenv("ELIXIR_ROOT"); root != "" && cfg.RepoPath == "" && cfg.DataPath == "" {
		// Multi-project mode: derive repo/data from <root>/<project>/{repo,data}.
		project := os.Getenv("ELIXIR_PROJECT")
		if project == "" {
			return nil, fmt.Errorf("config: ELIXIR_ROOT set but ELIXIR_PROJECT is empty")
		}
		cfg.RepoPath = filepath.Join(root, project, "repo")
		cfg.DataPath = filepath.Join(root, project, "data")
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// locateConfigFile walks up from the current directory looking for .elixir/config.yaml,
// then falls back to the user config directory and the home directory, in that order --
// mirroring the teacher's own project-then-user-then-home search order.
func locateConfigFile() (string, bool) {
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			candidate := filepath.Join(dir, ".elixir", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				return candidate, true
			}
		}
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		candidate := filepath.Join(configDir, "elixir", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".elixir", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// WatchReload invokes onChange whenever the config file elixir loaded from is modified on
// disk. It does nothing if no config file was loaded. It watches only that YAML file, not the
// project's elixir.toml descriptor; no command in cmd/elixir calls it.
func (c *Config) WatchReload(onChange func()) {
	if c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(fsnotify.Event) { onChange() })
	c.v.WatchConfig()
}
