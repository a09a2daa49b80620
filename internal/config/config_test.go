package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestInitializeUsesExplicitArgsOverDefaults(t *testing.T) {
	cfg, err := Initialize("/repo", "/data")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if cfg.RepoPath != "/repo" || cfg.DataPath != "/data" {
		t.Fatalf("Initialize() = %+v, want explicit repo/data", cfg)
	}
	if cfg.Workers != 10 {
		t.Fatalf("Workers = %d, want default 10", cfg.Workers)
	}
	if cfg.LockTimeout != 30*time.Second {
		t.Fatalf("LockTimeout = %v, want default 30s", cfg.LockTimeout)
	}
}

func TestInitializeDerivesFromRootAndProjectWhenArgsEmpty(t *testing.T) {
	t.Setenv("ELIXIR_ROOT", "/srv/elixir")
	t.Setenv("ELIXIR_PROJECT", "myproj")

	cfg, err := Initialize("", "")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	wantRepo := filepath.Join("/srv/elixir", "myproj", "repo")
	wantData := filepath.Join("/srv/elixir", "myproj", "data")
	if cfg.RepoPath != wantRepo || cfg.DataPath != wantData {
		t.Fatalf("Initialize() = %+v, want repo=%s data=%s", cfg, wantRepo, wantData)
	}
}

func TestInitializeRootWithoutProjectFails(t *testing.T) {
	t.Setenv("ELIXIR_ROOT", "/srv/elixir")
	t.Setenv("ELIXIR_PROJECT", "")

	if _, err := Initialize("", ""); err == nil {
		t.Fatal("Initialize() = nil error, want failure when ELIXIR_PROJECT is unset")
	}
}

func TestInitializeEnvOverridesWorkers(t *testing.T) {
	t.Setenv("ELIXIR_WORKERS", "4")

	cfg, err := Initialize("/repo", "/data")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if cfg.Workers != 4 {
		t.Fatalf("Workers = %d, want 4 from ELIXIR_WORKERS", cfg.Workers)
	}
}

func TestWatchReloadNoopsWithoutConfigFile(t *testing.T) {
	cfg, err := Initialize("/repo", "/data")
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	// No config file was loaded in this test environment, so WatchReload must not panic or
	// block trying to watch a file that doesn't exist.
	cfg.WatchReload(func() {})
}
