package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSaveRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load empty: %v", err)
	}
	cfg.Set("local", Context{Address: "127.0.0.1:4000", Node: "n1"})
	if err := cfg.Use("local"); err != nil {
		t.Fatalf("Use: %v", err)
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	name, ctx, ok := loaded.Current()
	if !ok || name != "local" || ctx.Address != "127.0.0.1:4000" {
		t.Fatalf("Current = %q, %+v, %v", name, ctx, ok)
	}
}

func TestUseUnknownContext(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Use("missing"); err == nil {
		t.Fatal("Use accepted an unknown context")
	}
}

func TestRemoveClearsCurrent(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Set("a", Context{Address: "127.0.0.1:4000"})
	if err := cfg.Use("a"); err != nil {
		t.Fatalf("Use: %v", err)
	}
	if err := cfg.Remove("a"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if cfg.CurrentContext != "" {
		t.Fatalf("current = %q, want empty", cfg.CurrentContext)
	}

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "lattice", "config.yaml")); err != nil {
		t.Fatalf("config file: %v", err)
	}
}
