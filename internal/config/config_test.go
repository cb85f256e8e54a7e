package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DB != "mnemo.db" || cfg.Listen != ":8484" {
		t.Errorf("Unexpected defaults: %+v", cfg)
	}
	if cfg.Study.TestLimit != 30 || cfg.Study.NewCardHorizonDays != 7 {
		t.Errorf("Unexpected study defaults: %+v", cfg.Study)
	}
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mnemo.yaml")
	yaml := "db: from-file.db\nstudy:\n  test-limit: 10\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Run("file overrides defaults", func(t *testing.T) {
		cfg, err := Load(path, nil)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.DB != "from-file.db" {
			t.Errorf("Expected db from file, got %s", cfg.DB)
		}
		if cfg.Study.TestLimit != 10 {
			t.Errorf("Expected test limit 10, got %d", cfg.Study.TestLimit)
		}
		if cfg.Listen != ":8484" {
			t.Errorf("Expected default listen to survive, got %s", cfg.Listen)
		}
	})

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("MNEMO_DB", "from-env.db")
		cfg, err := Load(path, nil)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.DB != "from-env.db" {
			t.Errorf("Expected db from env, got %s", cfg.DB)
		}
	})

	t.Run("flags override everything", func(t *testing.T) {
		t.Setenv("MNEMO_DB", "from-env.db")
		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("db", "mnemo.db", "")
		if err := flags.Parse([]string{"--db", "from-flag.db"}); err != nil {
			t.Fatalf("Failed to parse flags: %v", err)
		}

		cfg, err := Load(path, flags)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.DB != "from-flag.db" {
			t.Errorf("Expected db from flag, got %s", cfg.DB)
		}
	})
}
