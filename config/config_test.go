package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
logging:
  level: "DEBUG"

stripe:
  block_size: 512Ki

kinetic:
  rpc_timeout: 10s
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("expected level DEBUG, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("expected default format text, got %q", cfg.Logging.Format)
	}
	if cfg.Stripe.BlockSize.Uint64() != 512*1024 {
		t.Errorf("expected block size 512Ki, got %d", cfg.Stripe.BlockSize)
	}
	if cfg.Kinetic.RPCTimeout != 10*time.Second {
		t.Errorf("expected rpc_timeout 10s, got %v", cfg.Kinetic.RPCTimeout)
	}
	if cfg.Kinetic.ConnectTimeout != 5*time.Second {
		t.Errorf("expected default connect_timeout 5s, got %v", cfg.Kinetic.ConnectTimeout)
	}
	if cfg.Fanout.ListingParallelism != 8 {
		t.Errorf("expected default listing_parallelism 8, got %d", cfg.Fanout.ListingParallelism)
	}
	if cfg.Erasure.DataShards != 6 || cfg.Erasure.ParityShards != 3 {
		t.Errorf("expected default (6,3) erasure shards, got (%d,%d)", cfg.Erasure.DataShards, cfg.Erasure.ParityShards)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	cfg, err := Load(filepath.Join(tmpDir, "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("expected default level INFO, got %q", cfg.Logging.Level)
	}
}

func TestMustLoadMissingExplicitPath(t *testing.T) {
	_, err := MustLoad("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}

func TestSaveAndReloadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Stripe.BlockSize = 2 * 1024 * 1024

	if err := SaveConfig(cfg, configPath); err != nil {
		t.Fatalf("save config: %v", err)
	}

	reloaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if reloaded.Stripe.BlockSize.Uint64() != 2*1024*1024 {
		t.Errorf("expected reloaded block size 2Mi, got %d", reloaded.Stripe.BlockSize)
	}
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "NOPE"

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for invalid log level")
	}
}

func TestValidateRejectsZeroBlockSize(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Stripe.BlockSize = 0

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for zero block size")
	}
}
