package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("explicit missing config file must fail")
	}

	// Without an explicit path a missing file falls back to defaults.
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(cwd) })

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q", cfg.ListenAddr)
	}
	if cfg.Dispatch.Interval != 5*time.Second || cfg.Dispatch.BatchSize != 10 {
		t.Errorf("dispatch defaults = %s/%d", cfg.Dispatch.Interval, cfg.Dispatch.BatchSize)
	}
	if cfg.Dispatch.WebhookTimeout != 30*time.Second {
		t.Errorf("webhook timeout = %s", cfg.Dispatch.WebhookTimeout)
	}
	if cfg.Dispute.QuorumVotes != 2 {
		t.Errorf("quorum = %d", cfg.Dispute.QuorumVotes)
	}
	if cfg.Slashing.PenaltyUnit != "100000000000000000" {
		t.Errorf("penalty unit = %q", cfg.Slashing.PenaltyUnit)
	}
	if cfg.JudgeConfigured() {
		t.Error("judge should be unconfigured without an api key")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agora.yaml")
	content := []byte(`
environment: production
listen_addr: ":9000"
dispatch:
  interval: 2s
  batch_size: 25
judge:
  api_key: sk-test
  model: gpt-4o
postgres:
  dsn: postgres://localhost/agora
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Environment != "production" || cfg.ListenAddr != ":9000" {
		t.Errorf("top-level = %s/%s", cfg.Environment, cfg.ListenAddr)
	}
	if cfg.Dispatch.Interval != 2*time.Second || cfg.Dispatch.BatchSize != 25 {
		t.Errorf("dispatch = %s/%d", cfg.Dispatch.Interval, cfg.Dispatch.BatchSize)
	}
	if cfg.Dispatch.WebhookTimeout != 30*time.Second {
		t.Errorf("unset field lost its default: %s", cfg.Dispatch.WebhookTimeout)
	}
	if !cfg.JudgeConfigured() || cfg.Judge.Model != "gpt-4o" {
		t.Errorf("judge = %+v", cfg.Judge)
	}
	if cfg.Postgres.DSN != "postgres://localhost/agora" {
		t.Errorf("dsn = %q", cfg.Postgres.DSN)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agora.yaml")
	if err := os.WriteFile(path, []byte("dispatch:\n  batch_size: 0\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("zero batch size must be rejected")
	}

	if err := os.WriteFile(path, []byte("dispute:\n  quorum_votes: 0\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("zero quorum must be rejected")
	}
}
