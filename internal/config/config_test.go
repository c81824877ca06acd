package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaultsAndResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	raw := `{
  "runtime": {"data_dir": "state"},
  "summary": {"style": "structured", "format": "pdf"},
  "queue": {"driver": "redis", "address": "127.0.0.1:6379"}
}`
	path := filepath.Join(dir, "tubedigest.json")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Runtime.DataDir != filepath.Join(dir, "state") {
		t.Fatalf("data dir not resolved against config dir: %s", cfg.Runtime.DataDir)
	}
	if cfg.Runtime.DownloadDir != filepath.Join(dir, "state", "downloads") {
		t.Fatalf("unexpected download dir: %s", cfg.Runtime.DownloadDir)
	}
	if cfg.Summary.Style != "structured" || cfg.Summary.Format != "pdf" {
		t.Fatalf("explicit summary values overridden: %+v", cfg.Summary)
	}
	if cfg.Summary.Length != "medium" {
		t.Fatalf("expected default summary length, got %s", cfg.Summary.Length)
	}
	if cfg.Queue.Driver != "redis" || cfg.Queue.Address != "127.0.0.1:6379" {
		t.Fatalf("queue settings lost: %+v", cfg.Queue)
	}
	if cfg.Queue.Workers != 1 {
		t.Fatalf("expected default worker count, got %d", cfg.Queue.Workers)
	}
	if cfg.Transcription.Method != "whisper" || cfg.Transcription.Language != "en" {
		t.Fatalf("unexpected transcription defaults: %+v", cfg.Transcription)
	}
	if cfg.RunStore.Driver != "memory" {
		t.Fatalf("expected memory run store default, got %s", cfg.RunStore.Driver)
	}
	if cfg.Plugins.Dir != filepath.Join(dir, "plugins") {
		t.Fatalf("unexpected plugins dir: %s", cfg.Plugins.Dir)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestResolvePrefersFlagOverEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "/env/config.json")
	if got := Resolve("/flag/config.json"); got != "/flag/config.json" {
		t.Fatalf("flag path should win, got %s", got)
	}
	if got := Resolve(""); got != "/env/config.json" {
		t.Fatalf("env path should be used, got %s", got)
	}
}
