package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bkyoung/review-pipeline/internal/config"
)

func TestMergePrioritizesLaterConfigs(t *testing.T) {
	base := config.Config{
		Server: config.ServerConfig{Addr: ":8080"},
	}
	file := config.Config{
		Server: config.ServerConfig{Addr: ":9090"},
	}
	final := config.Config{
		Server: config.ServerConfig{Addr: ":7070"},
	}

	merged := config.Merge(base, file, final)

	if merged.Server.Addr != ":7070" {
		t.Fatalf("expected final addr to win, got %s", merged.Server.Addr)
	}
}

func TestMergeKeepsBaseWhenOverlayEmpty(t *testing.T) {
	base := config.Config{
		GitHub:    config.GitHubConfig{Token: "ghp_base", BaseURL: "https://api.github.com"},
		Collector: config.CollectorConfig{MaxDiffBytes: 512000},
	}
	overlay := config.Config{
		Redis: config.RedisConfig{Addr: "redis:6379", Partitions: 8},
	}

	merged := config.Merge(base, overlay)

	if merged.GitHub.Token != "ghp_base" {
		t.Fatalf("expected base github token to survive, got %s", merged.GitHub.Token)
	}
	if merged.Collector.MaxDiffBytes != 512000 {
		t.Fatalf("expected base collector config to survive, got %d", merged.Collector.MaxDiffBytes)
	}
	if merged.Redis.Partitions != 8 {
		t.Fatalf("expected overlay redis config, got %d partitions", merged.Redis.Partitions)
	}
}

func TestMergeProviders(t *testing.T) {
	base := config.Config{
		Providers: map[string]config.ProviderConfig{
			"static": {Enabled: true, Model: "static-v1"},
			"gemini": {Enabled: false, Model: "gemini-pro"},
		},
	}
	overlay := config.Config{
		Providers: map[string]config.ProviderConfig{
			"gemini": {Enabled: true, Model: "gemini-1.5-pro", APIKey: "key"},
		},
	}

	merged := config.Merge(base, overlay)

	if !merged.Providers["gemini"].Enabled {
		t.Fatal("expected overlay gemini provider to win")
	}
	if merged.Providers["gemini"].Model != "gemini-1.5-pro" {
		t.Fatalf("expected overlay model, got %s", merged.Providers["gemini"].Model)
	}
	if !merged.Providers["static"].Enabled {
		t.Fatal("expected base static provider to survive")
	}
}

func TestLoadReadsFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "rp.yaml")
	if err := os.WriteFile(file, []byte("server:\n  addr: \":9191\"\n"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("RP_SERVER_ADDR", ":7171")

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: []string{dir},
		FileName:    "rp",
		EnvPrefix:   "RP",
	})
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}

	if cfg.Server.Addr != ":7171" {
		t.Fatalf("expected env override, got %s", cfg.Server.Addr)
	}
}

func TestLoggingConfigDefaults(t *testing.T) {
	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: []string{},
		FileName:    "nonexistent",
		EnvPrefix:   "RP",
	})
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "auto" {
		t.Errorf("expected default log format 'auto', got %s", cfg.Logging.Format)
	}
}

func TestPolicyConfigDefaults(t *testing.T) {
	cfg, err := config.Load(config.LoaderOptions{
		FileName:  "nonexistent",
		EnvPrefix: "RP",
	})
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}

	if !cfg.Policy.Enabled {
		t.Error("expected policy checks enabled by default")
	}
	if cfg.Policy.MaxFileLines != 600 {
		t.Errorf("expected default max file lines 600, got %d", cfg.Policy.MaxFileLines)
	}
	if !cfg.Policy.BlockSecrets {
		t.Error("expected secret blocking enabled by default")
	}
}
