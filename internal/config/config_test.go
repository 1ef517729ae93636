package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAgentDefaults(t *testing.T) {
	cfg, err := LoadAgent(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Region != "eu" || cfg.PollInterval.Std() != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadAgentFromFile(t *testing.T) {
	path := writeConfig(t, `
region: na
shard: na1
server_url: https://relay.example.com
api_key: secret
poll_interval: 3s
post_send_interval: 8s
`)
	cfg, err := LoadAgent(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Region != "na" || cfg.Shard != "na1" {
		t.Fatalf("region/shard not loaded: %+v", cfg)
	}
	if cfg.ServerURL != "https://relay.example.com" || cfg.APIKey != "secret" {
		t.Fatalf("server settings not loaded: %+v", cfg)
	}
	if cfg.PollInterval.Std() != 3*time.Second || cfg.PostSendInterval.Std() != 8*time.Second {
		t.Fatalf("intervals not loaded: %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "region: na\napi_key: from-file\n")
	t.Setenv("MATCHWIRE_REGION", "ap")
	t.Setenv("MATCHWIRE_API_KEY", "from-env")

	cfg, err := LoadAgent(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Region != "ap" {
		t.Fatalf("env region override ignored: %q", cfg.Region)
	}
	if cfg.APIKey != "from-env" {
		t.Fatalf("env api key override ignored: %q", cfg.APIKey)
	}
}

func TestLoadAgentRejectsBadIntervals(t *testing.T) {
	path := writeConfig(t, "poll_interval: -1s\n")
	if _, err := LoadAgent(path); err == nil {
		t.Fatalf("expected error for negative interval")
	}
}

func TestLoadServerFromFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9000"
sweep_interval: 30s
sweep_max_age: 2m
`)
	t.Setenv("DATABASE_URL", "postgres://localhost/matchwire")

	cfg, err := LoadServer(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Fatalf("listen addr not loaded: %q", cfg.ListenAddr)
	}
	if cfg.DatabaseURL != "postgres://localhost/matchwire" {
		t.Fatalf("database url env override ignored: %q", cfg.DatabaseURL)
	}
	if cfg.SweepInterval.Std() != 30*time.Second || cfg.SweepMaxAge.Std() != 2*time.Minute {
		t.Fatalf("sweep settings not loaded: %+v", cfg)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "listen_addr: [unclosed\n")
	if _, err := LoadServer(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
