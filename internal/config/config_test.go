package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[gateway]
url = "https://file.example.co"
api_key = "file-key"

[feed]
transport = "nats"
nats_url = "nats://localhost:4222"

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TASKBOARD_URL", "https://env.example.co")
	t.Setenv("TASKBOARD_API_KEY", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.URL != "https://env.example.co" {
		t.Fatalf("environment must override the file, got %q", cfg.Gateway.URL)
	}
	if cfg.Gateway.APIKey != "file-key" {
		t.Fatalf("empty env var must not clobber the file value, got %q", cfg.Gateway.APIKey)
	}
	if cfg.Feed.Transport != "nats" || cfg.Feed.NATSURL != "nats://localhost:4222" {
		t.Fatalf("feed section lost: %+v", cfg.Feed)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log section lost: %+v", cfg.Log)
	}
	// Untouched sections keep defaults.
	if cfg.Storage.Type != "local" {
		t.Fatalf("expected default storage type, got %q", cfg.Storage.Type)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("TASKBOARD_URL", "")
	t.Setenv("TASKBOARD_API_KEY", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Feed.Transport != "websocket" {
		t.Fatalf("expected websocket default, got %q", cfg.Feed.Transport)
	}
}

func TestValidate(t *testing.T) {
	base := Default()
	base.Gateway.URL = "https://x.example.co"
	base.Gateway.APIKey = "key"

	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		frag   string
	}{
		{"missing url", func(c *Config) { c.Gateway.URL = " " }, "gateway.url"},
		{"missing key", func(c *Config) { c.Gateway.APIKey = "" }, "gateway.api_key"},
		{"unknown transport", func(c *Config) { c.Feed.Transport = "carrier-pigeon" }, "feed.transport"},
		{"nats without url", func(c *Config) { c.Feed.Transport = "nats" }, "nats_url"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "tape" }, "storage.type"},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3" }, "bucket"},
	}
	for _, tc := range cases {
		cfg := base
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), tc.frag) {
			t.Fatalf("%s: expected error mentioning %q, got %v", tc.name, tc.frag, err)
		}
	}
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteTemplate(path); err != nil {
		t.Fatalf("WriteTemplate: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read template: %v", err)
	}
	if !strings.Contains(string(b), "[gateway]") {
		t.Fatalf("template missing gateway section")
	}
	if err := WriteTemplate(path); err == nil {
		t.Fatalf("expected refusal to overwrite")
	}
}
