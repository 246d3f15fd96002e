// Package config loads client settings from a TOML file with environment
// overrides. Secrets (anon key, access token) usually come from the
// environment or a .env file rather than the config file itself.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Gateway GatewayConfig `toml:"gateway"`
	Feed    FeedConfig    `toml:"feed"`
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
}

type GatewayConfig struct {
	// URL is the backend project root, e.g. https://xyz.example.co.
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`

	// AccessToken is an optional pre-issued user JWT. When empty the API key
	// is used for reads and mutations are refused (no session).
	AccessToken string `toml:"access_token"`
}

type FeedConfig struct {
	// Transport selects the change-feed transport: websocket (hosted
	// backend) or nats (self-hosted publisher).
	Transport string `toml:"transport"`
	NATSURL   string `toml:"nats_url"`
}

type StorageConfig struct {
	// Type selects the attachment object store: s3 or local.
	Type string `toml:"type"`

	Endpoint      string `toml:"endpoint"`
	AccessKey     string `toml:"access_key"`
	SecretKey     string `toml:"secret_key"`
	Bucket        string `toml:"bucket"`
	UseSSL        bool   `toml:"use_ssl"`
	PublicBaseURL string `toml:"public_base_url"`

	// LocalDir backs the local store type.
	LocalDir string `toml:"local_dir"`
}

type LogConfig struct {
	Level      string `toml:"level"`  // debug|info|warn|error
	Format     string `toml:"format"` // json|text
	File       string `toml:"file"`   // empty: stderr
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

func Default() Config {
	return Config{
		Feed: FeedConfig{Transport: "websocket"},
		Storage: StorageConfig{
			Type:     "local",
			LocalDir: filepath.Join(dataDir(), "attachments"),
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			File:       filepath.Join(dataDir(), "taskboard.log"),
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
	}
}

func configDir() string {
	if d, err := os.UserConfigDir(); err == nil {
		return filepath.Join(d, "taskboard")
	}
	return ".taskboard"
}

func dataDir() string {
	if d, err := os.UserCacheDir(); err == nil {
		return filepath.Join(d, "taskboard")
	}
	return ".taskboard"
}

// DefaultPath is where `taskboard config init` writes and where Load looks
// when no --config flag is given.
func DefaultPath() string { return filepath.Join(configDir(), "config.toml") }

// StatePath is the TUI preference file (last project, collapsed sidebar).
func StatePath() string { return filepath.Join(configDir(), "state.json") }

// Load reads the config file (missing file is fine; defaults apply), then a
// .env file in the working directory if present, then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	_ = godotenv.Load() // best effort; absence is normal
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Gateway.URL, "TASKBOARD_URL")
	set(&cfg.Gateway.APIKey, "TASKBOARD_API_KEY")
	set(&cfg.Gateway.AccessToken, "TASKBOARD_ACCESS_TOKEN")
	set(&cfg.Feed.Transport, "TASKBOARD_FEED_TRANSPORT")
	set(&cfg.Feed.NATSURL, "TASKBOARD_NATS_URL")
	set(&cfg.Storage.Type, "TASKBOARD_STORAGE_TYPE")
	set(&cfg.Storage.Endpoint, "TASKBOARD_S3_ENDPOINT")
	set(&cfg.Storage.AccessKey, "TASKBOARD_S3_ACCESS_KEY")
	set(&cfg.Storage.SecretKey, "TASKBOARD_S3_SECRET_KEY")
	set(&cfg.Storage.Bucket, "TASKBOARD_S3_BUCKET")
	set(&cfg.Storage.PublicBaseURL, "TASKBOARD_S3_PUBLIC_URL")
	set(&cfg.Log.Level, "TASKBOARD_LOG_LEVEL")
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Gateway.URL) == "" {
		return fmt.Errorf("config: gateway.url is required (or TASKBOARD_URL)")
	}
	if strings.TrimSpace(c.Gateway.APIKey) == "" {
		return fmt.Errorf("config: gateway.api_key is required (or TASKBOARD_API_KEY)")
	}
	switch c.Feed.Transport {
	case "websocket":
	case "nats":
		if strings.TrimSpace(c.Feed.NATSURL) == "" {
			return fmt.Errorf("config: feed.nats_url is required for the nats transport")
		}
	default:
		return fmt.Errorf("config: unknown feed.transport %q (websocket|nats)", c.Feed.Transport)
	}
	switch c.Storage.Type {
	case "local":
	case "s3":
		if strings.TrimSpace(c.Storage.Bucket) == "" {
			return fmt.Errorf("config: storage.bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("config: unknown storage.type %q (s3|local)", c.Storage.Type)
	}
	return nil
}

const template = `# taskboard configuration

[gateway]
url = "https://YOUR-PROJECT.example.co"
api_key = ""
# access_token = ""

[feed]
transport = "websocket" # websocket|nats
# nats_url = "nats://localhost:4222"

[storage]
type = "local" # s3|local
# endpoint = "s3.example.com"
# access_key = ""
# secret_key = ""
# bucket = "attachments"
# use_ssl = true
# public_base_url = "https://cdn.example.com"

[log]
level = "info"
format = "text"
`

// WriteTemplate creates a starter config file. Refuses to overwrite.
func WriteTemplate(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config: %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(template), 0o600)
}
