// Package config loads agent and server configuration from YAML files
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that decodes from "5s" style YAML values.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// AgentConfig drives the local polling agent.
type AgentConfig struct {
	// Region and Shard select the game endpoints, e.g. "eu"/"eu" or "na"/"na1".
	Region string `yaml:"region"`
	Shard  string `yaml:"shard"`

	// ServerURL is the base URL of the relay server, e.g. "https://relay.example.com".
	ServerURL string `yaml:"server_url"`
	// APIKey authenticates the agent against the relay server.
	APIKey string `yaml:"api_key"`

	// LockfilePath overrides the auto-detected game client lockfile location.
	LockfilePath string `yaml:"lockfile_path,omitempty"`

	// PollInterval is the idle polling cadence; PostSendInterval applies
	// after an update was delivered.
	PollInterval     Duration `yaml:"poll_interval"`
	PostSendInterval Duration `yaml:"post_send_interval"`
}

// ServerConfig drives the relay daemon.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	// DatabaseURL is a postgres connection string. Empty selects the
	// in-memory store.
	DatabaseURL string `yaml:"database_url"`

	// APIKeyHash is the bcrypt hash of the shared agent key, as printed
	// by the keygen command.
	APIKeyHash string `yaml:"api_key_hash"`

	SweepInterval Duration `yaml:"sweep_interval"`
	SweepMaxAge   Duration `yaml:"sweep_max_age"`
}

// DefaultAgent returns the agent defaults before file and env overrides.
func DefaultAgent() AgentConfig {
	return AgentConfig{
		Region:           "eu",
		Shard:            "eu",
		ServerURL:        "http://localhost:8180",
		PollInterval:     Duration(5 * time.Second),
		PostSendInterval: Duration(10 * time.Second),
	}
}

// DefaultServer returns the server defaults before file and env overrides.
func DefaultServer() ServerConfig {
	return ServerConfig{
		ListenAddr:    ":8180",
		SweepInterval: Duration(time.Minute),
		SweepMaxAge:   Duration(5 * time.Minute),
	}
}

// LoadAgent reads the agent config from path. A missing file is not an
// error; defaults plus environment overrides apply.
func LoadAgent(path string) (AgentConfig, error) {
	cfg := DefaultAgent()
	if err := loadYAML(path, &cfg); err != nil {
		return AgentConfig{}, err
	}

	applyEnv("MATCHWIRE_REGION", &cfg.Region)
	applyEnv("MATCHWIRE_SHARD", &cfg.Shard)
	applyEnv("MATCHWIRE_SERVER_URL", &cfg.ServerURL)
	applyEnv("MATCHWIRE_API_KEY", &cfg.APIKey)
	applyEnv("MATCHWIRE_LOCKFILE", &cfg.LockfilePath)

	if cfg.PollInterval <= 0 || cfg.PostSendInterval <= 0 {
		return AgentConfig{}, fmt.Errorf("config: poll intervals must be positive")
	}
	return cfg, nil
}

// LoadServer reads the server config from path. A missing file is not an
// error; defaults plus environment overrides apply.
func LoadServer(path string) (ServerConfig, error) {
	cfg := DefaultServer()
	if err := loadYAML(path, &cfg); err != nil {
		return ServerConfig{}, err
	}

	applyEnv("MATCHWIRE_LISTEN_ADDR", &cfg.ListenAddr)
	applyEnv("DATABASE_URL", &cfg.DatabaseURL)
	applyEnv("MATCHWIRE_API_KEY_HASH", &cfg.APIKeyHash)

	if cfg.SweepInterval <= 0 || cfg.SweepMaxAge <= 0 {
		return ServerConfig{}, fmt.Errorf("config: sweep intervals must be positive")
	}
	return cfg, nil
}

func loadYAML(path string, out any) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(key string, target *string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}
