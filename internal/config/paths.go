package config

import (
	"os"
	"path/filepath"
)

// Home returns the matchwire data directory (~/.matchwire), creating it
// if necessary.
func Home() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".matchwire")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// AgentConfigPath returns the default agent config file location.
func AgentConfigPath() string {
	home, err := Home()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "agent.yaml")
}

// ServerConfigPath returns the default server config file location.
func ServerConfigPath() string {
	home, err := Home()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "server.yaml")
}
