// Package config provides YAML-based configuration loading for Handoff.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Handoff configuration, loaded from handoff.yaml.
type Config struct {
	Store  StoreConfig  `yaml:"store"`
	Remote RemoteConfig `yaml:"remote"`
	LLM    LLMConfig    `yaml:"llm"`
	Notify NotifyConfig `yaml:"notify"`
	Digest DigestConfig `yaml:"digest"`
	Server ServerConfig `yaml:"server"`
}

// StoreConfig holds connection settings for the local escalation store.
// Backend is "sqlite" (default, single file) or "mysql".
type StoreConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"` // sqlite file path
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
}

// RemoteConfig holds ticket-system settings. The API token is never stored
// in the config file; it lives in the OS keyring keyed by Email.
type RemoteConfig struct {
	Backend string `yaml:"backend"` // jira or github
	BaseURL string `yaml:"base_url"`
	Email   string `yaml:"email"`
}

// LLMConfig points at an OpenAI-compatible endpoint used for ticket summaries.
type LLMConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
}

// NotifyConfig holds optional webhook targets for posting-outcome notifications.
type NotifyConfig struct {
	SlackWebhookURL  string `yaml:"slack_webhook_url"`
	DiscordWebhookID string `yaml:"discord_webhook_id"`
	DiscordToken     string `yaml:"discord_webhook_token"`
}

// DigestConfig controls the scheduled failed-post digest.
type DigestConfig struct {
	Schedule string `yaml:"schedule"` // 5-field cron expression
}

// ServerConfig holds settings for the local HTTP API.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Store.Backend == "" {
		c.Store.Backend = "sqlite"
	}
	if c.Store.Backend == "sqlite" && c.Store.Path == "" {
		c.Store.Path = "handoff.db"
	}
	if c.Store.Backend == "mysql" {
		if c.Store.Host == "" {
			c.Store.Host = "127.0.0.1"
		}
		if c.Store.Port == 0 {
			c.Store.Port = 3306
		}
		if c.Store.Database == "" {
			c.Store.Database = "handoff"
		}
		if c.Store.User == "" {
			c.Store.User = "root"
		}
	}
	if c.Remote.Backend == "" {
		c.Remote.Backend = "jira"
	}
	if c.LLM.Endpoint == "" {
		c.LLM.Endpoint = "http://localhost:11434/v1"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "llama3.1"
	}
	if c.Digest.Schedule == "" {
		c.Digest.Schedule = "0 9 * * *"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8077
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Store.Backend {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("store.backend %q is not one of sqlite, mysql", c.Store.Backend))
	}
	switch c.Remote.Backend {
	case "jira", "github":
	default:
		errs = append(errs, fmt.Sprintf("remote.backend %q is not one of jira, github", c.Remote.Backend))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}
