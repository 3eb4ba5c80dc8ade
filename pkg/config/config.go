// Package config handles client configuration for uidriver.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the client configuration (config.yaml).
type Config struct {
	// Device selection
	Platform string `yaml:"platform"` // android or ios
	Device   string `yaml:"device"`   // Serial number or simulator UDID

	// Agent endpoint
	AgentHost   string `yaml:"agentHost"`
	AgentPort   int    `yaml:"agentPort"`
	AgentPrefix string `yaml:"agentPrefix"` // Path prefix, e.g. /wd/hub

	// Transport retry policy
	MaxRetries     int           `yaml:"maxRetries"`
	RetryInterval  time.Duration `yaml:"retryInterval"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`

	// Readiness
	ReadyTimeout time.Duration `yaml:"readyTimeout"`

	// Managed execution
	Managed         bool   `yaml:"managed"`         // Route operations through a coordinator
	CoordinatorHost string `yaml:"coordinatorHost"` // Coordinator host
	CoordinatorPort int    `yaml:"coordinatorPort"` // Coordinator port

	// Logging
	LogPath string `yaml:"logPath"`
}

// ApplyDefaults fills zero-value fields with the standard defaults.
func (c *Config) ApplyDefaults() {
	if c.Platform == "" {
		c.Platform = "android"
	}
	if c.AgentHost == "" {
		c.AgentHost = "127.0.0.1"
	}
	if c.AgentPort == 0 {
		c.AgentPort = 6790
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = time.Second
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.ReadyTimeout == 0 {
		c.ReadyTimeout = 30 * time.Second
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, fall back to defaults
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg, nil
}
