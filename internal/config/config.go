// Package config loads the service configuration from YAML with environment
// variable expansion. Defaults ship embedded in the binary; a .env file (if
// present) is loaded before expansion so ${VAR} references resolve.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	Auth struct {
		// Password is the shared secret accepted in the X-Api-Password
		// header. Empty disables password auth.
		Password string `yaml:"password"`
		// AccessSecret signs and verifies bearer tokens.
		AccessSecret string `yaml:"access_secret"`
		// AccessExpire is token lifetime in seconds.
		AccessExpire int64 `yaml:"access_expire"`
	} `yaml:"auth"`

	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`

	Routing struct {
		// ConfigPath points at the tier routing YAML (provider chains +
		// classifier rules). Watched for changes at runtime.
		ConfigPath string `yaml:"config_path"`
	} `yaml:"routing"`

	Agents struct {
		// Dir holds the markdown agent definitions.
		Dir string `yaml:"dir"`
		// Default names the agent used when a request doesn't pick one.
		Default string `yaml:"default"`
	} `yaml:"agents"`

	Repo struct {
		// Owner/Name identify the GitHub repository the repo tools read.
		Owner string `yaml:"owner"`
		Name  string `yaml:"name"`
		Token string `yaml:"token"`
	} `yaml:"repo"`

	Limits struct {
		// MaxIterations bounds the tool-use loop per turn.
		MaxIterations int `yaml:"max_iterations"`
		// ProviderTimeoutSeconds bounds a single provider attempt.
		ProviderTimeoutSeconds int `yaml:"provider_timeout_seconds"`
		// ToolTimeoutSeconds bounds a single tool execution.
		ToolTimeoutSeconds int `yaml:"tool_timeout_seconds"`
	} `yaml:"limits"`

	Maintenance struct {
		// Cron is the schedule for the nightly store maintenance job.
		Cron string `yaml:"cron"`
	} `yaml:"maintenance"`
}

// LoadFromBytes parses configuration YAML after expanding ${ENV} references.
func LoadFromBytes(data []byte) (Config, error) {
	var c Config
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &c); err != nil {
		return c, err
	}
	c.applyDefaults()
	return c, nil
}

// LoadFromFile reads and parses a configuration file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return LoadFromBytes(data)
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8790
	}
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "./data/lifeos.db"
	}
	if c.Routing.ConfigPath == "" {
		c.Routing.ConfigPath = "./etc/routing.yaml"
	}
	if c.Agents.Dir == "" {
		c.Agents.Dir = "./agents"
	}
	if c.Agents.Default == "" {
		c.Agents.Default = "assistant"
	}
	if c.Limits.MaxIterations <= 0 {
		c.Limits.MaxIterations = 5
	}
	if c.Limits.ProviderTimeoutSeconds <= 0 {
		c.Limits.ProviderTimeoutSeconds = 60
	}
	if c.Limits.ToolTimeoutSeconds <= 0 {
		c.Limits.ToolTimeoutSeconds = 30
	}
	if c.Auth.AccessExpire <= 0 {
		c.Auth.AccessExpire = 86400
	}
	if c.Maintenance.Cron == "" {
		c.Maintenance.Cron = "0 4 * * *"
	}
}
