// Package config models taskmaster.yml.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret   string `yaml:"jwt_secret"`
		TokenTTLMin int    `yaml:"token_ttl_minutes"`
		// DevLogin lets POST /auth/login mint a token from an email alone.
		// Production deployments front this API with a real identity
		// provider and must leave it off.
		DevLogin bool `yaml:"dev_login"`
	} `yaml:"auth"`
	Seed struct {
		AdminEmail string `yaml:"admin_email"`
		AdminName  string `yaml:"admin_name"`
	} `yaml:"seed"`
	Webhooks []Webhook `yaml:"webhooks"`
	Log      struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

type Webhook struct {
	URL    string   `yaml:"url"`
	Events []string `yaml:"events"`
	Secret string   `yaml:"secret"`
}

func Default() *Config {
	c := &Config{}
	c.Server.Addr = "127.0.0.1:8080"
	c.Server.BasePath = "/api/v1"
	c.Auth.TokenTTLMin = 12 * 60
	c.Seed.AdminEmail = "admin@taskmaster.local"
	c.Seed.AdminName = "Administrator"
	c.Log.Level = "info"
	return c
}

func Path(workspace string) string {
	return filepath.Join(workspace, "taskmaster.yml")
}

// Load reads config from workspace, falling back to defaults when the file
// does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Auth.TokenTTLMin <= 0 {
		return fmt.Errorf("config.auth.token_ttl_minutes must be positive")
	}
	if c.Seed.AdminEmail == "" {
		return fmt.Errorf("config.seed.admin_email is required")
	}
	for i, hook := range c.Webhooks {
		u, err := url.Parse(hook.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("webhook %d has invalid url %q", i, hook.URL)
		}
		for _, evt := range hook.Events {
			if evt == "" {
				return fmt.Errorf("webhook %d has empty event filter", i)
			}
		}
	}
	return nil
}
