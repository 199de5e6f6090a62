package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// ModelConfig describes one tenant's chat-completion endpoint.
type ModelConfig struct {
	URL         string  `json:"url"`
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// TenantConfig maps a tenant name to its model endpoint settings.
type TenantConfig struct {
	Name  string      `json:"name"`
	Model ModelConfig `json:"model"`
}

type Config struct {
	Server struct {
		Host    string `json:"host"`
		Port    int    `json:"port"`
		Subpath string `json:"subpath"`
	} `json:"server"`
	Postgres struct {
		DSN string `json:"dsn"`
	} `json:"postgres"`
	Redis struct {
		Addr     string `json:"addr"`
		Password string `json:"password"`
		DB       int    `json:"db"`
	} `json:"redis"`
	Tenants       []TenantConfig `json:"tenants"`
	DefaultTenant string         `json:"default_tenant"`
}

var (
	once   sync.Once
	cfg    *Config
	cfgErr error
)

// LoadConfig reads config.json from disk (singleton)
func LoadConfig(path string) (*Config, error) {
	once.Do(func() {
		raw, err := os.ReadFile(path)
		if err != nil {
			cfgErr = fmt.Errorf("failed to read config file: %w", err)
			return
		}
		var c Config
		if err := json.Unmarshal(raw, &c); err != nil {
			cfgErr = fmt.Errorf("invalid config format: %w", err)
			return
		}
		// Minimal validation
		if len(c.Tenants) == 0 {
			cfgErr = errors.New("at least one tenant must be configured")
			return
		}
		for i := range c.Tenants {
			applyModelDefaults(&c.Tenants[i].Model)
		}
		if c.DefaultTenant == "" {
			c.DefaultTenant = c.Tenants[0].Name
		}
		cfg = &c
	})
	return cfg, cfgErr
}

// applyModelDefaults fills the documented defaults for unset model settings.
func applyModelDefaults(m *ModelConfig) {
	if m.Temperature == 0 {
		m.Temperature = 0.7
	}
	if m.MaxTokens == 0 {
		m.MaxTokens = 2048
	}
}

// Tenant returns the model config for the named tenant, falling back to
// the default tenant when name is empty or unknown.
func (c *Config) Tenant(name string) ModelConfig {
	if name != "" {
		for _, t := range c.Tenants {
			if t.Name == name {
				return t.Model
			}
		}
	}
	for _, t := range c.Tenants {
		if t.Name == c.DefaultTenant {
			return t.Model
		}
	}
	return c.Tenants[0].Model
}

// GetConfig returns the loaded config (must call LoadConfig first)
func GetConfig() *Config {
	return cfg
}

// ResetConfigForTest resets the singleton state (for testing only)
func ResetConfigForTest() {
	once = sync.Once{}
	cfg = nil
	cfgErr = nil
}
