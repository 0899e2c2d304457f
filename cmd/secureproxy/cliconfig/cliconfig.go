// Package cliconfig loads CLI configuration from a TOML file and the
// environment.
package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/secureproxy/secureproxy-go/client"
)

// DefaultModel used when neither the config file nor the environment names
// one.
const DefaultModel = "gpt-4o"

// Config holds the CLI-facing settings.
type Config struct {
	ProxyKey  string `toml:"proxy_key"`
	SecretKey string `toml:"secret_key"`
	BaseURL   string `toml:"base_url"`
	Model     string `toml:"model"`
}

// Load reads configuration, lowest precedence first: the TOML file (default
// ~/.secureproxy.toml, silently skipped when absent), then SECUREPROXY_*
// environment variables. A .env file in the working directory is honored.
func Load(path string) (Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	var cfg Config

	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".secureproxy.toml")
		}
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if v := os.Getenv("SECUREPROXY_KEY"); v != "" {
		cfg.ProxyKey = v
	}
	if v := os.Getenv("SECUREPROXY_SECRET"); v != "" {
		cfg.SecretKey = v
	}
	if v := os.Getenv("SECUREPROXY_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("SECUREPROXY_MODEL"); v != "" {
		cfg.Model = v
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	return cfg, nil
}

// NewClient builds a proxy client from the loaded settings.
func (c Config) NewClient(logger *zap.Logger) (*client.Client, error) {
	return client.New(client.Config{
		ProxyKey:  c.ProxyKey,
		SecretKey: c.SecretKey,
		BaseURL:   c.BaseURL,
		Logger:    logger,
	})
}
