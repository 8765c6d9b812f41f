package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

const AppName = "worklog"

// ClientConfig configures the worklog CLI. Values come from the YAML file, overridden by env.
type ClientConfig struct {
	StoreBackend string `yaml:"store_backend" env:"WORKLOG_STORE_BACKEND" env-default:"redis"`
	DatabaseURL  string `yaml:"database_url" env:"WORKLOG_DATABASE_URL" env-default:""`
	RedisURL     string `yaml:"redis_url" env:"WORKLOG_REDIS_URL" env-default:"redis://localhost:6379/0"`
	DocumentID   string `yaml:"document_id" env:"WORKLOG_DOCUMENT_ID" env-default:"main"`
	GatewayURL   string `yaml:"gateway_url" env:"WORKLOG_GATEWAY_URL" env-default:"http://localhost:8787"`
	AccessKey    string `yaml:"access_key" env:"WORKLOG_ACCESS_KEY" env-default:""`
	LogLevel     string `yaml:"log_level" env:"WORKLOG_LOG_LEVEL" env-default:"warn"`
}

// DefaultClientPath returns $XDG_CONFIG_HOME/worklog/config.yaml.
func DefaultClientPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// LoadClient reads the client config from path. A missing file is not an error; env and defaults apply.
func LoadClient(path string) (ClientConfig, error) {
	if path == "" {
		path = DefaultClientPath()
	}

	var cfg ClientConfig
	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return ClientConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	case errors.Is(statErr, os.ErrNotExist):
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return ClientConfig{}, fmt.Errorf("read env: %w", err)
		}
	default:
		return ClientConfig{}, fmt.Errorf("stat config %s: %w", path, statErr)
	}

	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if err := validateBackend(cfg.StoreBackend); err != nil {
		return ClientConfig{}, err
	}
	if cfg.StoreBackend == BackendPostgres && strings.TrimSpace(cfg.DatabaseURL) == "" {
		return ClientConfig{}, fmt.Errorf("database_url is required for the postgres backend")
	}
	return cfg, nil
}

// WriteClient writes cfg as YAML, creating parent directories.
func WriteClient(path string, cfg ClientConfig) error {
	if path == "" {
		path = DefaultClientPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
