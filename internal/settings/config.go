// Package settings holds the process configuration (config file, .env and
// environment) and the user's AI settings persisted in the store.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fpang/minipaint/internal/chat"
	"github.com/fpang/minipaint/internal/colormatch"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Environment overrides.
const (
	EnvAPIKey        = "GEMINI_API_KEY"
	EnvModel         = "GEMINI_MODEL"
	EnvProvider      = "MINIPAINT_PROVIDER"
	EnvLocalEndpoint = "MINIPAINT_LOCAL_ENDPOINT"
	EnvDatabase      = "MINIPAINT_DB"
)

// DefaultDir is the per-user directory under $HOME.
const DefaultDir = ".minipaint"

// Config is the process configuration. Provider and LocalEndpoint are the
// starting AI settings; settings saved by the user take over unless an
// environment variable or flag pinned them.
type Config struct {
	Provider       string   `yaml:"provider"`
	LocalEndpoint  string   `yaml:"localEndpoint"`
	LocalModel     string   `yaml:"localModel"`
	Models         []string `yaml:"models"`
	Database       string   `yaml:"database"`
	ColorThreshold float64  `yaml:"colorThreshold"`
	APIKey         string   `yaml:"apiKey"`

	pinProvider bool
	pinEndpoint bool
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:       chat.BackendGemini,
		LocalEndpoint:  chat.DefaultLocalEndpoint,
		LocalModel:     chat.DefaultLocalModel,
		Models:         []string{chat.DefaultModelName},
		Database:       defaultDatabasePath(),
		ColorThreshold: colormatch.DefaultThreshold,
	}
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "minipaint.db"
	}
	return filepath.Join(home, DefaultDir, "minipaint.db")
}

// DefaultConfigPath is ~/.minipaint/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DefaultDir, "config.yaml")
}

// Load builds the configuration: defaults, then the YAML file at path, then
// .env and the environment. An empty path reads DefaultConfigPath when it
// exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Could not read .env file")
	}

	cfg := DefaultConfig()
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
			log.Debug().Str("path", path).Msg("Config file loaded")
		case explicit || !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvProvider)); v != "" {
		c.Provider = strings.ToLower(v)
		c.pinProvider = true
	}
	if v := strings.TrimSpace(os.Getenv(EnvLocalEndpoint)); v != "" {
		c.LocalEndpoint = v
		c.pinEndpoint = true
	}
	if v := strings.TrimSpace(os.Getenv(EnvDatabase)); v != "" {
		c.Database = v
	}
	if os.Getenv(EnvModel) != "" {
		c.Models = chat.GetModelNames()
	}
}

// Override applies command-line flags. Non-empty values win over
// everything, including saved settings.
func (c *Config) Override(provider, endpoint, database string) {
	if provider != "" {
		c.Provider = strings.ToLower(provider)
		c.pinProvider = true
	}
	if endpoint != "" {
		c.LocalEndpoint = endpoint
		c.pinEndpoint = true
	}
	if database != "" {
		c.Database = database
	}
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Provider != chat.BackendGemini && c.Provider != chat.BackendLocal {
		return fmt.Errorf("provider must be %q or %q, got %q", chat.BackendGemini, chat.BackendLocal, c.Provider)
	}
	if c.ColorThreshold <= 0 || c.ColorThreshold > 1 {
		return fmt.Errorf("colorThreshold must be in (0, 1], got %v", c.ColorThreshold)
	}
	if c.Database == "" {
		return errors.New("database path is required")
	}
	return nil
}

// Defaults returns the AI settings implied by the configuration alone.
func (c *Config) Defaults() Settings {
	return Settings{Provider: c.Provider, LocalEndpoint: c.LocalEndpoint}
}
