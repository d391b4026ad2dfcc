// Package config loads process configuration from defaults, an optional
// YAML file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Text-generation providers.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
)

// Config is the full process configuration.
type Config struct {
	Port       string           `mapstructure:"port"`
	Store      StoreConfig      `mapstructure:"store"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Continuity ContinuityConfig `mapstructure:"continuity"`
}

// StoreConfig selects and locates the database.
type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	DatabaseURL string `mapstructure:"database_url"`
	SQLitePath  string `mapstructure:"sqlite_path"`
}

// LLMConfig configures the text-generation service.
type LLMConfig struct {
	Provider string        `mapstructure:"provider"`
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	WorkDir  string        `mapstructure:"work_dir"` // claude provider only
}

// ContinuityConfig tunes the continuity engine.
type ContinuityConfig struct {
	AnalysisConcurrency int `mapstructure:"analysis_concurrency"`
}

// env maps config keys to the environment variables that override them.
var env = map[string]string{
	"port":                            "PORT",
	"store.driver":                    "STORE_DRIVER",
	"store.database_url":              "DATABASE_URL",
	"store.sqlite_path":               "SQLITE_PATH",
	"llm.provider":                    "LLM_PROVIDER",
	"llm.model":                       "OPENAI_MODEL",
	"llm.api_key":                     "OPENAI_API_KEY",
	"llm.base_url":                    "OPENAI_BASE_URL",
	"llm.timeout":                     "LLM_TIMEOUT",
	"llm.work_dir":                    "LLM_WORK_DIR",
	"continuity.analysis_concurrency": "ANALYSIS_CONCURRENCY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "data/continuity.sqlite")
	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.work_dir", "")
	v.SetDefault("continuity.analysis_concurrency", 1)
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", name, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// ValidateStore checks the store settings only.
func (c *Config) ValidateStore() error {
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	return nil
}

// Validate checks the settings the server needs.
func (c *Config) Validate() error {
	if err := c.ValidateStore(); err != nil {
		return err
	}
	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			return errors.New("OPENAI_API_KEY is required for the openai provider")
		}
	case ProviderClaude:
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm timeout must not be negative, got %s", c.LLM.Timeout)
	}
	if c.Continuity.AnalysisConcurrency < 1 {
		return fmt.Errorf("analysis concurrency must be at least 1, got %d", c.Continuity.AnalysisConcurrency)
	}
	return nil
}
