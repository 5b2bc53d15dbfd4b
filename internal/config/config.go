// Package config loads service configuration from an optional YAML file
// merged with environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"nephro-assistant/internal/core"
	"nephro-assistant/internal/llm"
	"nephro-assistant/internal/websearch"
)

// EnvPrefix is prepended to every environment override, e.g.
// NEPHRO_LLM_MODEL or NEPHRO_WEB_SEARCH_PROVIDER.
const EnvPrefix = "NEPHRO"

// Config holds all runtime settings.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Patients  PatientsConfig  `mapstructure:"patients" yaml:"patients"`
	Retrieval RetrievalConfig `mapstructure:"retrieval" yaml:"retrieval"`
	WebSearch WebSearchConfig `mapstructure:"web_search" yaml:"web_search"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Phrases   core.Phrases    `mapstructure:"phrases" yaml:"phrases"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `mapstructure:"addr" yaml:"addr"`
	// RequestTimeout bounds a single chat turn including model calls.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// LLMConfig configures the completion service.
type LLMConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	Model   string `mapstructure:"model" yaml:"model"`
}

// DatabaseConfig configures Postgres.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url,omitempty"`
	// NotifyChannel receives a NOTIFY with the session id after each saved turn.
	NotifyChannel string `mapstructure:"notify_channel" yaml:"notify_channel"`
}

// PatientsConfig selects the patient lookup store.
type PatientsConfig struct {
	// Source is "json" or "postgres".
	Source    string `mapstructure:"source" yaml:"source"`
	Path      string `mapstructure:"path" yaml:"path"`
	CacheSize int    `mapstructure:"cache_size" yaml:"cache_size"`
}

// RetrievalConfig configures the reference passage index.
type RetrievalConfig struct {
	IndexPath    string `mapstructure:"index_path" yaml:"index_path"`
	PassagesPath string `mapstructure:"passages_path" yaml:"passages_path"`
	TopK         int    `mapstructure:"top_k" yaml:"top_k"`
}

// WebSearchConfig selects the web search provider.
type WebSearchConfig struct {
	Provider    string `mapstructure:"provider" yaml:"provider"`
	APIKey      string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	GoogleCX    string `mapstructure:"google_cx" yaml:"google_cx,omitempty"`
	ResultCount int    `mapstructure:"result_count" yaml:"result_count"`
}

// SessionConfig selects the session store.
type SessionConfig struct {
	// Store is "memory" or "postgres".
	Store           string `mapstructure:"store" yaml:"store"`
	DefaultAllowWeb bool   `mapstructure:"default_allow_web" yaml:"default_allow_web"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	File        string `mapstructure:"file" yaml:"file"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			RequestTimeout: 60 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL: llm.DefaultBaseURL,
			Model:   llm.DefaultModel,
		},
		Database: DatabaseConfig{
			NotifyChannel: "session_updates",
		},
		Patients: PatientsConfig{
			Source:    "json",
			Path:      "data/patients.json",
			CacheSize: 1024,
		},
		Retrieval: RetrievalConfig{
			IndexPath:    "data/reference.bleve",
			PassagesPath: "data/passages.jsonl",
			TopK:         core.DocumentTopK,
		},
		WebSearch: WebSearchConfig{
			Provider:    websearch.ProviderTavily,
			ResultCount: core.WebResultCount,
		},
		Session: SessionConfig{
			Store:           "memory",
			DefaultAllowWeb: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "logs/app.log",
		},
		Phrases: core.DefaultPhrases(),
	}
}

// Load reads configuration from path (optional) and the environment.  An
// empty path uses defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Example: NEPHRO_WEB_SEARCH_API_KEY
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bare names used by existing deployments.
	bindings := map[string][]string{
		"database.url":       {EnvPrefix + "_DATABASE_URL", "DATABASE_URL"},
		"llm.api_key":        {EnvPrefix + "_LLM_API_KEY", "GROQ_API_KEY", "OPENAI_API_KEY"},
		"web_search.api_key": {EnvPrefix + "_WEB_SEARCH_API_KEY", "TAVILY_API_KEY"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if port := os.Getenv("PORT"); port != "" && os.Getenv(EnvPrefix+"_SERVER_ADDR") == "" {
		cfg.Server.Addr = ":" + port
	}
	cfg.Phrases = cfg.Phrases.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the file.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)
	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("database.notify_channel", d.Database.NotifyChannel)
	v.SetDefault("patients.source", d.Patients.Source)
	v.SetDefault("patients.path", d.Patients.Path)
	v.SetDefault("patients.cache_size", d.Patients.CacheSize)
	v.SetDefault("retrieval.index_path", d.Retrieval.IndexPath)
	v.SetDefault("retrieval.passages_path", d.Retrieval.PassagesPath)
	v.SetDefault("retrieval.top_k", d.Retrieval.TopK)
	v.SetDefault("web_search.provider", d.WebSearch.Provider)
	v.SetDefault("web_search.api_key", d.WebSearch.APIKey)
	v.SetDefault("web_search.google_cx", d.WebSearch.GoogleCX)
	v.SetDefault("web_search.result_count", d.WebSearch.ResultCount)
	v.SetDefault("session.store", d.Session.Store)
	v.SetDefault("session.default_allow_web", d.Session.DefaultAllowWeb)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.development", d.Logging.Development)
	v.SetDefault("phrases.admin", []string(d.Phrases.Admin))
	v.SetDefault("phrases.medical", []string(d.Phrases.Medical))
	v.SetDefault("phrases.kidney_concepts", []string(d.Phrases.KidneyConcepts))
	v.SetDefault("phrases.medical_topics", []string(d.Phrases.MedicalTopics))
	v.SetDefault("phrases.freshness", []string(d.Phrases.Freshness))
	v.SetDefault("phrases.intro_prefixes", []string(d.Phrases.IntroPrefixes))
}

// Validate checks enum values and numeric bounds.
func (c *Config) Validate() error {
	switch c.Patients.Source {
	case "json", "postgres":
	default:
		return fmt.Errorf("invalid patients.source '%s', must be one of: json, postgres", c.Patients.Source)
	}
	switch c.Session.Store {
	case "memory", "postgres":
	default:
		return fmt.Errorf("invalid session.store '%s', must be one of: memory, postgres", c.Session.Store)
	}
	switch c.WebSearch.Provider {
	case websearch.ProviderTavily, websearch.ProviderGoogle, websearch.ProviderNone, "":
	default:
		return fmt.Errorf("invalid web_search.provider '%s', must be one of: tavily, google, none", c.WebSearch.Provider)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive")
	}
	if c.WebSearch.ResultCount <= 0 {
		return fmt.Errorf("web_search.result_count must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}
	if (c.Patients.Source == "postgres" || c.Session.Store == "postgres") && c.Database.URL == "" {
		return fmt.Errorf("database.url is required when a postgres store is selected")
	}
	return nil
}

// NeedsDatabase reports whether any configured store lives in Postgres.
func (c *Config) NeedsDatabase() bool {
	return c.Patients.Source == "postgres" || c.Session.Store == "postgres"
}

// WriteFile writes cfg to path as YAML, creating parent directories.
func WriteFile(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
