package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nephro-assistant/internal/core"
	"nephro-assistant/internal/llm"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, llm.DefaultModel, cfg.LLM.Model)
	assert.Equal(t, llm.DefaultBaseURL, cfg.LLM.BaseURL)
	assert.Equal(t, "data/patients.json", cfg.Patients.Path)
	assert.Equal(t, "logs/app.log", cfg.Logging.File)
	assert.Equal(t, 6, cfg.Retrieval.TopK)
	assert.Equal(t, 3, cfg.WebSearch.ResultCount)
	assert.True(t, cfg.Session.DefaultAllowWeb)
	assert.Equal(t, 60*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, core.DefaultPhrases(), cfg.Phrases)
}

func TestLoad_FileOverrides(t *testing.T) {
	t.Setenv("PORT", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlDoc := `
server:
  addr: ":9090"
  request_timeout: 15s
llm:
  model: llama-3.1-8b-instant
web_search:
  provider: google
  google_cx: abc123
session:
  default_allow_web: false
phrases:
  admin: ["pharmacy hours"]
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLM.Model)
	assert.Equal(t, "google", cfg.WebSearch.Provider)
	assert.Equal(t, "abc123", cfg.WebSearch.GoogleCX)
	assert.False(t, cfg.Session.DefaultAllowWeb)
	assert.Equal(t, core.PhraseSet{"pharmacy hours"}, cfg.Phrases.Admin)
	// Untouched sections keep their defaults.
	assert.Equal(t, core.DefaultPhrases().Medical, cfg.Phrases.Medical)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("NEPHRO_LLM_MODEL", "env-model")
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("TAVILY_API_KEY", "tvly-test")
	t.Setenv("PORT", "7000")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-model", cfg.LLM.Model)
	assert.Equal(t, "gsk-test", cfg.LLM.APIKey)
	assert.Equal(t, "tvly-test", cfg.WebSearch.APIKey)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad patients source", func(c *Config) { c.Patients.Source = "csv" }, "patients.source"},
		{"bad session store", func(c *Config) { c.Session.Store = "redis" }, "session.store"},
		{"bad provider", func(c *Config) { c.WebSearch.Provider = "bing" }, "web_search.provider"},
		{"zero top k", func(c *Config) { c.Retrieval.TopK = 0 }, "top_k"},
		{"negative result count", func(c *Config) { c.WebSearch.ResultCount = -1 }, "result_count"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "log level"},
		{"postgres without url", func(c *Config) { c.Session.Store = "postgres" }, "database.url"},
		{"postgres with url", func(c *Config) {
			c.Session.Store = "postgres"
			c.Database.URL = "postgres://localhost/nephro"
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteFile(path, Default()))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Retrieval, cfg.Retrieval)
	assert.Equal(t, Default().Phrases, cfg.Phrases)
}
