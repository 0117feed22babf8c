package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
app:
  name: adventure-story-api
llm:
  default_provider: openai
  fallback_chain: [gemini, openai, missing]
  providers:
    openai:
      api_key: ${TEST_OPENAI_KEY:sk-default}
      model: gpt-4o
    gemini:
      api_key: g
      model: gemini-2.0-flash
story:
  workers: 2
`

func writeConfig(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestLoadFromDirAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", baseYAML)
	t.Setenv("APP_ENV", "development")

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)

	assert.Equal(t, "/api", cfg.App.APIPrefix)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, DispatchModeLocal, cfg.Story.DispatchMode)
	assert.Equal(t, 2, cfg.Story.Workers)
	assert.Equal(t, 5*time.Minute, cfg.Story.GenerationTimeout)
	assert.Equal(t, 6*time.Minute, cfg.Story.StaleAfter())
	assert.Equal(t, "session_id", cfg.Story.SessionCookie.Name)
	assert.Equal(t, 200, cfg.Story.MaxThemeLength)
	assert.Equal(t, "sk-default", cfg.LLM.Providers["openai"].APIKey)
}

func TestLoadFromDirMergesEnvFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", baseYAML)
	writeConfig(t, dir, "config.staging.yaml", "story:\n  workers: 9\n  generation_timeout: 30s\n")
	t.Setenv("APP_ENV", "staging")
	t.Setenv("TEST_OPENAI_KEY", "sk-env")

	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Story.Workers)
	assert.Equal(t, 30*time.Second, cfg.Story.GenerationTimeout)
	assert.Equal(t, "sk-env", cfg.LLM.Providers["openai"].APIKey)
}

func TestLoadFromDirMissingBaseFile(t *testing.T) {
	_, err := LoadFromDir(t.TempDir())
	assert.Error(t, err)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("EXPAND_SET", "value")

	assert.Equal(t, "a=value", expandEnv("a=${EXPAND_SET}"))
	assert.Equal(t, "a=value", expandEnv("a=${EXPAND_SET:fallback}"))
	assert.Equal(t, "a=fallback", expandEnv("a=${EXPAND_UNSET_X:fallback}"))
	assert.Equal(t, "a=", expandEnv("a=${EXPAND_UNSET_X:}"))
	assert.Equal(t, "a=${EXPAND_UNSET_X}", expandEnv("a=${EXPAND_UNSET_X}"))
}

func TestProviderChain(t *testing.T) {
	c := LLMConfig{
		DefaultProvider: "openai",
		FallbackChain:   []string{"gemini", "openai", "missing"},
		Providers: map[string]ProviderConfig{
			"openai": {},
			"gemini": {},
		},
	}
	assert.Equal(t, []string{"openai", "gemini"}, c.ProviderChain())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: DriverSQLite},
			Story: StoryConfig{
				DispatchMode:      DispatchModeLocal,
				Workers:           1,
				GenerationTimeout: time.Minute,
			},
			LLM: LLMConfig{
				DefaultProvider: "openai",
				Providers:       map[string]ProviderConfig{"openai": {}},
			},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"zero workers", func(c *Config) { c.Story.Workers = 0 }},
		{"stream without redis", func(c *Config) { c.Story.DispatchMode = DispatchModeStream }},
		{"unknown dispatch mode", func(c *Config) { c.Story.DispatchMode = "kafka" }},
		{"zero timeout", func(c *Config) { c.Story.GenerationTimeout = 0 }},
		{"rate limit without redis", func(c *Config) { c.Story.CreateRateLimit.Enabled = true }},
		{"no provider", func(c *Config) { c.LLM.DefaultProvider = "absent" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
