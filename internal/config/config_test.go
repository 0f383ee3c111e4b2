// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/emochat/internal/model"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvConfig, EnvModel, EnvAPIKey, EnvBaseURL} {
		t.Setenv(k, "")
	}
}

// =============================================================================
// DEFAULTS
// =============================================================================

// TestConfig_Default tests that Default() returns a valid config with defaults.
func TestConfig_Default(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	if cfg.Model != "deepseek-chat" {
		t.Errorf("Model = %q, want %q", cfg.Model, "deepseek-chat")
	}
	if !cfg.Streaming {
		t.Error("Streaming should default to true")
	}
	if cfg.MaxTokens != 8096 {
		t.Errorf("MaxTokens = %d, want 8096", cfg.MaxTokens)
	}
	assert.Equal(t, model.IncludeEmpty, cfg.Policy())
	assert.Equal(t, model.SourceStructured, cfg.Source())
	assert.Equal(t, []string{"deepseek-chat", "deepseek-reasoner"}, cfg.ModelNames())
	assert.Len(t, cfg.UI.LoadingFrames, 10)
	assert.Len(t, cfg.UI.Kaomojis, 5)
}

// =============================================================================
// VALIDATION
// =============================================================================

// TestConfig_Validate tests configuration validation.
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid default config", func(c *Config) {}, ""},
		{"unknown selected model", func(c *Config) { c.Model = "gpt-9" }, "model"},
		{"no models", func(c *Config) { c.Models = nil }, "models"},
		{"duplicate model", func(c *Config) { c.Models = append(c.Models, c.Models[0]) }, "duplicate"},
		{"bad base url", func(c *Config) { c.Models[0].BaseURL = "ftp://x" }, "models[0].base_url"},
		{"bad policy", func(c *Config) { c.SystemPromptPolicy = "sometimes" }, "system_prompt_policy"},
		{"bad source", func(c *Config) { c.HistorySource = "memory" }, "history_source"},
		{"bad counter", func(c *Config) { c.TokenCounter = "tiktoken" }, "token_counter"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"negative max tokens", func(c *Config) { c.MaxTokens = -1 }, "max_tokens"},
		{"timeout range", func(c *Config) { c.Network.TimeoutSecs = 0 }, "network.timeout_secs"},
		{"retries range", func(c *Config) { c.Network.MaxRetries = 11 }, "network.max_retries"},
		{"bad color", func(c *Config) { c.UI.BgColor = "black" }, "ui.bg_color"},
		{"short color ok", func(c *Config) { c.UI.FgColor = "#fff" }, ""},
		{"fast frames", func(c *Config) { c.UI.FrameIntervalMS = 1 }, "ui.frame_interval_ms"},
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
			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateErrors_Error(t *testing.T) {
	assert.Equal(t, "no validation errors", ValidateErrors{}.Error())
	errs := ValidateErrors{{Field: "a", Message: "x"}, {Field: "b", Message: "y"}}
	assert.Equal(t, "a: x; b: y", errs.Error())
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

func TestSaveAndLoadTOML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Models[1].APIKey = "sk-reasoner"
	cfg.Model = "deepseek-reasoner"
	cfg.Streaming = false
	cfg.UI.CodeStyle = "dracula"
	require.NoError(t, SaveTOML(cfg, path))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.Equal(t, "sk-reasoner", loaded.ActiveModel().APIKey)
}

func TestLoadFromPath_PartialFileGetsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
model = "local"
system_prompt = ""
system_prompt_policy = "omit_empty"

[[models]]
name = "local"
base_url = "http://127.0.0.1:8080/v1"
`), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"local"}, cfg.ModelNames())
	assert.Equal(t, "", cfg.SystemPrompt)
	assert.Equal(t, model.OmitEmpty, cfg.Policy())
	assert.Equal(t, "#1a1a1a", cfg.UI.BgColor)
	assert.Equal(t, 60, cfg.Network.TimeoutSecs)
}

func TestLoadFromPath_OriginalJSONLayout(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "available_models": [{"name": "deepseek-chat", "api_key": "sk-1", "base_url": "https://api.deepseek.com/v1"}],
  "model": "deepseek-chat",
  "streaming": false,
  "system_prompt": "be brief",
  "kaomojis_list": ["(o_o)"]
}`), 0600))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.False(t, cfg.Streaming)
	assert.Equal(t, "be brief", cfg.SystemPrompt)
	assert.Equal(t, "sk-1", cfg.ActiveModel().APIKey)
	assert.Equal(t, []string{"(o_o)"}, cfg.UI.Kaomojis)
}

func TestReadFile_IgnoresEnvironment(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
model = "local"

[[models]]
name = "local"
base_url = "http://127.0.0.1:8080/v1"
`), 0600))
	t.Setenv(EnvAPIKey, "sk-from-env")
	t.Setenv(EnvModel, "other")

	cfg, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Model)
	assert.Equal(t, []string{"local"}, cfg.ModelNames())
	assert.Empty(t, cfg.ActiveModel().APIKey)

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "other", loaded.Model)
	assert.Equal(t, "sk-from-env", loaded.ActiveModel().APIKey)
}

func TestLoadFromPath_Invalid(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("model = [broken"), 0600))
	_, err := LoadFromPath(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.toml")
	require.NoError(t, os.WriteFile(invalid, []byte(`token_counter = "bogus"`), 0600))
	_, err = LoadFromPath(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token_counter")
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvConfig, filepath.Join(t.TempDir(), "none.toml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Model, cfg.Model)
}

func TestSave_UsesConfigPath(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "emochat.json")
	t.Setenv(EnvConfig, path)

	cfg := Default()
	cfg.SystemPrompt = "saved"
	require.NoError(t, Save(cfg))

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "saved", loaded.SystemPrompt)
}

// =============================================================================
// ENVIRONMENT & MODEL SELECTION
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvModel, "deepseek-reasoner")
	t.Setenv(EnvAPIKey, " sk-env ")
	t.Setenv(EnvBaseURL, "https://proxy.example/v1")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	active := cfg.ActiveModel()
	assert.Equal(t, "deepseek-reasoner", active.Name)
	assert.Equal(t, "sk-env", active.APIKey)
	assert.Equal(t, "https://proxy.example/v1", active.BaseURL)
	assert.Equal(t, "", cfg.Models[0].APIKey, "other models untouched")
}

func TestApplyEnvOverrides_UnknownModelAdded(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvModel, "gpt-4o")

	cfg := Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Contains(t, cfg.ModelNames(), "gpt-4o")
	assert.NoError(t, cfg.Validate())
}

func TestSetModelAndNextModel(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.SetModel("deepseek-reasoner"))
	assert.Error(t, cfg.SetModel("nope"))
	assert.Equal(t, "deepseek-reasoner", cfg.Model)

	assert.Equal(t, "deepseek-chat", cfg.NextModel())
	assert.Equal(t, "deepseek-reasoner", cfg.NextModel())

	assert.Equal(t, ModelEntry{Name: "ghost"}, (&Config{Model: "ghost"}).ActiveModel())
}

// =============================================================================
// GET / SET / CLONE
// =============================================================================

// TestConfig_GetSet tests dotted key access.
func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	v, err := cfg.Get("ui.code_style")
	require.NoError(t, err)
	assert.Equal(t, "monokai", v)

	require.NoError(t, cfg.Set("streaming", "false"))
	assert.False(t, cfg.Streaming)
	require.NoError(t, cfg.Set("network.max_retries", "5"))
	assert.Equal(t, 5, cfg.Network.MaxRetries)
	require.NoError(t, cfg.Set("ui.frame_interval_ms", 120))
	assert.Equal(t, 120, cfg.UI.FrameIntervalMS)
	require.NoError(t, cfg.Set("ui.loading_frames", "a, b"))
	assert.Equal(t, []string{"a", "b"}, cfg.UI.LoadingFrames)

	assert.Error(t, cfg.Set("network.max_retries", "many"))
	assert.Error(t, cfg.Set("streaming", "maybe"))
	_, err = cfg.Get("ui.nope")
	assert.Error(t, err)
	_, err = cfg.Get("model.name")
	assert.Error(t, err)
	_, err = cfg.Get("")
	assert.Error(t, err)

	for _, key := range Keys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("Get(%q) failed: %v", key, err)
		}
	}
}

// TestConfig_Clone tests deep copying.
func TestConfig_Clone(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Models[0].APIKey = "changed"
	clone.UI.Kaomojis[0] = "changed"

	assert.Equal(t, "", cfg.Models[0].APIKey)
	assert.NotEqual(t, "changed", cfg.UI.Kaomojis[0])
}

func TestConfig_StringRedactsKeys(t *testing.T) {
	cfg := Default()
	cfg.Models[0].APIKey = "sk-supersecretvalue1234"
	s := cfg.String()
	assert.NotContains(t, s, "supersecret")
	assert.Contains(t, s, "sk-s...1234")
	assert.True(t, strings.Contains(s, `model = "deepseek-chat"`))
}

func TestDataPaths(t *testing.T) {
	cfg := Default()
	cfg.DataDir = filepath.Join("tmp", "emo")

	dir, err := cfg.LogDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("tmp", "emo", "logs"), dir)

	db, err := cfg.TranscriptDB()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("tmp", "emo", "transcripts.db"), db)
}
