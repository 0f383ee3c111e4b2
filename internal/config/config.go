// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/emochat/internal/logging"
	"github.com/jeranaias/emochat/internal/model"
	"github.com/jeranaias/emochat/internal/render"
	"github.com/jeranaias/emochat/internal/telemetry"
	"github.com/jeranaias/emochat/internal/util"
)

// Environment variables read by ApplyEnvOverrides and Load.
const (
	EnvConfig  = "EMOCHAT_CONFIG"
	EnvModel   = "EMOCHAT_MODEL"
	EnvAPIKey  = "EMOCHAT_API_KEY"
	EnvBaseURL = "EMOCHAT_BASE_URL"
)

// DefaultSystemPrompt is the prompt sent when none is configured.
const DefaultSystemPrompt = "You are pikachu! my assistant!. Respond in raw text without formatting symbols like ** or ## " +
	"(THE ONLY EXCEPTION IS CODE BLOCKS OR COMMANDS. YOU CAN USE CODEBLOCKS FOR SCRIPTS AND WRAP COMMANDS IN CODE BLOCKS). " +
	"You may use the ⚡ emoji"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete emochat configuration.
type Config struct {
	// Model is the name of the selected entry in Models.
	Model string `toml:"model" json:"model"`

	// Streaming requests server-sent events instead of one response.
	Streaming bool `toml:"streaming" json:"streaming"`

	SystemPrompt       string `toml:"system_prompt" json:"system_prompt"`
	SystemPromptPolicy string `toml:"system_prompt_policy" json:"system_prompt_policy"`

	// HistorySource is "structured" or "transcript".
	HistorySource string `toml:"history_source" json:"history_source"`

	// TokenCounter selects the telemetry.Counter strategy.
	TokenCounter string `toml:"token_counter" json:"token_counter"`

	MaxTokens int    `toml:"max_tokens" json:"max_tokens"`
	LogLevel  string `toml:"log_level" json:"log_level"`

	// DataDir holds conversations, transcripts, usage and logs.
	// Empty means the config directory.
	DataDir string `toml:"data_dir" json:"data_dir"`

	Models  []ModelEntry  `toml:"models" json:"available_models"`
	UI      UIConfig      `toml:"ui" json:"ui"`
	Network NetworkConfig `toml:"network" json:"network"`
}

// ModelEntry is one selectable model with its own credentials.
type ModelEntry struct {
	Name    string `toml:"name" json:"name"`
	APIKey  string `toml:"api_key" json:"api_key"`
	BaseURL string `toml:"base_url" json:"base_url"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	BgColor      string `toml:"bg_color" json:"bg_color"`
	FgColor      string `toml:"fg_color" json:"fg_color"`
	CodeBg       string `toml:"code_bg" json:"code_bg"`
	CodeFg       string `toml:"code_fg" json:"code_fg"`
	KaomojiColor string `toml:"kaomoji_color" json:"kaomoji_color"`
	LoadingColor string `toml:"loading_color" json:"loading_color"`
	BorderColor  string `toml:"border_color" json:"border_color"`

	// CodeStyle is a chroma style name.
	CodeStyle string `toml:"code_style" json:"code_style"`

	HideScrollbars bool     `toml:"hide_scrollbars" json:"hide_scrollbars"`
	LoadingFrames  []string `toml:"loading_frames" json:"loading_frames_list"`
	Kaomojis       []string `toml:"kaomojis" json:"kaomojis_list"`

	FrameIntervalMS int `toml:"frame_interval_ms" json:"frame_interval_ms"`
	IdleIntervalMS  int `toml:"idle_interval_ms" json:"idle_interval_ms"`
}

// NetworkConfig contains HTTP client settings.
type NetworkConfig struct {
	TimeoutSecs       int `toml:"timeout_secs" json:"timeout_secs"`
	MaxRetries        int `toml:"max_retries" json:"max_retries"`
	RequestsPerMinute int `toml:"requests_per_minute" json:"requests_per_minute"`
	PingIntervalSecs  int `toml:"ping_interval_secs" json:"ping_interval_secs"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Model:              "deepseek-chat",
		Streaming:          true,
		SystemPrompt:       DefaultSystemPrompt,
		SystemPromptPolicy: string(model.IncludeEmpty),
		HistorySource:      string(model.SourceStructured),
		TokenCounter:       telemetry.CounterOriginal,
		MaxTokens:          8096,
		LogLevel:           "info",

		Models: []ModelEntry{
			{Name: "deepseek-chat", BaseURL: "https://api.deepseek.com/v1"},
			{Name: "deepseek-reasoner", BaseURL: "https://api.deepseek.com/v1"},
		},

		UI: UIConfig{
			BgColor:        "#1a1a1a",
			FgColor:        "#e0e0e0",
			CodeBg:         "#2d2d2d",
			CodeFg:         "#e0e0e0",
			KaomojiColor:   "#FF00FF",
			LoadingColor:   "#8BE9FD",
			BorderColor:    "#FFFF00",
			CodeStyle:      render.DefaultStyle,
			HideScrollbars: true,
			LoadingFrames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
			Kaomojis: []string{
				"⚡️^(˘ω˘)^ ==-------- ᶻ 𝗓 𐰁   !!",
				"⚡️^(ᵕωᵕ)^ --==------ ᶻ 𝗓 𐰁   !!",
				"⚡️^(˘ᵕ˘)^ ----==---- ᶻ 𝗓 𐰁   !!",
				"⚡️^(^ω^)^ ------==-- ᶻ 𝗓 𐰁   !!",
				"⚡️\\(^ω^)/ --------== ᶻ 𝗓 𐰁   !!",
			},
			FrameIntervalMS: 200,
			IdleIntervalMS:  500,
		},

		Network: NetworkConfig{
			TimeoutSecs:       60,
			MaxRetries:        3,
			RequestsPerMinute: 30,
			PingIntervalSecs:  5,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the emochat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".emochat"), nil
}

// ConfigPath returns the config file path, honouring EMOCHAT_CONFIG.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfig)); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ResolveDataDir returns DataDir, or the config directory when unset.
func (c *Config) ResolveDataDir() (string, error) {
	if c.DataDir != "" {
		return c.DataDir, nil
	}
	return ConfigDir()
}

// dataSubdir joins name under the resolved data directory.
func (c *Config) dataSubdir(name string) (string, error) {
	dir, err := c.ResolveDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// LogDir is where logging writes emochat.log.
func (c *Config) LogDir() (string, error) { return c.dataSubdir("logs") }

// ConversationsDir holds the JSON conversation store.
func (c *Config) ConversationsDir() (string, error) { return c.dataSubdir("conversations") }

// UsageDir holds per-session usage files.
func (c *Config) UsageDir() (string, error) { return c.dataSubdir("usage") }

// TranscriptDB is the SQLite transcript database path.
func (c *Config) TranscriptDB() (string, error) { return c.dataSubdir("transcripts.db") }

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the config file from ConfigPath.
//
// A missing file yields the defaults. Environment overrides are applied
// last, then the result is validated.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path with full validation.
// Files ending in .json are read as JSON, everything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ReadFile decodes path over the defaults without environment overrides
// or validation. Editors use it so a save writes back only what the file
// held.
func ReadFile(path string) (*Config, error) {
	cfg := Default()
	cfg.resetLists()

	if strings.HasSuffix(strings.ToLower(path), ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	cfg.SetDefaults()
	return cfg, nil
}

// resetLists clears list defaults so a decoded file replaces them instead
// of merging into their elements. SetDefaults restores any left empty.
func (c *Config) resetLists() {
	c.Models = nil
	c.UI.LoadingFrames = nil
	c.UI.Kaomojis = nil
}

// LoadTOML decodes a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	var flat flatUI
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	flat.apply(&cfg.UI)
	return nil
}

// flatUI is the older JSON layout that kept UI keys at the top level.
type flatUI struct {
	BgColor        string   `json:"bg_color"`
	FgColor        string   `json:"fg_color"`
	CodeBg         string   `json:"code_bg"`
	CodeFg         string   `json:"code_fg"`
	KaomojiColor   string   `json:"kaomoji_color"`
	LoadingColor   string   `json:"loading_color"`
	GreenBorder    string   `json:"green_border"`
	LoadingFrames  []string `json:"loading_frames_list"`
	Kaomojis       []string `json:"kaomojis_list"`
	HideScrollbars *bool    `json:"hide_scrollbars"`
}

func (f flatUI) apply(ui *UIConfig) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&ui.BgColor, f.BgColor)
	set(&ui.FgColor, f.FgColor)
	set(&ui.CodeBg, f.CodeBg)
	set(&ui.CodeFg, f.CodeFg)
	set(&ui.KaomojiColor, f.KaomojiColor)
	set(&ui.LoadingColor, f.LoadingColor)
	set(&ui.BorderColor, f.GreenBorder)
	if len(f.LoadingFrames) > 0 {
		ui.LoadingFrames = f.LoadingFrames
	}
	if len(f.Kaomojis) > 0 {
		ui.Kaomojis = f.Kaomojis
	}
	if f.HideScrollbars != nil {
		ui.HideScrollbars = *f.HideScrollbars
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to ConfigPath.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return SaveJSON(cfg, path)
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# emochat configuration file\n")
	buf.WriteString("# API keys are stored in plain text; keep this file private.\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON saves the configuration to a JSON file with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if len(c.Models) == 0 {
		errs = append(errs, ValidationError{Field: "models", Message: "at least one model is required"})
	}
	seen := make(map[string]bool)
	for i, m := range c.Models {
		field := fmt.Sprintf("models[%d]", i)
		if strings.TrimSpace(m.Name) == "" {
			errs = append(errs, ValidationError{Field: field + ".name", Message: "must not be empty"})
			continue
		}
		if seen[m.Name] {
			errs = append(errs, ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate model '%s'", m.Name)})
		}
		seen[m.Name] = true
		if m.BaseURL != "" {
			if u, err := url.Parse(m.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				errs = append(errs, ValidationError{Field: field + ".base_url", Message: fmt.Sprintf("invalid URL '%s'", m.BaseURL)})
			}
		}
	}

	if len(c.Models) > 0 && !seen[c.Model] {
		errs = append(errs, ValidationError{
			Field:   "model",
			Message: fmt.Sprintf("'%s' is not one of: %s", c.Model, strings.Join(c.ModelNames(), ", ")),
		})
	}

	if _, ok := model.ParseSystemPromptPolicy(c.SystemPromptPolicy); !ok {
		errs = append(errs, ValidationError{
			Field:   "system_prompt_policy",
			Message: fmt.Sprintf("invalid policy '%s', must be one of: include_empty, omit_empty", c.SystemPromptPolicy),
		})
	}
	if _, ok := model.ParseHistorySource(c.HistorySource); !ok {
		errs = append(errs, ValidationError{
			Field:   "history_source",
			Message: fmt.Sprintf("invalid source '%s', must be one of: structured, transcript", c.HistorySource),
		})
	}
	if _, err := telemetry.NewCounter(c.TokenCounter); err != nil {
		errs = append(errs, ValidationError{Field: "token_counter", Message: err.Error()})
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, ValidationError{Field: "log_level", Message: err.Error()})
	}

	if c.MaxTokens < 0 {
		errs = append(errs, ValidationError{Field: "max_tokens", Message: "must not be negative"})
	}

	if c.Network.TimeoutSecs < 1 || c.Network.TimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "network.timeout_secs",
			Message: fmt.Sprintf("must be 1-600, got %d", c.Network.TimeoutSecs),
		})
	}
	if c.Network.MaxRetries < 1 || c.Network.MaxRetries > 10 {
		errs = append(errs, ValidationError{
			Field:   "network.max_retries",
			Message: fmt.Sprintf("must be 1-10, got %d", c.Network.MaxRetries),
		})
	}
	if c.Network.RequestsPerMinute < 0 {
		errs = append(errs, ValidationError{Field: "network.requests_per_minute", Message: "must not be negative"})
	}
	if c.Network.PingIntervalSecs < 0 {
		errs = append(errs, ValidationError{Field: "network.ping_interval_secs", Message: "must not be negative"})
	}

	colors := map[string]string{
		"ui.bg_color":      c.UI.BgColor,
		"ui.fg_color":      c.UI.FgColor,
		"ui.code_bg":       c.UI.CodeBg,
		"ui.code_fg":       c.UI.CodeFg,
		"ui.kaomoji_color": c.UI.KaomojiColor,
		"ui.loading_color": c.UI.LoadingColor,
		"ui.border_color":  c.UI.BorderColor,
	}
	for _, field := range sortedKeys(colors) {
		if !isHexColor(colors[field]) {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("invalid color '%s', want #rgb or #rrggbb", colors[field])})
		}
	}
	if c.UI.FrameIntervalMS < 16 {
		errs = append(errs, ValidationError{Field: "ui.frame_interval_ms", Message: "must be at least 16"})
	}
	if c.UI.IdleIntervalMS < 16 {
		errs = append(errs, ValidationError{Field: "ui.idle_interval_ms", Message: "must be at least 16"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func isHexColor(s string) bool {
	if !strings.HasPrefix(s, "#") || (len(s) != 4 && len(s) != 7) {
		return false
	}
	_, err := strconv.ParseUint(s[1:], 16, 32)
	return err == nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetDefaults fills zero values left by a partial config file.
func (c *Config) SetDefaults() {
	defaults := Default()

	if len(c.Models) == 0 {
		c.Models = defaults.Models
	}
	if c.Model == "" {
		c.Model = c.Models[0].Name
	}
	if c.SystemPromptPolicy == "" {
		c.SystemPromptPolicy = defaults.SystemPromptPolicy
	}
	if c.HistorySource == "" {
		c.HistorySource = defaults.HistorySource
	}
	if c.TokenCounter == "" {
		c.TokenCounter = defaults.TokenCounter
	}
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}

	if c.UI.BgColor == "" {
		c.UI.BgColor = defaults.UI.BgColor
	}
	if c.UI.FgColor == "" {
		c.UI.FgColor = defaults.UI.FgColor
	}
	if c.UI.CodeBg == "" {
		c.UI.CodeBg = defaults.UI.CodeBg
	}
	if c.UI.CodeFg == "" {
		c.UI.CodeFg = defaults.UI.CodeFg
	}
	if c.UI.KaomojiColor == "" {
		c.UI.KaomojiColor = defaults.UI.KaomojiColor
	}
	if c.UI.LoadingColor == "" {
		c.UI.LoadingColor = defaults.UI.LoadingColor
	}
	if c.UI.BorderColor == "" {
		c.UI.BorderColor = defaults.UI.BorderColor
	}
	if c.UI.CodeStyle == "" {
		c.UI.CodeStyle = defaults.UI.CodeStyle
	}
	if len(c.UI.LoadingFrames) == 0 {
		c.UI.LoadingFrames = defaults.UI.LoadingFrames
	}
	if len(c.UI.Kaomojis) == 0 {
		c.UI.Kaomojis = defaults.UI.Kaomojis
	}
	if c.UI.FrameIntervalMS == 0 {
		c.UI.FrameIntervalMS = defaults.UI.FrameIntervalMS
	}
	if c.UI.IdleIntervalMS == 0 {
		c.UI.IdleIntervalMS = defaults.UI.IdleIntervalMS
	}

	if c.Network.TimeoutSecs == 0 {
		c.Network.TimeoutSecs = defaults.Network.TimeoutSecs
	}
	if c.Network.MaxRetries == 0 {
		c.Network.MaxRetries = defaults.Network.MaxRetries
	}
	if c.Network.PingIntervalSecs == 0 {
		c.Network.PingIntervalSecs = defaults.Network.PingIntervalSecs
	}
}

// ApplyEnvOverrides applies EMOCHAT_* environment variables.
//
// EMOCHAT_MODEL selects a model, adding an entry when unknown.
// EMOCHAT_API_KEY and EMOCHAT_BASE_URL apply to the selected model.
func (c *Config) ApplyEnvOverrides() {
	if name := strings.TrimSpace(os.Getenv(EnvModel)); name != "" {
		if c.entry(name) == nil {
			c.Models = append(c.Models, ModelEntry{Name: name})
		}
		c.Model = name
	}

	key := os.Getenv(EnvAPIKey)
	base := os.Getenv(EnvBaseURL)
	if key == "" && base == "" {
		return
	}
	e := c.entry(c.Model)
	if e == nil {
		if c.Model == "" {
			return
		}
		c.Models = append(c.Models, ModelEntry{Name: c.Model})
		e = &c.Models[len(c.Models)-1]
	}
	if key != "" {
		e.APIKey = strings.TrimSpace(key)
	}
	if base != "" {
		e.BaseURL = strings.TrimSpace(base)
	}
}

// =============================================================================
// MODEL SELECTION
// =============================================================================

func (c *Config) entry(name string) *ModelEntry {
	for i := range c.Models {
		if c.Models[i].Name == name {
			return &c.Models[i]
		}
	}
	return nil
}

// ModelNames returns the configured model names in order.
func (c *Config) ModelNames() []string {
	names := make([]string, 0, len(c.Models))
	for _, m := range c.Models {
		names = append(names, m.Name)
	}
	return names
}

// ActiveModel returns the entry for the selected model.
// An unknown selection yields an entry with only Name set.
func (c *Config) ActiveModel() ModelEntry {
	if e := c.entry(c.Model); e != nil {
		return *e
	}
	return ModelEntry{Name: c.Model}
}

// SetModel selects a configured model by name.
func (c *Config) SetModel(name string) error {
	if c.entry(name) == nil {
		return fmt.Errorf("unknown model '%s', must be one of: %s", name, strings.Join(c.ModelNames(), ", "))
	}
	c.Model = name
	return nil
}

// NextModel selects the model after the current one, wrapping around,
// and returns its name.
func (c *Config) NextModel() string {
	if len(c.Models) == 0 {
		return c.Model
	}
	next := 0
	for i, m := range c.Models {
		if m.Name == c.Model {
			next = (i + 1) % len(c.Models)
			break
		}
	}
	c.Model = c.Models[next].Name
	return c.Model
}

// Policy returns the parsed system prompt policy.
func (c *Config) Policy() model.SystemPromptPolicy {
	p, _ := model.ParseSystemPromptPolicy(c.SystemPromptPolicy)
	return p
}

// Source returns the parsed history source.
func (c *Config) Source() model.HistorySource {
	s, _ := model.ParseHistorySource(c.HistorySource)
	return s
}

// =============================================================================
// GET / SET BY KEY
// =============================================================================

// Get returns the value at a dotted key such as "ui.code_style".
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value at a dotted key. String values are parsed for
// numeric and boolean fields.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts snake_case to the Go field name, e.g.
// "frame_interval_ms" to "FrameIntervalMs".
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strings.TrimSpace(strVal), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strings.TrimSpace(strVal))
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(boolVal)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				items := strings.Split(strVal, ",")
				for i := range items {
					items[i] = strings.TrimSpace(items[i])
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if val.IsValid() && val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.IsValid() && val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys lists the scalar keys accepted by Get and Set.
func Keys() []string {
	return []string{
		"model",
		"streaming",
		"system_prompt",
		"system_prompt_policy",
		"history_source",
		"token_counter",
		"max_tokens",
		"log_level",
		"data_dir",
		"ui.bg_color",
		"ui.fg_color",
		"ui.code_bg",
		"ui.code_fg",
		"ui.kaomoji_color",
		"ui.loading_color",
		"ui.border_color",
		"ui.code_style",
		"ui.hide_scrollbars",
		"ui.loading_frames",
		"ui.kaomojis",
		"ui.frame_interval_ms",
		"ui.idle_interval_ms",
		"network.timeout_secs",
		"network.max_retries",
		"network.requests_per_minute",
		"network.ping_interval_secs",
	}
}

// =============================================================================
// COPY / DISPLAY
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Models = append([]ModelEntry(nil), c.Models...)
	clone.UI.LoadingFrames = append([]string(nil), c.UI.LoadingFrames...)
	clone.UI.Kaomojis = append([]string(nil), c.UI.Kaomojis...)
	return &clone
}

// String returns the config as TOML with API keys redacted.
func (c *Config) String() string {
	safe := c.Clone()
	for i := range safe.Models {
		if safe.Models[i].APIKey != "" {
			safe.Models[i].APIKey = logging.RedactKey(safe.Models[i].APIKey)
		}
	}
	var buf bytes.Buffer
	_ = toml.NewEncoder(&buf).Encode(safe)
	return buf.String()
}
