// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/emochat/internal/cloud"
	"github.com/jeranaias/emochat/internal/config"
	"github.com/jeranaias/emochat/internal/logging"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// APPLICATION STATE
// =============================================================================

// app carries global flags and what PersistentPreRunE builds from them.
type app struct {
	// Global flags
	configPath string
	model      string
	verbose    bool

	cfg     *config.Config
	cfgPath string
	logger  *zap.Logger

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// newClient builds the API client for the selected model. Tests
	// point it at an httptest server.
	newClient func(cfg *config.Config, logger *zap.Logger) *cloud.Client
}

func newApp() *app {
	return &app{
		in:        os.Stdin,
		out:       os.Stdout,
		errOut:    os.Stderr,
		newClient: newClient,
	}
}

// Execute runs the command tree on os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(newApp())
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "emochat",
		Short: "Terminal chat client for OpenAI-compatible APIs",
		Long: `emochat talks to a hosted chat-completion API.

Responses stream into a transcript where fenced code blocks are split out
and highlighted. Run without arguments to start the full-screen chat.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, GitCommit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI()
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Config file (default ~/.emochat/config.toml)")
	root.PersistentFlags().StringVarP(&a.model, "model", "m", "", "Model to use (overrides config)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newTUICommand(a),
		newAskCommand(a),
		newChatCommand(a),
		newHistoryCommand(a),
		newConfigCommand(a),
		newExportCommand(a),
		newPingCommand(a),
		newVersionCommand(a),
	)
	return root
}

// =============================================================================
// SETUP
// =============================================================================

// setup loads the config, applies --model and builds the logger.
func (a *app) setup() error {
	path := strings.TrimSpace(a.configPath)
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}
	a.cfgPath = path

	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}
	if a.model != "" {
		if err := cfg.SetModel(a.model); err != nil {
			return err
		}
	}
	a.cfg = cfg

	logDir, err := cfg.LogDir()
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{Dir: logDir, Level: cfg.LogLevel, Verbose: a.verbose})
	if err != nil {
		return err
	}
	a.logger = logger
	a.logger.Debug("config loaded",
		zap.String("path", path),
		zap.String("model", cfg.Model),
		zap.Bool("streaming", cfg.Streaming))
	return nil
}

// loadConfig reads path, or returns defaults when it does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := config.Default()
		cfg.ApplyEnvOverrides()
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return config.LoadFromPath(path)
}

// readConfigFile reads path for editing: no environment overrides and
// no --model. A missing file reads as the defaults.
func readConfigFile(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := config.Default()
		cfg.SetDefaults()
		return cfg, nil
	}
	return config.ReadFile(path)
}

// saveConfig writes cfg to path as JSON or TOML by extension.
func saveConfig(cfg *config.Config, path string) error {
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}

// =============================================================================
// CLIENT FACTORY
// =============================================================================

// newClient builds the API client for the model selected in cfg.
func newClient(cfg *config.Config, logger *zap.Logger) *cloud.Client {
	entry := cfg.ActiveModel()
	c := cloud.NewClient(entry.APIKey, entry.BaseURL).
		WithMaxTokens(cfg.MaxTokens).
		WithLogger(logger)
	if cfg.Network.TimeoutSecs > 0 {
		c = c.WithTimeout(time.Duration(cfg.Network.TimeoutSecs) * time.Second)
	}
	if cfg.Network.MaxRetries > 0 {
		c = c.WithMaxRetries(cfg.Network.MaxRetries)
	}
	if cfg.Network.RequestsPerMinute > 0 {
		c = c.WithRateLimit(cfg.Network.RequestsPerMinute)
	}
	c.SetModel(entry.Name)
	return c
}

// client builds the client for the current selection, refusing models
// without an API key.
func (a *app) client() (*cloud.Client, error) {
	c := a.newClient(a.cfg, a.logger)
	if !c.IsConfigured() {
		return nil, fmt.Errorf("no API key for model %q: set it in %s or %s", a.cfg.Model, a.cfgPath, config.EnvAPIKey)
	}
	return c, nil
}
