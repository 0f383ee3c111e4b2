// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for emochat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ModelEntry: One selectable model with its API key and base URL
//   - UIConfig: Colors, code style, animation frames
//   - Watcher: Reloads the config file on change
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (EMOCHAT_MODEL, EMOCHAT_API_KEY, EMOCHAT_BASE_URL)
//   - $EMOCHAT_CONFIG or ~/.emochat/config.toml (.json files are read as JSON)
//   - Built-in defaults
//
// # Sharing
//
// Export and Import move a config between machines as base64 JSON,
// optionally sealed with a passphrase:
//
//	s, err := config.Export(cfg, "")
//	cfg, err := config.Import(s, "")
package config
