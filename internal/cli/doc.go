// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli is the emochat command tree.
//
// # Commands
//
//   - (none), tui: full-screen chat
//   - ask: one question, answer on stdout
//   - chat: line-mode chat with input history
//   - history: list, show, delete and import saved conversations
//   - config: show, get, set, export and import the configuration
//   - export: write a saved conversation as markdown, json, yaml or text
//   - ping: latency to the configured API endpoints
//   - version: build information
//
// Every command accepts --config, --model and --verbose. Commands return
// errors; main prints them and exits non-zero.
package cli
