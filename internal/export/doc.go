// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversations to files.
//
// # Supported Formats
//
//   - markdown: Human-readable, code fences kept
//   - json: The conversation store's own layout
//   - yaml: Readable structured form
//   - transcript: Turn-prefix text that `history import` reads back
//
// # Usage
//
//	exp, err := export.New("markdown", nil)
//	path, err := export.ExportToFile(conv, exp, export.DefaultOptions())
package export
