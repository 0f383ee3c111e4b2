// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual UI components for the emochat TUI.
//
//   - CodeBlock and RenderSegments draw the display transcript, with chroma
//     colors for code segments
//   - StatusBar shows the model, request state, token summary and ping
//   - Indicator animates the loading frames and idle kaomojis from config
package components
