// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud is the HTTP client for OpenAI-compatible chat endpoints.
//
// # Key Types
//
//   - Client: one endpoint (base URL, API key, model) with retry and rate limiting
//   - ChatMessage: role/content pair in the wire format
//   - SSEReader: Server-Sent Events parser for streamed completions
//   - StreamError: failure after partial content was delivered
//
// # Usage
//
//	client := cloud.NewClient(apiKey, "https://api.deepseek.com/v1")
//	stats, err := client.ChatStream(ctx, msgs, func(c cloud.StreamChunk) {
//	    splitter.Feed(c.GetContent())
//	})
//
// API keys are only logged in redacted form.
package cloud
