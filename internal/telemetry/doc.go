// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry provides token counting and usage tracking.
//
// Token counts are approximate. A Counter strategy is chosen by name from
// the token_counter config key:
//
//   - original: input by words, output by characters/4
//   - words: words on both sides
//   - chars4: characters/4 on both sides
//   - usage: provider-reported usage, characters/4 when none is reported
//
// # Usage
//
//	counter, _ := telemetry.NewCounter(cfg.TokenCounter)
//	n := counter.Count(history, response, usage)
//	tracker.RecordQuery(telemetry.QueryUsage{InputTokens: n.Input, OutputTokens: n.Output})
//
// # Privacy
//
// Usage data is local-only. Only the first 100 characters of each prompt
// are stored.
package telemetry
