// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"github.com/jeranaias/emochat/internal/config"
	"github.com/jeranaias/emochat/internal/telemetry"
)

// OptionsFromConfig maps config onto the request settings of a session.
// Stores and logger are left for the caller to fill in. An unknown token
// counter name falls back to the original strategy.
func OptionsFromConfig(cfg *config.Config) Options {
	counter, err := telemetry.NewCounter(cfg.TokenCounter)
	if err != nil {
		counter = telemetry.OriginalCounter{}
	}
	return Options{
		Model:        cfg.Model,
		Streaming:    cfg.Streaming,
		SystemPrompt: cfg.SystemPrompt,
		Policy:       cfg.Policy(),
		Source:       cfg.Source(),
		Counter:      counter,
	}
}
