// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// DefaultContextWindow is assumed for models missing from the registry.
const DefaultContextWindow = 64000

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo describes a known chat-completion model.
type ModelInfo struct {
	// ID is the model identifier used in API calls
	ID string `json:"id"`

	// Name is the human-readable display name
	Name string `json:"name"`

	// Provider is the hosting service
	Provider string `json:"provider"`

	// MaxTokens is the context window size
	MaxTokens int `json:"max_tokens"`
}

// Models is the registry of well-known OpenAI-compatible models.
var Models = map[string]ModelInfo{
	"deepseek-chat": {
		ID:        "deepseek-chat",
		Name:      "DeepSeek Chat",
		Provider:  "DeepSeek",
		MaxTokens: 64000,
	},
	"deepseek-reasoner": {
		ID:        "deepseek-reasoner",
		Name:      "DeepSeek Reasoner",
		Provider:  "DeepSeek",
		MaxTokens: 64000,
	},
	"gpt-4o": {
		ID:        "gpt-4o",
		Name:      "GPT-4o",
		Provider:  "OpenAI",
		MaxTokens: 128000,
	},
	"gpt-4o-mini": {
		ID:        "gpt-4o-mini",
		Name:      "GPT-4o Mini",
		Provider:  "OpenAI",
		MaxTokens: 128000,
	},
	"gpt-3.5-turbo": {
		ID:        "gpt-3.5-turbo",
		Name:      "GPT-3.5 Turbo",
		Provider:  "OpenAI",
		MaxTokens: 16385,
	},
}

// ContextString returns a formatted context window string.
func (m ModelInfo) ContextString() string {
	if m.MaxTokens >= 1000000 {
		return fmt.Sprintf("%.1fM tokens", float64(m.MaxTokens)/1000000)
	}
	if m.MaxTokens >= 1000 {
		return fmt.Sprintf("%dK tokens", m.MaxTokens/1000)
	}
	return fmt.Sprintf("%d tokens", m.MaxTokens)
}

// =============================================================================
// MODEL LOOKUP FUNCTIONS
// =============================================================================

// GetModelInfo looks up a model by registry key, then by case-insensitive
// ID prefix so dated variants like "gpt-4o-2024-08-06" still resolve.
func GetModelInfo(name string) (ModelInfo, bool) {
	if info, ok := Models[name]; ok {
		return info, true
	}

	lower := strings.ToLower(name)
	best := ""
	for key := range Models {
		if strings.HasPrefix(lower, key) && len(key) > len(best) {
			best = key
		}
	}
	if best != "" {
		return Models[best], true
	}
	return ModelInfo{}, false
}

// ContextWindow returns the context window for a model, or
// DefaultContextWindow when it is unknown.
func ContextWindow(name string) int {
	if info, ok := GetModelInfo(name); ok && info.MaxTokens > 0 {
		return info.MaxTokens
	}
	return DefaultContextWindow
}
