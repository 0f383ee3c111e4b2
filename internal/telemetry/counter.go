// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jeranaias/emochat/internal/model"
)

// Counter strategy names accepted by NewCounter and the token_counter
// config key.
const (
	CounterOriginal = "original"
	CounterWords    = "words"
	CounterChars4   = "chars4"
	CounterUsage    = "usage"
)

// =============================================================================
// TYPES
// =============================================================================

// Usage is the token usage reported by the provider, when it reports one.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// IsZero reports whether the provider reported nothing.
func (u *Usage) IsZero() bool {
	return u == nil || (u.PromptTokens == 0 && u.CompletionTokens == 0)
}

// TokenCount tracks input/output tokens.
type TokenCount struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// Total returns input plus output tokens.
func (c TokenCount) Total() int {
	return c.Input + c.Output
}

// Counter approximates the token cost of one request and its response.
// usage may be nil.
type Counter interface {
	Name() string
	Count(input []model.Message, output string, usage *Usage) TokenCount
}

// =============================================================================
// STRATEGIES
// =============================================================================

// WordCounter counts whitespace-separated words on both sides.
type WordCounter struct{}

func (WordCounter) Name() string { return CounterWords }

func (WordCounter) Count(input []model.Message, output string, _ *Usage) TokenCount {
	return TokenCount{Input: countMessages(input, words), Output: words(output)}
}

// CharCounter approximates one token per four characters on both sides.
type CharCounter struct{}

func (CharCounter) Name() string { return CounterChars4 }

func (CharCounter) Count(input []model.Message, output string, _ *Usage) TokenCount {
	return TokenCount{Input: countMessages(input, chars4), Output: chars4(output)}
}

// OriginalCounter counts input by words and output by characters/4.
type OriginalCounter struct{}

func (OriginalCounter) Name() string { return CounterOriginal }

func (OriginalCounter) Count(input []model.Message, output string, _ *Usage) TokenCount {
	return TokenCount{Input: countMessages(input, words), Output: chars4(output)}
}

// UsageCounter trusts provider-reported usage and falls back to another
// strategy when the provider reported none.
type UsageCounter struct {
	Fallback Counter
}

func (UsageCounter) Name() string { return CounterUsage }

func (c UsageCounter) Count(input []model.Message, output string, usage *Usage) TokenCount {
	if !usage.IsZero() {
		return TokenCount{Input: usage.PromptTokens, Output: usage.CompletionTokens}
	}
	fallback := c.Fallback
	if fallback == nil {
		fallback = CharCounter{}
	}
	return fallback.Count(input, output, nil)
}

// NewCounter returns the strategy with the given name. The empty string
// selects the original strategy.
func NewCounter(name string) (Counter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CounterOriginal:
		return OriginalCounter{}, nil
	case CounterWords:
		return WordCounter{}, nil
	case CounterChars4:
		return CharCounter{}, nil
	case CounterUsage:
		return UsageCounter{Fallback: CharCounter{}}, nil
	default:
		return nil, fmt.Errorf("unknown token counter %q", name)
	}
}

// CounterNames lists the accepted strategy names.
func CounterNames() []string {
	return []string{CounterOriginal, CounterWords, CounterChars4, CounterUsage}
}

// =============================================================================
// HELPERS
// =============================================================================

func words(s string) int {
	return len(strings.Fields(s))
}

func chars4(s string) int {
	return utf8.RuneCountInString(s) / 4
}

func countMessages(msgs []model.Message, count func(string) int) int {
	total := 0
	for _, m := range msgs {
		total += count(m.Content)
	}
	return total
}
