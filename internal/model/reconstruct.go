// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"

	"github.com/jeranaias/emochat/internal/render"
)

// =============================================================================
// POLICIES
// =============================================================================

// SystemPromptPolicy decides whether a blank system prompt is sent.
type SystemPromptPolicy string

const (
	// IncludeEmpty always puts a system message first, even a blank one.
	IncludeEmpty SystemPromptPolicy = "include_empty"
	// OmitEmpty drops the system message when the prompt is blank.
	OmitEmpty SystemPromptPolicy = "omit_empty"
)

// ParseSystemPromptPolicy maps a config value to a policy.
// The empty string selects IncludeEmpty.
func ParseSystemPromptPolicy(s string) (SystemPromptPolicy, bool) {
	switch p := SystemPromptPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", IncludeEmpty:
		return IncludeEmpty, true
	case OmitEmpty:
		return OmitEmpty, true
	default:
		return IncludeEmpty, false
	}
}

// systemMessages returns the leading system message list for prompt.
func (p SystemPromptPolicy) systemMessages(prompt string) []Message {
	if p == OmitEmpty && strings.TrimSpace(prompt) == "" {
		return nil
	}
	return []Message{Msg(RoleSystem, prompt)}
}

// HistorySource selects where outgoing history is built from.
type HistorySource string

const (
	// SourceStructured builds history from the Conversation message log.
	SourceStructured HistorySource = "structured"
	// SourceTranscript re-parses the rendered transcript.
	SourceTranscript HistorySource = "transcript"
)

// ParseHistorySource maps a config value to a source.
// The empty string selects SourceStructured.
func ParseHistorySource(s string) (HistorySource, bool) {
	switch h := HistorySource(strings.ToLower(strings.TrimSpace(s))); h {
	case "", SourceStructured:
		return SourceStructured, true
	case SourceTranscript:
		return SourceTranscript, true
	default:
		return SourceStructured, false
	}
}

// =============================================================================
// RECONSTRUCTION
// =============================================================================

// Reconstruct rebuilds role-tagged history from a rendered transcript.
// The system message always comes first, even when systemPrompt is blank.
func Reconstruct(transcript, systemPrompt string) []Message {
	return ReconstructWithPolicy(transcript, systemPrompt, IncludeEmpty)
}

// ReconstructWithPolicy rebuilds history from a rendered transcript.
//
// Lines starting with ">: " open a user turn holding the rest of that line.
// Lines starting with "ERROR: " are dropped without closing anything. The
// first non-blank line after a user line opens an assistant turn, and every
// following line, blank or not, belongs to it until the next user line.
// Each turn is trimmed when flushed and turns that trim to nothing are
// dropped. No input is rejected.
func ReconstructWithPolicy(transcript, systemPrompt string, policy SystemPromptPolicy) []Message {
	history := policy.systemMessages(systemPrompt)
	if strings.TrimSpace(transcript) == "" {
		return history
	}

	var (
		open  Role
		lines []string
	)
	flush := func() {
		if open == "" {
			return
		}
		if content := strings.TrimSpace(strings.Join(lines, "\n")); content != "" {
			history = append(history, Msg(open, content))
		}
		open, lines = "", nil
	}
	start := func(role Role, line string) {
		open = role
		lines = append(lines[:0], line)
	}

	for _, line := range strings.Split(transcript, "\n") {
		switch {
		case strings.HasPrefix(line, render.UserPrefix):
			flush()
			start(RoleUser, line[len(render.UserPrefix):])

		case strings.HasPrefix(line, render.ErrorPrefix):
			// diagnostics never reach the model

		case open == RoleAssistant:
			lines = append(lines, line)

		case strings.TrimSpace(line) == "":
			// blank between turns

		default:
			// A user turn spans only its prefixed line.
			flush()
			start(RoleAssistant, line)
		}
	}
	flush()

	return history
}

// =============================================================================
// RENDERING
// =============================================================================

// RenderTranscript writes messages using the turn-prefix convention.
// System messages are skipped. Reconstruct on the result gives back the
// roles and trimmed content of alternating single-line user turns and
// assistant turns whose lines carry no reserved prefix.
func RenderTranscript(messages []Message) string {
	t := render.NewTranscript(nil)
	for _, m := range messages {
		switch m.Role {
		case RoleUser:
			t.WriteUser(m.Content)
		case RoleAssistant:
			t.BeginAssistant()
			t.Emit(render.Event{Kind: render.Prose, Text: m.Content})
		}
	}
	return t.String()
}
