// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/emochat/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// ParseRole converts a stored role name. Unknown names are returned as-is
// with ok set to false.
func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleSystem, RoleUser, RoleAssistant:
		return r, true
	default:
		return r, false
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one role-tagged entry of a conversation.
//
// Only Role and Content take part in history; the remaining fields are
// bookkeeping for the structured log and the status bar.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`

	// Streaming state (not persisted)
	IsStreaming bool             `json:"-"`
	stream      *strings.Builder // merged into Content by FinalizeStream

	TokenCount    int           `json:"token_count,omitempty"`
	TTFT          time.Duration `json:"ttft_ns,omitempty"`
	TotalDuration time.Duration `json:"total_duration_ns,omitempty"`
}

// Msg builds a bare message with no bookkeeping fields.
func Msg(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        generateID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates an empty assistant message in streaming state.
func NewAssistantMessage() *Message {
	return &Message{
		ID:          generateID(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
		stream:      &strings.Builder{},
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendToken appends a fragment to a streaming message.
func (m *Message) AppendToken(token string) {
	if !m.IsStreaming {
		return
	}
	if m.stream == nil {
		m.stream = &strings.Builder{}
	}
	m.stream.WriteString(token)
}

// FinalizeStream completes streaming and copies statistics.
func (m *Message) FinalizeStream(stats *Statistics) {
	if !m.IsStreaming {
		return
	}

	if m.stream != nil {
		m.Content = m.stream.String()
		m.stream = nil
	}
	m.IsStreaming = false

	if stats != nil {
		m.TTFT = stats.TTFT
		m.TotalDuration = stats.TotalDuration
		m.TokenCount = stats.CompletionTokens
	}
}

// GetDisplayContent returns the content to display (streaming or final).
func (m *Message) GetDisplayContent() string {
	if m.IsStreaming && m.stream != nil {
		return m.stream.String()
	}
	return m.Content
}

// Preview returns a single-line preview truncated to maxLen runes.
func (m *Message) Preview(maxLen int) string {
	content := strings.ReplaceAll(m.GetDisplayContent(), "\n", " ")
	return util.TruncateRunes(content, maxLen)
}

// IsEmpty reports whether the message has no non-blank content.
func (m *Message) IsEmpty() bool {
	return strings.TrimSpace(m.GetDisplayContent()) == ""
}

// Bare strips bookkeeping fields, leaving only role and content.
func (m *Message) Bare() Message {
	return Msg(m.Role, m.GetDisplayContent())
}

// =============================================================================
// STATISTICS TYPE
// =============================================================================

// Statistics holds timing and token count information for one response.
type Statistics struct {
	StartTime      time.Time
	FirstTokenTime time.Time
	EndTime        time.Time

	PromptTokens     int
	CompletionTokens int

	// Derived on Finalize
	TTFT          time.Duration
	TotalDuration time.Duration
}

// NewStatistics creates a new Statistics with the start time set.
func NewStatistics() *Statistics {
	return &Statistics{StartTime: time.Now()}
}

// RecordFirstToken records when the first fragment was received.
func (s *Statistics) RecordFirstToken() {
	if s.FirstTokenTime.IsZero() {
		s.FirstTokenTime = time.Now()
		s.TTFT = s.FirstTokenTime.Sub(s.StartTime)
	}
}

// Finalize records the end time and token counts.
func (s *Statistics) Finalize(promptTokens, completionTokens int) {
	s.EndTime = time.Now()
	s.PromptTokens = promptTokens
	s.CompletionTokens = completionTokens
	s.TotalDuration = s.EndTime.Sub(s.StartTime)
}

// TotalTokens returns prompt plus completion tokens.
func (s *Statistics) TotalTokens() int {
	return s.PromptTokens + s.CompletionTokens
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateID creates a unique message ID.
func generateID() string {
	return "msg_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
