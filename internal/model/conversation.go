// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// MaxMessages is the maximum number of messages to keep in conversation history.
// When exceeded, the oldest messages are pruned.
const MaxMessages = 1000

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is the structured message log of one chat.
// It is the default source of outgoing history.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Messages never include the system prompt; it is added by History.
	Messages []*Message `json:"messages"`

	Model string `json:"model"`

	TokensUsed     int     `json:"tokens_used"`
	MaxTokens      int     `json:"max_tokens"`
	ContextPercent float64 `json:"-"`
}

// NewConversation creates a new conversation with a generated ID.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        generateConversationID(),
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]*Message, 0),
		MaxTokens: DefaultContextWindow,
	}
}

// NewConversationWithModel creates a new conversation for a specific model.
func NewConversationWithModel(model string) *Conversation {
	conv := NewConversation()
	conv.SetModel(model)
	return conv
}

// SetModel records the model and adopts its known context window.
func (c *Conversation) SetModel(model string) {
	c.Model = model
	c.MaxTokens = ContextWindow(model)
	c.updateTokenEstimate()
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage adds a message to the conversation.
func (c *Conversation) AddMessage(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
	c.updateTokenEstimate()
	c.updateTitle()
	c.pruneOldMessages()
}

// AddUserMessage creates and adds a user message.
func (c *Conversation) AddUserMessage(content string) *Message {
	msg := NewUserMessage(content)
	c.AddMessage(msg)
	return msg
}

// AddAssistantMessage creates and adds a streaming assistant message.
func (c *Conversation) AddAssistantMessage() *Message {
	msg := NewAssistantMessage()
	c.AddMessage(msg)
	return msg
}

// GetLastMessage returns the most recent message, or nil if empty.
func (c *Conversation) GetLastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}

// GetLastAssistantMessage returns the most recent assistant message.
func (c *Conversation) GetLastAssistantMessage() *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleAssistant {
			return c.Messages[i]
		}
	}
	return nil
}

// AppendToLast appends a fragment to the last (streaming) message.
func (c *Conversation) AppendToLast(token string) {
	last := c.GetLastMessage()
	if last != nil && last.IsStreaming {
		last.AppendToken(token)
	}
}

// FinalizeLast finalizes the last streaming message. A response that
// produced no text is removed so the log never holds an empty turn.
func (c *Conversation) FinalizeLast(stats *Statistics) {
	last := c.GetLastMessage()
	if last == nil || !last.IsStreaming {
		return
	}
	last.FinalizeStream(stats)
	if last.IsEmpty() {
		c.Messages = c.Messages[:len(c.Messages)-1]
	}
	c.UpdatedAt = time.Now()
	c.updateTokenEstimate()
}

// ClearHistory removes all messages from the conversation.
func (c *Conversation) ClearHistory() {
	c.Messages = make([]*Message, 0)
	c.TokensUsed = 0
	c.ContextPercent = 0
	c.UpdatedAt = time.Now()
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// =============================================================================
// HISTORY
// =============================================================================

// History returns the outgoing message list: the system prompt per policy,
// then every finalized non-empty message in order. A message still
// streaming is left out.
func (c *Conversation) History(systemPrompt string, policy SystemPromptPolicy) []Message {
	history := policy.systemMessages(systemPrompt)
	for _, msg := range c.Messages {
		if msg.IsStreaming || msg.Role == RoleSystem || msg.IsEmpty() {
			continue
		}
		history = append(history, msg.Bare())
	}
	return history
}

// Transcript renders the log with the turn-prefix convention.
func (c *Conversation) Transcript() string {
	msgs := make([]Message, 0, len(c.Messages))
	for _, m := range c.Messages {
		msgs = append(msgs, m.Bare())
	}
	return RenderTranscript(msgs)
}

// ImportTranscript replaces the log with turns parsed from a transcript.
func (c *Conversation) ImportTranscript(transcript string) {
	c.ClearHistory()
	for _, m := range ReconstructWithPolicy(transcript, "", OmitEmpty) {
		c.AddMessage(NewMessage(m.Role, m.Content))
	}
}

// =============================================================================
// TOKEN TRACKING
// =============================================================================

// EstimateTokens estimates the total token count at ~4 characters per token.
func (c *Conversation) EstimateTokens() int {
	total := 0
	for _, msg := range c.Messages {
		total += (len(msg.GetDisplayContent()) + 3) / 4
		// message framing overhead
		total += 4
	}
	return total
}

// updateTokenEstimate updates the token usage and context percentage.
func (c *Conversation) updateTokenEstimate() {
	c.TokensUsed = c.EstimateTokens()
	if c.MaxTokens > 0 {
		c.ContextPercent = float64(c.TokensUsed) / float64(c.MaxTokens) * 100
	}
}

// IsContextNearLimit returns true if context usage is above 75%.
func (c *Conversation) IsContextNearLimit() bool {
	return c.ContextPercent >= 75
}

// =============================================================================
// TITLE MANAGEMENT
// =============================================================================

// updateTitle derives a title from the first user message if not set.
func (c *Conversation) updateTitle() {
	if c.Title != "" {
		return
	}
	for _, msg := range c.Messages {
		if msg.Role == RoleUser {
			c.Title = msg.Preview(50)
			return
		}
	}
}

// GetTitle returns the conversation title or a default.
func (c *Conversation) GetTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return "New Conversation"
}

// Preview returns a short preview of the most recent user message.
func (c *Conversation) Preview() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return c.Messages[i].Preview(100)
		}
	}
	if len(c.Messages) == 0 {
		return "Empty conversation"
	}
	return c.Messages[0].Preview(100)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateConversationID creates a unique conversation ID.
func generateConversationID() string {
	return "conv_" + uuid.NewString()
}

// Clone creates a deep copy of the conversation. Streaming messages are
// copied with their partial content as final content.
func (c *Conversation) Clone() *Conversation {
	clone := &Conversation{
		ID:             c.ID,
		Title:          c.Title,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
		Model:          c.Model,
		TokensUsed:     c.TokensUsed,
		MaxTokens:      c.MaxTokens,
		ContextPercent: c.ContextPercent,
		Messages:       make([]*Message, len(c.Messages)),
	}

	for i, msg := range c.Messages {
		msgCopy := *msg
		msgCopy.Content = msg.GetDisplayContent()
		msgCopy.IsStreaming = false
		msgCopy.stream = nil
		clone.Messages[i] = &msgCopy
	}

	return clone
}

// pruneOldMessages keeps the most recent MaxMessages messages.
func (c *Conversation) pruneOldMessages() {
	if len(c.Messages) <= MaxMessages {
		return
	}
	kept := make([]*Message, MaxMessages)
	copy(kept, c.Messages[len(c.Messages)-MaxMessages:])
	c.Messages = kept
}
