// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/emochat/internal/model"
	"github.com/jeranaias/emochat/internal/util"
)

// DefaultMaxConversations is the number of conversations kept before the
// oldest are pruned.
const DefaultMaxConversations = 100

// =============================================================================
// STORED CONVERSATION TYPE
// =============================================================================

// StoredConversation is the on-disk form of a structured message log.
type StoredConversation struct {
	ID        string    `json:"id"`
	Summary   string    `json:"summary"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages []StoredMessage `json:"messages"`

	TokensUsed int `json:"tokens_used,omitempty"`
}

// StoredMessage is one persisted message.
type StoredMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user", "assistant", "system"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// Statistics (for assistant messages)
	TokenCount int   `json:"token_count,omitempty"`
	DurationMs int64 `json:"duration_ms,omitempty"`
	TTFTMs     int64 `json:"ttft_ms,omitempty"`
}

// ConversationMeta contains metadata for listing conversations.
type ConversationMeta struct {
	ID           string    `json:"id"`
	Summary      string    `json:"summary"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"` // First user message truncated
}

// =============================================================================
// CONVERSION
// =============================================================================

// FromConversation converts a structured log into its stored form.
func FromConversation(conv *model.Conversation) *StoredConversation {
	stored := &StoredConversation{
		ID:         conv.ID,
		Summary:    conv.Title,
		Model:      conv.Model,
		CreatedAt:  conv.CreatedAt,
		UpdatedAt:  conv.UpdatedAt,
		Messages:   make([]StoredMessage, 0, len(conv.Messages)),
		TokensUsed: conv.TokensUsed,
	}
	for _, msg := range conv.Messages {
		if msg.IsStreaming {
			continue
		}
		stored.Messages = append(stored.Messages, StoredMessage{
			ID:         msg.ID,
			Role:       msg.Role.String(),
			Content:    msg.Content,
			Timestamp:  msg.Timestamp,
			TokenCount: msg.TokenCount,
			DurationMs: msg.TotalDuration.Milliseconds(),
			TTFTMs:     msg.TTFT.Milliseconds(),
		})
	}
	return stored
}

// ToConversation converts a stored conversation back into a structured log.
// Messages with an unknown role are skipped.
func (c *StoredConversation) ToConversation() *model.Conversation {
	conv := model.NewConversationWithModel(c.Model)
	conv.ID = c.ID
	for _, sm := range c.Messages {
		role, ok := model.ParseRole(sm.Role)
		if !ok {
			continue
		}
		msg := &model.Message{
			ID:            sm.ID,
			Role:          role,
			Content:       sm.Content,
			Timestamp:     sm.Timestamp,
			TokenCount:    sm.TokenCount,
			TotalDuration: time.Duration(sm.DurationMs) * time.Millisecond,
			TTFT:          time.Duration(sm.TTFTMs) * time.Millisecond,
		}
		conv.AddMessage(msg)
	}
	if c.Summary != "" {
		conv.Title = c.Summary
	}
	conv.CreatedAt = c.CreatedAt
	conv.UpdatedAt = c.UpdatedAt
	return conv
}

// =============================================================================
// CONVERSATION STORE
// =============================================================================

// ConversationStore persists structured logs as one JSON file per
// conversation.
type ConversationStore struct {
	mu sync.Mutex

	// BaseDir is the directory for storing conversations
	// Default: ~/.emochat/conversations/
	BaseDir string

	// MaxConversations limits stored conversations (0 = unlimited)
	MaxConversations int
}

// NewConversationStore creates a store in dir, creating it if needed.
func NewConversationStore(dir string) (*ConversationStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create conversation directory: %w", err)
	}

	return &ConversationStore{
		BaseDir:          dir,
		MaxConversations: DefaultMaxConversations,
	}, nil
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save persists a conversation and returns its ID.
func (s *ConversationStore) Save(conv *StoredConversation) (string, error) {
	if conv.ID == "" {
		conv.ID = "conv_" + uuid.NewString()
	}
	if !validID(conv.ID) {
		return "", fmt.Errorf("invalid conversation id %q", conv.ID)
	}

	if conv.Summary == "" {
		conv.Summary = generateSummary(conv)
	}

	conv.UpdatedAt = time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := util.AtomicWriteFile(s.filePath(conv.ID), data, 0600); err != nil {
		return "", fmt.Errorf("failed to save conversation: %w", err)
	}

	if s.MaxConversations > 0 {
		s.enforceLimit()
	}

	return conv.ID, nil
}

// SaveConversation stores a structured log under its own ID.
func (s *ConversationStore) SaveConversation(conv *model.Conversation) error {
	_, err := s.Save(FromConversation(conv))
	return err
}

// generateSummary creates a summary from the first user message.
func generateSummary(conv *StoredConversation) string {
	for _, msg := range conv.Messages {
		if msg.Role == "user" && msg.Content != "" {
			content := util.TruncateRunes(msg.Content, 50)
			content = strings.ReplaceAll(content, "\n", " ")
			content = strings.ReplaceAll(content, "\r", "")
			return content
		}
	}
	return "New conversation"
}

// enforceLimit removes the oldest conversations beyond MaxConversations.
// Callers hold s.mu.
func (s *ConversationStore) enforceLimit() {
	metas, err := s.list()
	if err != nil || len(metas) <= s.MaxConversations {
		return
	}

	// list is newest first; everything past the limit goes.
	for _, meta := range metas[s.MaxConversations:] {
		_ = os.Remove(s.filePath(meta.ID))
	}
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a conversation by ID.
func (s *ConversationStore) Load(id string) (*StoredConversation, error) {
	if !validID(id) {
		return nil, ErrConversationNotFound
	}

	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	var conv StoredConversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("corrupt conversation %s: %w", id, err)
	}

	return &conv, nil
}

// LoadConversation retrieves a conversation as a structured log.
func (s *ConversationStore) LoadConversation(id string) (*model.Conversation, error) {
	stored, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	return stored.ToConversation(), nil
}

// LoadByIndex loads a conversation by its index in the list (0 = most recent).
func (s *ConversationStore) LoadByIndex(index int) (*StoredConversation, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}

	if index < 0 || index >= len(metas) {
		return nil, ErrConversationNotFound
	}

	return s.Load(metas[index].ID)
}

// Resolve finds a conversation by full ID, unique ID prefix, or list index
// written as a decimal number.
func (s *ConversationStore) Resolve(ref string) (*StoredConversation, error) {
	if conv, err := s.Load(ref); err == nil {
		return conv, nil
	}

	if n, ok := parseIndex(ref); ok {
		return s.LoadByIndex(n)
	}

	metas, err := s.List()
	if err != nil {
		return nil, err
	}
	var match string
	for _, meta := range metas {
		if strings.HasPrefix(meta.ID, ref) {
			if match != "" {
				return nil, fmt.Errorf("ambiguous conversation id %q", ref)
			}
			match = meta.ID
		}
	}
	if match == "" {
		return nil, ErrConversationNotFound
	}
	return s.Load(match)
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns all saved conversations (most recent first).
func (s *ConversationStore) List() ([]ConversationMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list()
}

func (s *ConversationStore) list() ([]ConversationMeta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ConversationMeta{}, nil
		}
		return nil, err
	}

	metas := make([]ConversationMeta, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")
		conv, err := s.Load(id)
		if err != nil {
			continue // Skip corrupted files
		}

		metas = append(metas, ConversationMeta{
			ID:           conv.ID,
			Summary:      conv.Summary,
			Model:        conv.Model,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
			MessageCount: len(conv.Messages),
			Preview:      conv.GetPreview(),
		})
	}

	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})

	return metas, nil
}

// Search finds conversations whose summary or preview contains query.
func (s *ConversationStore) Search(query string) ([]ConversationMeta, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var results []ConversationMeta

	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Summary), query) ||
			strings.Contains(strings.ToLower(meta.Preview), query) {
			results = append(results, meta)
		}
	}

	return results, nil
}

// SearchMessages returns conversations where any message contains query
// (case-insensitive).
func (s *ConversationStore) SearchMessages(query string) ([]ConversationMeta, error) {
	if query == "" {
		return s.List()
	}

	query = strings.ToLower(query)
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	var results []ConversationMeta

	for _, meta := range all {
		conv, err := s.Load(meta.ID)
		if err != nil {
			continue
		}

		for _, msg := range conv.Messages {
			if strings.Contains(strings.ToLower(msg.Content), query) {
				results = append(results, meta)
				break
			}
		}
	}

	return results, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a conversation by ID.
func (s *ConversationStore) Delete(id string) error {
	if !validID(id) {
		return ErrConversationNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrConversationNotFound
		}
		return err
	}

	return nil
}

// Clear removes all saved conversations.
func (s *ConversationStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			if err := os.Remove(filepath.Join(s.BaseDir, entry.Name())); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}

	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// filePath returns the file path for a conversation ID.
func (s *ConversationStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}

// validID rejects IDs that could escape BaseDir.
func validID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

func parseIndex(s string) (int, bool) {
	if s == "" || len(s) > 6 {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation doesn't exist.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ConversationError represents a conversation-related error.
type ConversationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing conversation errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// =============================================================================
// SESSION LIST FORMATTING
// =============================================================================

// FormatSessionList renders conversation metadata as a table with index,
// short ID, update time, message count and preview.
func FormatSessionList(sessions []ConversationMeta) string {
	if len(sessions) == 0 {
		return "No conversations found."
	}

	var sb strings.Builder
	rule := strings.Repeat("-", 72) + "\n"
	sb.WriteString(rule)
	sb.WriteString(util.PadWidth("#", 4) + " " +
		util.PadWidth("ID", 8) + " " +
		util.PadWidth("Updated", 16) + " " +
		util.PadWidth("Msgs", 5) + " Preview\n")
	sb.WriteString(rule)

	for i, s := range sessions {
		idStr := s.ID
		if len(idStr) > 8 {
			idStr = idStr[:8]
		}
		preview := s.Preview
		if preview == "" {
			preview = s.Summary
		}
		preview = strings.ReplaceAll(preview, "\n", " ")

		sb.WriteString(util.PadWidth(fmt.Sprintf("%d", i), 4) + " " +
			util.PadWidth(idStr, 8) + " " +
			util.PadWidth(s.UpdatedAt.Format("2006-01-02 15:04"), 16) + " " +
			util.PadWidth(fmt.Sprintf("%d", s.MessageCount), 5) + " " +
			util.TruncateWidth(preview, 34) + "\n")
	}
	return sb.String()
}

// =============================================================================
// CONVERSATION HELPERS
// =============================================================================

// GetPreview returns the first user message truncated to 80 runes, or ""
// if there is none.
func (c *StoredConversation) GetPreview() string {
	for _, msg := range c.Messages {
		if msg.Role == "user" && msg.Content != "" {
			return util.TruncateRunes(msg.Content, 80)
		}
	}
	return ""
}

// MessageCount returns the number of messages in the conversation.
func (c *StoredConversation) MessageCount() int {
	return len(c.Messages)
}
