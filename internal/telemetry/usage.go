// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jeranaias/emochat/internal/util"
)

// MaxRecentQueries bounds the per-session query list.
const MaxRecentQueries = 50

// =============================================================================
// USAGE TRACKER
// =============================================================================

// sessionIDCounter ensures unique session IDs even when created rapidly
var sessionIDCounter uint64

// UsageTracker accumulates token usage for the running session and
// persists finished sessions.
type UsageTracker struct {
	mu      sync.RWMutex
	current *SessionUsage
	storage *UsageStorage
}

// SessionUsage is the usage of one application session.
type SessionUsage struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitempty"`

	Tokens     TokenCount `json:"tokens"`
	QueryCount int        `json:"query_count"`
	Errors     int        `json:"errors"`

	// Most recent queries, oldest first
	Recent []QueryUsage `json:"recent"`
}

// QueryUsage is the usage of one request.
type QueryUsage struct {
	Timestamp    time.Time     `json:"timestamp"`
	Model        string        `json:"model"`
	Prompt       string        `json:"prompt"` // truncated
	Counter      string        `json:"counter"`
	InputTokens  int           `json:"input_tokens"`
	OutputTokens int           `json:"output_tokens"`
	Duration     time.Duration `json:"duration"`
	Failed       bool          `json:"failed,omitempty"`
}

// NewUsageTracker creates a tracker persisting to dir. An empty dir uses
// ~/.emochat/usage.
func NewUsageTracker(dir string) (*UsageTracker, error) {
	storage, err := NewUsageStorage(dir)
	if err != nil {
		return nil, err
	}
	return &UsageTracker{
		current: newSessionUsage(),
		storage: storage,
	}, nil
}

func newSessionUsage() *SessionUsage {
	return &SessionUsage{
		ID:        generateSessionID(),
		StartTime: time.Now(),
		Recent:    make([]QueryUsage, 0),
	}
}

// =============================================================================
// RECORDING
// =============================================================================

// RecordQuery adds one request to the current session.
func (t *UsageTracker) RecordQuery(q QueryUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if q.Timestamp.IsZero() {
		q.Timestamp = time.Now()
	}
	q.Prompt = util.TruncateRunes(q.Prompt, 100)

	s := t.current
	s.Tokens.Input += q.InputTokens
	s.Tokens.Output += q.OutputTokens
	s.QueryCount++
	if q.Failed {
		s.Errors++
	}

	s.Recent = append(s.Recent, q)
	if len(s.Recent) > MaxRecentQueries {
		s.Recent = s.Recent[len(s.Recent)-MaxRecentQueries:]
	}
}

// =============================================================================
// RETRIEVAL
// =============================================================================

// Current returns a copy of the current session.
func (t *UsageTracker) Current() *SessionUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return copySession(t.current)
}

// Totals returns the tokens counted so far this session.
func (t *UsageTracker) Totals() TokenCount {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current.Tokens
}

// History returns persisted sessions started within [from, to].
func (t *UsageTracker) History(from, to time.Time) []*SessionUsage {
	ids, err := t.storage.List(from, to)
	if err != nil {
		return nil
	}

	sessions := make([]*SessionUsage, 0, len(ids))
	for _, id := range ids {
		s, err := t.storage.Load(id)
		if err != nil {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions
}

// =============================================================================
// SESSION MANAGEMENT
// =============================================================================

// Save persists the current session without ending it.
func (t *UsageTracker) Save() error {
	t.mu.RLock()
	s := copySession(t.current)
	t.mu.RUnlock()
	return t.storage.Save(s)
}

// EndSession stamps and saves the current session, then starts a new one.
// Sessions without queries are not saved.
func (t *UsageTracker) EndSession() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current.QueryCount > 0 {
		t.current.EndTime = time.Now()
		if err := t.storage.Save(t.current); err != nil {
			return err
		}
	}
	t.current = newSessionUsage()
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func copySession(src *SessionUsage) *SessionUsage {
	dst := *src
	dst.Recent = make([]QueryUsage, len(src.Recent))
	copy(dst.Recent, src.Recent)
	return &dst
}

// generateSessionID generates a unique, time-sortable session ID.
func generateSessionID() string {
	counter := atomic.AddUint64(&sessionIDCounter, 1)
	return time.Now().Format(sessionIDLayout) + "-" + fmt.Sprintf("%d", counter)
}
