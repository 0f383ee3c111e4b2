// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/emochat/internal/model"
)

// =============================================================================
// COUNTER TESTS
// =============================================================================

func TestCounters(t *testing.T) {
	input := []model.Message{
		model.Msg(model.RoleSystem, "be brief"),      // 2 words, 8 chars
		model.Msg(model.RoleUser, "hello there you"), // 3 words, 15 chars
	}
	output := "sixteen chars ok" // 3 words, 16 chars

	tests := []struct {
		name    string
		counter Counter
		usage   *Usage
		want    TokenCount
	}{
		{"words", WordCounter{}, nil, TokenCount{Input: 5, Output: 3}},
		{"chars4", CharCounter{}, nil, TokenCount{Input: 2 + 3, Output: 4}},
		{"original", OriginalCounter{}, nil, TokenCount{Input: 5, Output: 4}},
		{"usage reported", UsageCounter{}, &Usage{PromptTokens: 42, CompletionTokens: 7}, TokenCount{Input: 42, Output: 7}},
		{"usage missing falls back", UsageCounter{}, nil, TokenCount{Input: 5, Output: 4}},
		{"usage zero falls back", UsageCounter{Fallback: WordCounter{}}, &Usage{}, TokenCount{Input: 5, Output: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.counter.Count(input, output, tt.usage)
			if got != tt.want {
				t.Errorf("Count() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCharCounter_CountsRunes(t *testing.T) {
	got := CharCounter{}.Count(nil, "⚡⚡⚡⚡", nil)
	if got.Output != 1 {
		t.Errorf("Output = %d, want 1", got.Output)
	}
}

func TestNewCounter(t *testing.T) {
	for _, name := range CounterNames() {
		c, err := NewCounter(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
	}

	c, err := NewCounter("")
	require.NoError(t, err)
	assert.Equal(t, CounterOriginal, c.Name())

	_, err = NewCounter("tiktoken")
	assert.Error(t, err)
}

func TestTokenCount_Total(t *testing.T) {
	if got := (TokenCount{Input: 3, Output: 4}).Total(); got != 7 {
		t.Errorf("Total() = %d, want 7", got)
	}
}

// =============================================================================
// TRACKER TESTS
// =============================================================================

func TestUsageTracker_RecordQuery(t *testing.T) {
	tracker, err := NewUsageTracker(t.TempDir())
	require.NoError(t, err)

	tracker.RecordQuery(QueryUsage{Model: "deepseek-chat", Prompt: "a", InputTokens: 10, OutputTokens: 20})
	tracker.RecordQuery(QueryUsage{Model: "deepseek-chat", Prompt: strings.Repeat("x", 200), InputTokens: 5, Failed: true})

	s := tracker.Current()
	assert.Equal(t, TokenCount{Input: 15, Output: 20}, s.Tokens)
	assert.Equal(t, 2, s.QueryCount)
	assert.Equal(t, 1, s.Errors)
	require.Len(t, s.Recent, 2)
	assert.Equal(t, 100, len([]rune(s.Recent[1].Prompt)))
	assert.False(t, s.Recent[0].Timestamp.IsZero())
	assert.Equal(t, s.Tokens, tracker.Totals())
}

func TestUsageTracker_RecentIsBounded(t *testing.T) {
	tracker, err := NewUsageTracker(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < MaxRecentQueries+5; i++ {
		tracker.RecordQuery(QueryUsage{InputTokens: i})
	}

	s := tracker.Current()
	require.Len(t, s.Recent, MaxRecentQueries)
	assert.Equal(t, 5, s.Recent[0].InputTokens)
}

func TestUsageTracker_CurrentIsACopy(t *testing.T) {
	tracker, err := NewUsageTracker(t.TempDir())
	require.NoError(t, err)
	tracker.RecordQuery(QueryUsage{InputTokens: 1})

	s := tracker.Current()
	s.Recent[0].InputTokens = 99
	s.Tokens.Input = 99

	assert.Equal(t, 1, tracker.Current().Recent[0].InputTokens)
	assert.Equal(t, 1, tracker.Totals().Input)
}

func TestUsageTracker_EndSessionPersists(t *testing.T) {
	dir := t.TempDir()
	tracker, err := NewUsageTracker(dir)
	require.NoError(t, err)

	// Empty sessions are not written.
	require.NoError(t, tracker.EndSession())
	n, err := tracker.storage.Count()
	require.NoError(t, err)
	assert.Zero(t, n)

	tracker.RecordQuery(QueryUsage{InputTokens: 3, OutputTokens: 4})
	firstID := tracker.Current().ID
	require.NoError(t, tracker.EndSession())

	assert.NotEqual(t, firstID, tracker.Current().ID)
	assert.Zero(t, tracker.Totals().Total())

	now := time.Now()
	history := tracker.History(now.Add(-time.Hour), now.Add(time.Hour))
	require.Len(t, history, 1)
	assert.Equal(t, firstID, history[0].ID)
	assert.Equal(t, 7, history[0].Tokens.Total())
	assert.False(t, history[0].EndTime.IsZero())
}

func TestUsageTracker_ConcurrentRecord(t *testing.T) {
	tracker, err := NewUsageTracker(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				tracker.RecordQuery(QueryUsage{InputTokens: 1})
				_ = tracker.Current()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, tracker.Totals().Input)
}

// =============================================================================
// STORAGE TESTS
// =============================================================================

func TestUsageStorage_ListFiltersByDate(t *testing.T) {
	dir := t.TempDir()
	us, err := NewUsageStorage(dir)
	require.NoError(t, err)

	old := &SessionUsage{ID: "20200101-120000-1"}
	recent := &SessionUsage{ID: time.Now().Format(sessionIDLayout) + "-2"}
	require.NoError(t, us.Save(old))
	require.NoError(t, us.Save(recent))

	// Junk files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("{}"), 0644))

	now := time.Now()
	ids, err := us.List(now.AddDate(0, 0, -1), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{recent.ID}, ids)

	require.NoError(t, us.DeleteBefore(now.AddDate(0, 0, -1)))
	_, err = us.Load(old.ID)
	assert.Error(t, err)

	n, err := us.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n) // recent + garbage.json
}
