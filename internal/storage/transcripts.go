// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/emochat/internal/render"
)

// =============================================================================
// SCHEMA
// =============================================================================

// TranscriptSchemaVersion tracks the transcript database layout.
const TranscriptSchemaVersion = 1

const transcriptSchema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- One row per appended chunk. Text is stored verbatim, turn prefixes included.
CREATE TABLE IF NOT EXISTS chunks (
    conversation_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    kind TEXT NOT NULL,         -- user, assistant, code, error
    text TEXT NOT NULL,
    created_at INTEGER NOT NULL, -- Unix nanoseconds
    PRIMARY KEY (conversation_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_chunks_created ON chunks(created_at);
`

const transcriptMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('created_at', strftime('%s', 'now'));
`

// ErrStoreClosed is returned by operations on a closed TranscriptStore.
var ErrStoreClosed = errors.New("transcript store closed")

// =============================================================================
// TRANSCRIPT STORE
// =============================================================================

// TranscriptStore persists display transcripts in SQLite, keyed by
// conversation ID.
type TranscriptStore struct {
	db *sql.DB
	mu sync.Mutex

	// next sequence number per conversation
	seq    map[string]int64
	closed bool
}

// OpenTranscriptStore opens or creates the transcript database at path.
// The special path ":memory:" opens a private in-memory database.
func OpenTranscriptStore(path string) (*TranscriptStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer; an in-memory database also exists only on
	// its own connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(transcriptSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := db.Exec(transcriptMetadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &TranscriptStore{db: db, seq: make(map[string]int64)}, nil
}

// Close closes the database. Further calls return ErrStoreClosed.
func (s *TranscriptStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Append stores one chunk at the end of a conversation's transcript.
func (s *TranscriptStore) Append(ctx context.Context, conversationID string, tag render.Tag, text string) error {
	if text == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	next, err := s.nextSeq(ctx, conversationID)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO chunks (conversation_id, seq, kind, text, created_at) VALUES (?, ?, ?, ?, ?)",
		conversationID, next, string(tag), text, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to append transcript chunk: %w", err)
	}
	s.seq[conversationID] = next + 1
	return nil
}

// nextSeq returns the sequence number for the next chunk. Callers hold s.mu.
func (s *TranscriptStore) nextSeq(ctx context.Context, conversationID string) (int64, error) {
	if n, ok := s.seq[conversationID]; ok {
		return n, nil
	}
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(seq) FROM chunks WHERE conversation_id = ?", conversationID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to read transcript sequence: %w", err)
	}
	if !max.Valid {
		return 0, nil
	}
	return max.Int64 + 1, nil
}

// Segments returns a conversation's chunks in append order. Adjacent
// chunks with the same tag are merged.
func (s *TranscriptStore) Segments(ctx context.Context, conversationID string) ([]render.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, text FROM chunks WHERE conversation_id = ? ORDER BY seq", conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	defer rows.Close()

	var segments []render.Segment
	for rows.Next() {
		var kind, text string
		if err := rows.Scan(&kind, &text); err != nil {
			return nil, fmt.Errorf("failed to read transcript: %w", err)
		}
		tag := render.Tag(kind)
		if n := len(segments); n > 0 && segments[n-1].Tag == tag {
			segments[n-1].Text += text
			continue
		}
		segments = append(segments, render.Segment{Tag: tag, Text: text})
	}
	return segments, rows.Err()
}

// Text returns a conversation's full transcript.
func (s *TranscriptStore) Text(ctx context.Context, conversationID string) (string, error) {
	segments, err := s.Segments(ctx, conversationID)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, seg := range segments {
		sb.WriteString(seg.Text)
	}
	return sb.String(), nil
}

// Clear deletes a conversation's transcript.
func (s *TranscriptStore) Clear(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM chunks WHERE conversation_id = ?", conversationID); err != nil {
		return fmt.Errorf("failed to clear transcript: %w", err)
	}
	delete(s.seq, conversationID)
	return nil
}

// Conversations returns the IDs that have a stored transcript, most
// recently written first.
func (s *TranscriptStore) Conversations(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT conversation_id FROM chunks GROUP BY conversation_id ORDER BY MAX(created_at) DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// For binds the store to one conversation as a render.Appender.
func (s *TranscriptStore) For(conversationID string) *TranscriptLog {
	return &TranscriptLog{store: s, id: conversationID}
}

// =============================================================================
// TRANSCRIPT LOG
// =============================================================================

// TranscriptLog is a TranscriptStore bound to one conversation.
type TranscriptLog struct {
	store *TranscriptStore
	id    string
}

// ID returns the conversation ID.
func (l *TranscriptLog) ID() string { return l.id }

// Append implements render.Appender.
func (l *TranscriptLog) Append(tag render.Tag, text string) error {
	return l.store.Append(context.Background(), l.id, tag, text)
}

// Segments returns the stored segments.
func (l *TranscriptLog) Segments(ctx context.Context) ([]render.Segment, error) {
	return l.store.Segments(ctx, l.id)
}

// Clear deletes the stored transcript.
func (l *TranscriptLog) Clear(ctx context.Context) error {
	return l.store.Clear(ctx, l.id)
}

var _ render.Appender = (*TranscriptLog)(nil)
