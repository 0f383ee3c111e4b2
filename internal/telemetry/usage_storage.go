// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/emochat/internal/util"
)

// sessionIDLayout is the time prefix of every session ID.
const sessionIDLayout = "20060102-150405"

// =============================================================================
// USAGE STORAGE
// =============================================================================

// UsageStorage persists session usage as one JSON file per session.
type UsageStorage struct {
	dir string
}

// NewUsageStorage creates the storage directory if needed.
func NewUsageStorage(dir string) (*UsageStorage, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(homeDir, ".emochat", "usage")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &UsageStorage{dir: dir}, nil
}

// Dir returns the storage directory.
func (us *UsageStorage) Dir() string {
	return us.dir
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// Save writes a session to disk.
func (us *UsageStorage) Save(session *SessionUsage) error {
	if session == nil {
		return nil
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}

	return util.AtomicWriteFile(us.path(session.ID), data, 0644)
}

// Load reads a session from disk.
func (us *UsageStorage) Load(sessionID string) (*SessionUsage, error) {
	data, err := os.ReadFile(us.path(sessionID))
	if err != nil {
		return nil, err
	}

	var session SessionUsage
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns the IDs of sessions started within [from, to], oldest first.
func (us *UsageStorage) List(from, to time.Time) ([]string, error) {
	entries, err := os.ReadDir(us.dir)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, entry := range entries {
		id, ok := sessionFileID(entry)
		if !ok {
			continue
		}

		started, ok := sessionStart(id)
		if !ok || started.Before(from) || started.After(to) {
			continue
		}
		ids = append(ids, id)
	}

	sort.Strings(ids)
	return ids, nil
}

// Delete removes a session file.
func (us *UsageStorage) Delete(sessionID string) error {
	return os.Remove(us.path(sessionID))
}

// DeleteBefore removes all sessions started before the given time.
func (us *UsageStorage) DeleteBefore(before time.Time) error {
	entries, err := os.ReadDir(us.dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		id, ok := sessionFileID(entry)
		if !ok {
			continue
		}
		if started, ok := sessionStart(id); ok && started.Before(before) {
			os.Remove(us.path(id)) // best effort
		}
	}
	return nil
}

// Count returns the number of stored sessions.
func (us *UsageStorage) Count() (int, error) {
	entries, err := os.ReadDir(us.dir)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, entry := range entries {
		if _, ok := sessionFileID(entry); ok {
			count++
		}
	}
	return count, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (us *UsageStorage) path(sessionID string) string {
	return filepath.Join(us.dir, sessionID+".json")
}

func sessionFileID(entry os.DirEntry) (string, bool) {
	if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
		return "", false
	}
	return strings.TrimSuffix(entry.Name(), ".json"), true
}

// sessionStart parses the timestamp prefix of a session ID in local time.
func sessionStart(id string) (time.Time, bool) {
	if len(id) < len(sessionIDLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(sessionIDLayout, id[:len(sessionIDLayout)], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
