// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/jeranaias/emochat/internal/session"
	"github.com/jeranaias/emochat/internal/storage"
	"github.com/jeranaias/emochat/internal/telemetry"
)

// =============================================================================
// PERSISTENCE
// =============================================================================

// stores are the on-disk stores under the data directory.
type stores struct {
	conversations *storage.ConversationStore
	transcripts   *storage.TranscriptStore
	usage         *telemetry.UsageTracker
	logger        *zap.Logger
}

// openConversations opens only the JSON conversation store.
func (a *app) openConversations() (*storage.ConversationStore, error) {
	dir, err := a.cfg.ConversationsDir()
	if err != nil {
		return nil, err
	}
	return storage.NewConversationStore(dir)
}

// openStores opens all stores. Close must be called.
func (a *app) openStores() (*stores, error) {
	convs, err := a.openConversations()
	if err != nil {
		return nil, err
	}

	dbPath, err := a.cfg.TranscriptDB()
	if err != nil {
		return nil, err
	}
	transcripts, err := storage.OpenTranscriptStore(dbPath)
	if err != nil {
		return nil, err
	}

	usageDir, err := a.cfg.UsageDir()
	if err != nil {
		transcripts.Close()
		return nil, err
	}
	usage, err := telemetry.NewUsageTracker(usageDir)
	if err != nil {
		transcripts.Close()
		return nil, fmt.Errorf("failed to open usage tracker: %w", err)
	}

	return &stores{
		conversations: convs,
		transcripts:   transcripts,
		usage:         usage,
		logger:        a.logger,
	}, nil
}

// sessionOptions returns config-derived session options wired to st.
// A nil st gives a session that persists nothing.
func (a *app) sessionOptions(st *stores) session.Options {
	opts := session.OptionsFromConfig(a.cfg)
	opts.Logger = a.logger
	if st != nil {
		opts.Store = st.conversations
		opts.Transcripts = st.transcripts
		opts.Usage = st.usage
	}
	return opts
}

// Close ends the usage session and closes the transcript database.
func (s *stores) Close() {
	if err := s.usage.EndSession(); err != nil {
		s.logger.Warn("failed to save usage", zap.Error(err))
	}
	if err := s.transcripts.Close(); err != nil {
		s.logger.Warn("failed to close transcript store", zap.Error(err))
	}
}
