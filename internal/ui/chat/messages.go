// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/jeranaias/emochat/internal/config"
	"github.com/jeranaias/emochat/internal/session"
)

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// StreamEventMsg signals that the transcript grew. Events are coalesced:
// at most one is queued until Update handles it.
type StreamEventMsg struct{}

// TurnCompleteMsg is sent when a request finishes, successfully or not.
type TurnCompleteMsg struct {
	Result *session.Result
	// Err is set when the turn could not start.
	Err error
}

// =============================================================================
// BACKGROUND MESSAGES
// =============================================================================

// pingDueMsg schedules the next latency probe.
type pingDueMsg struct{}

// PingMsg carries a latency probe result.
type PingMsg struct {
	Latency time.Duration
	Err     error
}

// ConfigReloadedMsg is sent by the config watcher after the file changed.
type ConfigReloadedMsg struct {
	Config *config.Config
	Err    error
}

// =============================================================================
// ACTION RESULTS
// =============================================================================

// CopyCompleteMsg reports a clipboard copy.
type CopyCompleteMsg struct {
	Err error
}

// SavedMsg reports a conversation save.
type SavedMsg struct {
	Auto bool
	Err  error
}

// ExportCompleteMsg reports a finished export.
type ExportCompleteMsg struct {
	Path string
	Err  error
}

// clearNoticeMsg removes a status notice if it is still the one shown.
type clearNoticeMsg struct {
	text string
}
