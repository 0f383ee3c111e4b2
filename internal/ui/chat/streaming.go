// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/emochat/internal/render"
	"github.com/jeranaias/emochat/internal/session"
)

// =============================================================================
// PROGRAM BRIDGE
// =============================================================================

// sender forwards messages from worker goroutines into the running
// program. Messages sent before a program is attached are dropped.
type sender struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

func (s *sender) set(fn func(tea.Msg)) {
	s.mu.Lock()
	s.send = fn
	s.mu.Unlock()
}

// Send delivers msg to the program, if one is attached.
func (s *sender) Send(msg tea.Msg) {
	s.mu.Lock()
	fn := s.send
	s.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

// =============================================================================
// EVENT COALESCING
// =============================================================================

// redrawNotifier is the splitter observer for a running turn. The
// transcript already holds the text, so the UI only needs to know that it
// should redraw. Bursts of events collapse into a single queued message,
// which keeps the program's queue short on fast streams.
type redrawNotifier struct {
	pending *atomic.Bool
	out     *sender
}

// Emit implements render.Sink.
func (r redrawNotifier) Emit(render.Event) {
	if r.pending.CompareAndSwap(false, true) {
		r.out.Send(StreamEventMsg{})
	}
}

// =============================================================================
// TURN COMMAND
// =============================================================================

// runTurn returns a command that sends prompt on sess. Bubble Tea runs the
// command on its own goroutine; progress reaches the program through
// observer and the final result as TurnCompleteMsg.
func runTurn(ctx context.Context, sess *session.Session, prompt string, observer render.Sink) tea.Cmd {
	return func() tea.Msg {
		res, err := sess.Send(ctx, prompt, observer)
		return TurnCompleteMsg{Result: res, Err: err}
	}
}
