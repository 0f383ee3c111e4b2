// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/emochat/internal/config"
	"github.com/jeranaias/emochat/internal/logging"
	"github.com/jeranaias/emochat/internal/render"
	"github.com/jeranaias/emochat/internal/session"
	"github.com/jeranaias/emochat/internal/ui/components"
	"github.com/jeranaias/emochat/internal/ui/styles"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// State represents the current state of the chat view.
type State int

const (
	StateReady     State = iota // Ready for input
	StateWaiting                // Request sent, nothing received yet
	StateStreaming              // Response text is arriving
)

// =============================================================================
// BACKEND
// =============================================================================

// Backend is the API client for the selected model.
type Backend interface {
	session.Client
	Ping(ctx context.Context) (time.Duration, error)
}

// ClientFactory builds a client for the model selected in cfg.
type ClientFactory func(cfg *config.Config) Backend

// Options configures a chat Model.
type Options struct {
	Config  *config.Config
	Session *session.Session

	// NewClient is called again whenever the model changes.
	NewClient ClientFactory

	// ExportDir is where /export writes files.
	ExportDir string

	Logger *zap.Logger
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	state State

	// Styling
	theme *styles.Theme
	hl    *render.Highlighter

	// Dimensions
	width  int
	height int

	cfg       *config.Config
	sess      *session.Session
	backend   Backend
	newClient ClientFactory
	exportDir string
	manager   *session.Manager
	logger    *zap.Logger

	// UI Components
	viewport  viewport.Model
	input     textarea.Model
	indicator components.Indicator
	status    *components.StatusBar
	keys      KeyMap
	help      help.Model

	// Shared with worker goroutines
	out       *sender
	pending   *atomic.Bool
	cancelMgr *cancelManager

	// Redraw bookkeeping
	renderedLen int

	// panel holds command output shown above the input until dismissed.
	panel    string
	showHelp bool
}

// New creates the chat model. The session must be built with a client
// from opts.NewClient for the model selected in opts.Config.
func New(opts Options) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	theme := styles.NewTheme(cfg.UI)

	ta := textarea.New()
	ta.Placeholder = "Type a message... (/help for commands)"
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline.SetKeys("alt+enter", "ctrl+j")
	ta.Focus()

	vp := viewport.New(80, 20)
	vp.KeyMap = viewport.KeyMap{}

	m := Model{
		state:     StateReady,
		theme:     theme,
		hl:        render.NewHighlighter(theme.CodeStyle),
		cfg:       cfg,
		sess:      opts.Session,
		newClient: opts.NewClient,
		exportDir: opts.ExportDir,
		manager:   session.NewManager(session.DefaultManagerConfig()),
		logger:    logging.OrNop(opts.Logger),
		viewport:  vp,
		input:     ta,
		indicator: components.NewIndicator(styles.LoadingSpinner(cfg.UI), styles.IdleSpinner(cfg.UI), theme),
		status:    components.NewStatusBar(theme),
		keys:      DefaultKeyMap(),
		help:      newHelp(theme),
		out:       &sender{},
		pending:   &atomic.Bool{},
		cancelMgr: newCancelManager(),
	}

	if m.newClient != nil {
		m.backend = m.newClient(cfg)
	}
	m.status.SetModel(cfg.Model, cfg.Streaming)
	m.bindAutoSave()
	m.syncViewport(true)
	return m
}

// Attach connects the model to its program so worker goroutines can post
// messages. Call it after tea.NewProgram and before Run.
func (m Model) Attach(p *tea.Program) {
	m.out.set(p.Send)
}

// Sender returns a function that posts a message to the attached program.
// The config watcher uses it to deliver reloads.
func (m Model) Sender() func(tea.Msg) {
	return m.out.Send
}

// Session returns the active session.
func (m Model) Session() *session.Session {
	return m.sess
}

// bindAutoSave points the auto-save callback at the current session.
func (m *Model) bindAutoSave() {
	sess := m.sess
	m.manager.SetAutoSaveCallback(func() error {
		if sess == nil {
			return nil
		}
		return sess.Save()
	})
}

// Init starts the cursor blink, animations, the auto-save tick and the
// first ping.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.indicator.Init(),
		session.TickCmd(),
		m.pingNow(),
	)
}
