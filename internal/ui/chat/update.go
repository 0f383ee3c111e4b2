// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/emochat/internal/cloud"
	"github.com/jeranaias/emochat/internal/render"
	"github.com/jeranaias/emochat/internal/session"
	"github.com/jeranaias/emochat/internal/ui/components"
	"github.com/jeranaias/emochat/internal/ui/styles"
)

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

// noticeDuration is how long a status notice stays up.
const noticeDuration = 4 * time.Second

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StreamEventMsg:
		m.pending.Store(false)
		if m.state == StateWaiting {
			m.state = StateStreaming
			m.status.SetStatus(components.StatusStreaming)
		}
		m.syncViewport(false)
		return m, nil

	case TurnCompleteMsg:
		return m.handleTurnComplete(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.indicator, cmd = m.indicator.Update(msg)
		// The user line is written before the first event arrives.
		if m.state != StateReady {
			m.syncViewport(false)
		}
		return m, cmd

	case session.TickMsg:
		return m, m.manager.HandleTick()

	case session.AutoSaveMsg:
		return m, m.saveCmd(true)

	case SavedMsg:
		return m.handleSaved(msg)

	case pingDueMsg:
		return m, m.pingNow()

	case PingMsg:
		m.status.SetPing(cloud.FormatPing(msg.Latency, msg.Err))
		return m, m.schedulePing()

	case ConfigReloadedMsg:
		return m.handleConfigReloaded(msg)

	case CopyCompleteMsg:
		if msg.Err != nil {
			return m, m.notify("Copy failed: "+msg.Err.Error(), true)
		}
		return m, m.notify("Copied code block", false)

	case ExportCompleteMsg:
		if msg.Err != nil {
			return m, m.notify("Export failed: "+msg.Err.Error(), true)
		}
		return m, m.notify("Exported to "+msg.Path, false)

	case clearNoticeMsg:
		if m.status.Notice() == msg.text {
			m.status.ClearNotice()
			m.layout()
		}
		return m, nil

	default:
		var cmds []tea.Cmd
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)
	}
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Cancel):
		if m.cancelMgr.cancel() {
			return m, m.notify("Canceling request...", false)
		}
		if m.panel != "" || m.showHelp {
			m.panel = ""
			m.showHelp = false
			m.layout()
		}
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.NextModel):
		return m.nextModel()

	case key.Matches(msg, m.keys.CopyCode):
		return m, m.copyLastCode()

	case key.Matches(msg, m.keys.Save):
		return m, m.saveCmd(false)

	case key.Matches(msg, m.keys.New):
		return m.newChat()

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input as a prompt, or runs it as a slash command.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" {
		return m, nil
	}
	if strings.HasPrefix(strings.TrimSpace(text), "/") {
		m.input.Reset()
		return m.handleCommand(strings.TrimSpace(text))
	}
	if m.state != StateReady || m.sess == nil || m.sess.Busy() {
		return m, m.notify(session.ErrBusy.Error(), true)
	}

	m.input.Reset()
	m.panel = ""
	m.manager.RecordActivity()

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelMgr.set(cancel)

	m.state = StateWaiting
	m.status.SetStatus(components.StatusThinking)
	m.status.ClearNotice()
	m.viewport.GotoBottom()
	m.layout()

	observer := redrawNotifier{pending: m.pending, out: m.out}
	return m, tea.Batch(
		m.indicator.Start(),
		runTurn(ctx, m.sess, text, observer),
	)
}

// =============================================================================
// TURN COMPLETION
// =============================================================================

func (m Model) handleTurnComplete(msg TurnCompleteMsg) (tea.Model, tea.Cmd) {
	m.cancelMgr.cancel()
	m.indicator.Stop()
	m.state = StateReady
	m.pending.Store(false)
	m.syncViewport(false)

	if msg.Err != nil {
		m.status.SetStatus(components.StatusError)
		return m, m.notify(msg.Err.Error(), true)
	}

	res := msg.Result
	m.status.SetStats(res.Tokens, res.Duration)
	m.status.ContextUsed = res.Tokens.Total()
	m.manager.MarkDirty()

	if res.Err != nil {
		m.status.SetStatus(components.StatusError)
		m.logger.Warn("request failed", zap.String("model", res.Model), zap.Error(res.Err))
		if errors.Is(res.Err, context.Canceled) {
			return m, m.notify("Request canceled", true)
		}
		return m, m.notify(res.Err.Error(), true)
	}

	m.status.SetStatus(components.StatusReady)
	return m, nil
}

// =============================================================================
// ACTIONS
// =============================================================================

// nextModel switches to the next configured model. It is refused while a
// request runs.
func (m Model) nextModel() (tea.Model, tea.Cmd) {
	if m.state != StateReady {
		return m, m.notify("Wait for the response before switching models", true)
	}
	return m.switchModel(m.cfg.NextModel())
}

// switchModel selects name, which must already be set in m.cfg.Model.
func (m Model) switchModel(name string) (tea.Model, tea.Cmd) {
	if m.newClient != nil {
		m.backend = m.newClient(m.cfg)
		if m.sess != nil {
			m.sess.SetClient(m.backend)
		}
	}
	if m.sess != nil {
		m.sess.SetModel(name)
	}
	m.status.SetModel(name, m.cfg.Streaming)
	m.status.SetPing("")
	m.logger.Info("model switched", zap.String("model", name))
	return m, tea.Batch(m.notify("Model: "+name, false), m.pingNow())
}

// newChat saves the current conversation and starts an empty one.
func (m Model) newChat() (tea.Model, tea.Cmd) {
	if m.state != StateReady || m.sess == nil {
		return m, m.notify(session.ErrBusy.Error(), true)
	}
	if err := m.manager.Flush(); err != nil {
		m.logger.Warn("save before new chat failed", zap.Error(err))
	}
	if err := m.sess.Reset(); err != nil {
		return m, m.notify(err.Error(), true)
	}
	m.status.ContextUsed = 0
	m.panel = ""
	m.syncViewport(true)
	return m, m.notify("New conversation", false)
}

// copyLastCode copies the most recent code block without its info string.
func (m Model) copyLastCode() tea.Cmd {
	if m.sess == nil {
		return nil
	}
	seg := m.sess.Transcript().LastCode()
	if seg == "" {
		return m.notify("No code block to copy", true)
	}
	code := components.ParseCodeSegment(seg).Plain()
	return func() tea.Msg {
		return CopyCompleteMsg{Err: writeClipboard(code)}
	}
}

// saveCmd writes the conversation. Auto-saves only run when one is due.
func (m Model) saveCmd(auto bool) tea.Cmd {
	mgr, sess := m.manager, m.sess
	return func() tea.Msg {
		if auto {
			return SavedMsg{Auto: true, Err: mgr.Check()}
		}
		if sess == nil {
			return SavedMsg{}
		}
		if err := sess.Save(); err != nil {
			return SavedMsg{Err: err}
		}
		mgr.MarkClean()
		return SavedMsg{}
	}
}

func (m Model) handleSaved(msg SavedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.logger.Warn("save failed", zap.Bool("auto", msg.Auto), zap.Error(msg.Err))
		return m, m.notify("Save failed: "+msg.Err.Error(), true)
	}
	if msg.Auto {
		return m, nil
	}
	return m, m.notify("Conversation saved", false)
}

// quit cancels any request, saves and exits.
func (m Model) quit() (tea.Model, tea.Cmd) {
	m.cancelMgr.cancel()
	if err := m.manager.Flush(); err != nil {
		m.logger.Warn("save on exit failed", zap.Error(err))
	}
	return m, tea.Quit
}

// =============================================================================
// PING
// =============================================================================

func (m Model) pingNow() tea.Cmd {
	backend := m.backend
	if backend == nil {
		return nil
	}
	return func() tea.Msg {
		d, err := backend.Ping(context.Background())
		return PingMsg{Latency: d, Err: err}
	}
}

func (m Model) schedulePing() tea.Cmd {
	secs := m.cfg.Network.PingIntervalSecs
	if secs <= 0 {
		return nil
	}
	return tea.Tick(time.Duration(secs)*time.Second, func(time.Time) tea.Msg {
		return pingDueMsg{}
	})
}

// =============================================================================
// CONFIG RELOAD
// =============================================================================

// handleConfigReloaded applies a changed config file. The selected model
// is kept when the new file still lists it.
func (m Model) handleConfigReloaded(msg ConfigReloadedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.logger.Warn("config reload failed", zap.Error(msg.Err))
		return m, m.notify("Config reload failed: "+msg.Err.Error(), true)
	}

	cfg := msg.Config
	current := m.cfg.Model
	if err := cfg.SetModel(current); err != nil {
		m.logger.Info("selected model no longer configured", zap.String("model", current))
	}
	m.cfg = cfg

	m.theme = styles.NewTheme(cfg.UI)
	m.theme.SetSize(m.width, m.height)
	m.hl = render.NewHighlighter(m.theme.CodeStyle)
	m.status.SetTheme(m.theme)
	m.help = newHelp(m.theme)
	m.indicator = components.NewIndicator(styles.LoadingSpinner(cfg.UI), styles.IdleSpinner(cfg.UI), m.theme)

	if m.sess != nil {
		m.sess.Reconfigure(session.OptionsFromConfig(cfg))
	}
	if m.newClient != nil && m.state == StateReady {
		m.backend = m.newClient(cfg)
		if m.sess != nil {
			m.sess.SetClient(m.backend)
		}
	}
	m.status.SetModel(cfg.Model, cfg.Streaming)
	m.syncViewport(true)

	cmds := []tea.Cmd{m.indicator.Init(), m.notify("Config reloaded", false)}
	if m.state != StateReady {
		cmds = append(cmds, m.indicator.Start())
	}
	return m, tea.Batch(cmds...)
}

// =============================================================================
// LAYOUT
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)
	m.input.SetWidth(msg.Width)
	m.status.SetWidth(msg.Width)
	m.layout()
	m.syncViewport(true)
	return m, nil
}

// layout sizes the viewport to the space the other parts leave.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	used := heightOf(m.renderPanel()) +
		heightOf(m.renderIndicator()) +
		heightOf(m.renderInput()) +
		heightOf(m.status.View()) +
		heightOf(m.renderShortHelp())

	h := m.height - used
	if h < 1 {
		h = 1
	}
	m.viewport.Height = h
	m.viewport.Width = m.contentWidth()
}

// contentWidth is the viewport width, less the scrollbar column.
func (m *Model) contentWidth() int {
	w := m.width
	if m.theme.ShowScrollbar {
		w--
	}
	if w < 10 {
		w = 10
	}
	return w
}

// syncViewport re-renders the transcript when it changed. The view follows
// new text only if it was already at the bottom.
func (m *Model) syncViewport(force bool) {
	if m.sess == nil {
		return
	}
	tr := m.sess.Transcript()
	n := tr.Len()
	if !force && n == m.renderedLen {
		return
	}
	m.renderedLen = n

	follow := m.viewport.AtBottom() || force
	m.viewport.SetContent(components.RenderSegments(tr.Segments(), m.contentWidth(), m.theme, m.hl))
	if follow {
		m.viewport.GotoBottom()
	}
}

// notify shows a transient status notice.
func (m Model) notify(text string, isError bool) tea.Cmd {
	m.status.SetNotice(text, isError)
	return tea.Tick(noticeDuration, func(time.Time) tea.Msg {
		return clearNoticeMsg{text: text}
	})
}

// showPanel replaces the panel content.
func (m *Model) showPanel(format string, args ...interface{}) {
	m.panel = strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	m.layout()
}
