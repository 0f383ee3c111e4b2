// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/emochat/internal/model"
	"github.com/jeranaias/emochat/internal/telemetry"
	"github.com/jeranaias/emochat/internal/ui/styles"
	"github.com/jeranaias/emochat/internal/util"
)

// =============================================================================
// STATUS
// =============================================================================

// Status represents the current request state.
type Status int

const (
	StatusReady Status = iota
	StatusThinking
	StatusStreaming
	StatusError
)

// String returns the display string for the status.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "Ready"
	case StatusThinking:
		return "Thinking..."
	case StatusStreaming:
		return "Streaming..."
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Icon returns a text indicator for the status.
func (s Status) Icon() string {
	switch s {
	case StatusReady:
		return styles.StatusIndicators.Success
	case StatusThinking:
		return styles.StatusIndicators.Pending
	case StatusStreaming:
		return "~"
	case StatusError:
		return styles.StatusIndicators.Error
	default:
		return "?"
	}
}

// =============================================================================
// STATUS LINE FORMATS
// =============================================================================

// FormatTokenLine renders the token and timing summary of the last response.
func FormatTokenLine(tokens telemetry.TokenCount, elapsed time.Duration) string {
	return fmt.Sprintf("Tokens: %d in / %d out (Total: %d) | Response time: %.2fs",
		tokens.Input, tokens.Output, tokens.Total(), elapsed.Seconds())
}

// FormatPingLine renders the latency and wall clock line.
func FormatPingLine(ping string, now time.Time) string {
	if ping == "" {
		ping = "N/A"
	}
	return fmt.Sprintf("Ping: %s | Time: %s", ping, now.Format("15:04:05"))
}

// =============================================================================
// STATUS BAR COMPONENT
// =============================================================================

// StatusBar is the two-line footer: model and request state on top, token
// summary and ping below.
type StatusBar struct {
	ModelName string
	Streaming bool
	Status    Status

	Tokens       telemetry.TokenCount
	ResponseTime time.Duration
	hasStats     bool

	// ContextUsed is the estimated token size of the history.
	ContextUsed int

	Ping string

	notice      string
	noticeError bool

	Width int
	theme *styles.Theme
	now   func() time.Time
}

// NewStatusBar creates a new StatusBar component.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		Status: StatusReady,
		Width:  80,
		theme:  theme,
		now:    time.Now,
	}
}

// SetWidth updates the status bar width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// SetTheme swaps the styles after a config reload.
func (s *StatusBar) SetTheme(theme *styles.Theme) {
	s.theme = theme
}

// SetModel updates the model name.
func (s *StatusBar) SetModel(name string, streaming bool) {
	s.ModelName = name
	s.Streaming = streaming
}

// SetStatus updates the current status.
func (s *StatusBar) SetStatus(status Status) {
	s.Status = status
}

// SetStats records the numbers of the last finished response.
func (s *StatusBar) SetStats(tokens telemetry.TokenCount, elapsed time.Duration) {
	s.Tokens = tokens
	s.ResponseTime = elapsed
	s.hasStats = true
}

// SetPing records the formatted latency, e.g. "42ms" or "N/A".
func (s *StatusBar) SetPing(ping string) {
	s.Ping = ping
}

// SetNotice shows a transient message in place of the status text.
func (s *StatusBar) SetNotice(msg string, isError bool) {
	s.notice = msg
	s.noticeError = isError
}

// ClearNotice removes the transient message.
func (s *StatusBar) ClearNotice() {
	s.notice = ""
	s.noticeError = false
}

// Notice returns the transient message, if any.
func (s *StatusBar) Notice() string {
	return s.notice
}

// TokenLine returns the token summary, or a hint before the first response.
func (s *StatusBar) TokenLine() string {
	if !s.hasStats {
		return "Tokens: - | Response time: -"
	}
	return FormatTokenLine(s.Tokens, s.ResponseTime)
}

// View renders the status bar.
func (s *StatusBar) View() string {
	width := s.Width
	if width <= 0 {
		width = 80
	}
	inner := width - 2

	top := s.joinEnds(s.renderLeft(), s.renderRight(), inner)
	bottom := s.joinEnds(
		s.theme.StatusLabel.Render(s.TokenLine()),
		s.theme.StatusLabel.Render(FormatPingLine(s.Ping, s.now())),
		inner,
	)

	return s.theme.StatusBar.Render(top + "\n" + bottom)
}

func (s *StatusBar) renderLeft() string {
	badge := s.theme.ModelBadge.Render(util.TruncateWidth(s.ModelName, 32))
	mode := "stream"
	if !s.Streaming {
		mode = "batch"
	}
	return badge + " " + s.theme.StatusLabel.Render(mode)
}

func (s *StatusBar) renderRight() string {
	if s.notice != "" {
		style := s.theme.Notice
		if s.noticeError {
			style = s.theme.NoticeError
		}
		return style.Render(s.notice)
	}

	status := s.Status.Icon() + " " + s.Status.String()
	if s.ContextUsed > 0 && s.ModelName != "" {
		window := model.ContextWindow(s.ModelName)
		pct := float64(s.ContextUsed) * 100 / float64(window)
		status = fmt.Sprintf("ctx %.1f%% | %s", pct, status)
	}
	return s.theme.StatusValue.Render(status)
}

// joinEnds places left and right on one line of width columns. When both do
// not fit, right goes onto its own line.
func (s *StatusBar) joinEnds(left, right string, width int) string {
	lw, rw := lipgloss.Width(left), lipgloss.Width(right)
	if lw+rw+1 > width {
		return left + "\n" + right
	}
	return left + strings.Repeat(" ", width-lw-rw) + right
}
