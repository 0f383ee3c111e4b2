// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/emochat/internal/ui/styles"
)

// =============================================================================
// ACTIVITY INDICATOR
// =============================================================================

// Indicator shows the thinking animation while a request runs and the
// kaomoji wave while idle. Both animations cycle indefinitely.
type Indicator struct {
	thinking spinner.Model
	idle     spinner.Model

	active    bool
	startTime time.Time

	theme *styles.Theme
}

// NewIndicator creates an indicator from the loading and idle animations.
func NewIndicator(loading, idle styles.SpinnerConfig, theme *styles.Theme) Indicator {
	return Indicator{
		thinking: newSpinner(loading, theme.Loading),
		idle:     newSpinner(idle, theme.Kaomoji),
		theme:    theme,
	}
}

func newSpinner(cfg styles.SpinnerConfig, style lipgloss.Style) spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Spinner{Frames: cfg.Frames, FPS: cfg.Interval}
	s.Style = style
	return s
}

// =============================================================================
// STATE MANAGEMENT
// =============================================================================

// Init starts the idle animation.
func (i Indicator) Init() tea.Cmd {
	return i.idle.Tick
}

// Start switches to the thinking animation and records the start time.
func (i *Indicator) Start() tea.Cmd {
	i.active = true
	i.startTime = time.Now()
	return i.thinking.Tick
}

// Stop returns to the idle animation.
func (i *Indicator) Stop() {
	i.active = false
}

// IsActive returns whether the thinking animation is running.
func (i *Indicator) IsActive() bool {
	return i.active
}

// Elapsed returns the time since Start.
func (i *Indicator) Elapsed() time.Duration {
	if i.startTime.IsZero() {
		return 0
	}
	return time.Since(i.startTime)
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Update advances whichever animation the tick belongs to. The thinking
// spinner stops ticking once the indicator is stopped.
func (i Indicator) Update(msg tea.Msg) (Indicator, tea.Cmd) {
	tick, ok := msg.(spinner.TickMsg)
	if !ok {
		return i, nil
	}

	var cmd tea.Cmd
	switch tick.ID {
	case i.idle.ID():
		i.idle, cmd = i.idle.Update(msg)
	case i.thinking.ID():
		if !i.active {
			return i, nil
		}
		i.thinking, cmd = i.thinking.Update(msg)
	}
	return i, cmd
}

// View renders the current animation frame.
func (i Indicator) View() string {
	if !i.active {
		return i.idle.View()
	}
	elapsed := i.theme.ThinkingTime.Render(formatElapsed(i.Elapsed()))
	return i.thinking.View() + i.theme.Loading.Render(" Thinking") + " " + elapsed
}

// formatElapsed renders a duration as "1.2s" or "1m05s".
func formatElapsed(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm%02ds", m, s)
}
