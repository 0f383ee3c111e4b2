// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/emochat/internal/ui/styles"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat view.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	parts := []string{m.renderTranscript()}
	if p := m.renderPanel(); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts,
		m.renderIndicator(),
		m.renderInput(),
		m.status.View(),
		m.renderShortHelp(),
	)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderTranscript draws the viewport with an optional scrollbar column.
func (m Model) renderTranscript() string {
	content := m.viewport.View()
	if !m.theme.ShowScrollbar {
		return content
	}
	bar := renderScrollbar(m.viewport.Height, m.viewport.TotalLineCount(), m.viewport.ScrollPercent(), m.theme)
	return lipgloss.JoinHorizontal(lipgloss.Top, content, bar)
}

// renderScrollbar draws a one-column track with a thumb sized to the
// visible fraction of the content.
func renderScrollbar(height, total int, percent float64, theme *styles.Theme) string {
	if height <= 0 {
		return ""
	}
	if total <= height {
		return strings.TrimRight(strings.Repeat(" \n", height), "\n")
	}

	thumb := height * height / total
	if thumb < 1 {
		thumb = 1
	}
	top := int(percent * float64(height-thumb))

	lines := make([]string, height)
	for i := range lines {
		if i >= top && i < top+thumb {
			lines[i] = theme.Separator.Render("┃")
		} else {
			lines[i] = theme.Separator.Render("│")
		}
	}
	return strings.Join(lines, "\n")
}

// renderPanel draws command output or the full help.
func (m Model) renderPanel() string {
	var body string
	switch {
	case m.showHelp:
		h := m.help
		h.ShowAll = true
		h.Width = m.width
		body = h.View(m.keys) + "\n\n" + commandHelp()
	case m.panel != "":
		body = m.panel
	default:
		return ""
	}

	sep := m.theme.Separator.Render(strings.Repeat("─", max(m.width, 1)))
	hint := m.theme.ShortcutDesc.Render("Esc to close")
	return sep + "\n" + body + "\n" + hint
}

// renderIndicator draws the activity line above the input.
func (m Model) renderIndicator() string {
	return m.indicator.View()
}

// renderInput draws the text input.
func (m Model) renderInput() string {
	return m.theme.InputContainer.Render(m.input.View())
}

// renderShortHelp draws the one-line key hints.
func (m Model) renderShortHelp() string {
	h := m.help
	h.Width = m.width
	return h.ShortHelpView(m.keys.ShortHelp())
}

// newHelp creates the key help with theme colors.
func newHelp(theme *styles.Theme) help.Model {
	h := help.New()
	h.ShortSeparator = " | "
	h.Styles.ShortKey = theme.ShortcutKey
	h.Styles.ShortDesc = theme.ShortcutDesc
	h.Styles.ShortSeparator = theme.Separator
	h.Styles.FullKey = theme.ShortcutKey
	h.Styles.FullDesc = theme.ShortcutDesc
	h.Styles.FullSeparator = theme.Separator
	return h
}

// heightOf counts the rendered lines of s. Empty strings take no space.
func heightOf(s string) int {
	if s == "" {
		return 0
	}
	return lipgloss.Height(s)
}
