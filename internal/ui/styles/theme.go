// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/emochat/internal/config"
	"github.com/jeranaias/emochat/internal/render"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	Palette Palette

	// CodeStyle is the chroma style for code blocks.
	CodeStyle string

	ShowScrollbar bool

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// APPLICATION CONTAINER STYLES
	// ==========================================================================

	App       lipgloss.Style
	Title     lipgloss.Style
	Separator lipgloss.Style

	// ==========================================================================
	// TRANSCRIPT STYLES
	// ==========================================================================

	User      lipgloss.Style
	Assistant lipgloss.Style
	Error     lipgloss.Style

	// ==========================================================================
	// CODE BLOCK STYLES
	// ==========================================================================

	CodeBlock     lipgloss.Style
	CodeLangBadge lipgloss.Style
	CodeLineNum   lipgloss.Style

	// ==========================================================================
	// INPUT AREA STYLES
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar    lipgloss.Style
	StatusLabel  lipgloss.Style
	StatusValue  lipgloss.Style
	ModelBadge   lipgloss.Style
	Notice       lipgloss.Style
	NoticeError  lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style

	// ==========================================================================
	// ANIMATION STYLES
	// ==========================================================================

	Loading      lipgloss.Style
	Kaomoji      lipgloss.Style
	ThinkingTime lipgloss.Style
}

// NewTheme creates a theme from the [ui] config section.
func NewTheme(ui config.UIConfig) *Theme {
	colorProfile := termenv.ColorProfile()

	t := &Theme{
		IsDark:        termenv.HasDarkBackground(),
		HasTrueColor:  colorProfile == termenv.TrueColor,
		ColorProfile:  colorProfile,
		Palette:       PaletteFrom(ui),
		CodeStyle:     ui.CodeStyle,
		ShowScrollbar: !ui.HideScrollbars,
	}
	if t.CodeStyle == "" {
		t.CodeStyle = render.DefaultStyle
	}

	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	p := t.Palette

	t.App = lipgloss.NewStyle().
		Foreground(p.Fg).
		Background(p.Bg)

	t.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(p.Kaomoji)

	t.Separator = lipgloss.NewStyle().
		Foreground(p.Border)

	// Transcript
	t.User = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.Assistant = lipgloss.NewStyle().
		Foreground(p.Fg)

	t.Error = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	// Code blocks
	t.CodeBlock = lipgloss.NewStyle().
		Foreground(p.CodeFg).
		Background(p.CodeBg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(p.Border).
		Padding(0, 1)

	t.CodeLangBadge = lipgloss.NewStyle().
		Foreground(p.Bg).
		Background(p.Border).
		Padding(0, 1).
		Bold(true)

	t.CodeLineNum = lipgloss.NewStyle().
		Foreground(TextMuted).
		Width(4).
		Align(lipgloss.Right).
		MarginRight(1)

	// Input area
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(p.Border)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Foreground(p.Fg).
		Padding(0, 1)

	t.StatusLabel = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.StatusValue = lipgloss.NewStyle().
		Foreground(p.Fg).
		Bold(true)

	t.ModelBadge = lipgloss.NewStyle().
		Foreground(p.Bg).
		Background(p.Loading).
		Padding(0, 1).
		Bold(true)

	t.Notice = lipgloss.NewStyle().
		Foreground(Emerald)

	t.NoticeError = lipgloss.NewStyle().
		Foreground(Rose)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(p.Loading).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Animation
	t.Loading = lipgloss.NewStyle().
		Foreground(p.Loading)

	t.Kaomoji = lipgloss.NewStyle().
		Foreground(p.Kaomoji)

	t.ThinkingTime = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
}

// StyleFor returns the style for a transcript segment tag. Code segments
// are rendered as blocks and get the plain code style here.
func (t *Theme) StyleFor(tag render.Tag) lipgloss.Style {
	switch tag {
	case render.TagUser:
		return t.User
	case render.TagError:
		return t.Error
	case render.TagCode:
		return lipgloss.NewStyle().Foreground(t.Palette.CodeFg)
	default:
		return t.Assistant
	}
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
