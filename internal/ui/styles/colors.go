// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/emochat/internal/config"
)

// =============================================================================
// FIXED ACCENT COLORS
// =============================================================================

// Rose - Errors
var Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// Cyan - User prompts
var Cyan = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}

// Emerald - Success notices
var Emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}

// Amber - Warnings
var Amber = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}

// TextMuted - Hints, line numbers, status labels
var TextMuted = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}

// =============================================================================
// CONFIGURED PALETTE
// =============================================================================

// Palette holds the colors taken from the [ui] config section.
type Palette struct {
	Bg      lipgloss.Color
	Fg      lipgloss.Color
	CodeBg  lipgloss.Color
	CodeFg  lipgloss.Color
	Kaomoji lipgloss.Color
	Loading lipgloss.Color
	Border  lipgloss.Color
}

// PaletteFrom builds a palette from config. Empty values fall back to the
// defaults.
func PaletteFrom(ui config.UIConfig) Palette {
	def := config.Default().UI
	pick := func(v, fallback string) lipgloss.Color {
		if v == "" {
			return lipgloss.Color(fallback)
		}
		return lipgloss.Color(v)
	}
	return Palette{
		Bg:      pick(ui.BgColor, def.BgColor),
		Fg:      pick(ui.FgColor, def.FgColor),
		CodeBg:  pick(ui.CodeBg, def.CodeBg),
		CodeFg:  pick(ui.CodeFg, def.CodeFg),
		Kaomoji: pick(ui.KaomojiColor, def.KaomojiColor),
		Loading: pick(ui.LoadingColor, def.LoadingColor),
		Border:  pick(ui.BorderColor, def.BorderColor),
	}
}

// =============================================================================
// STATUS INDICATORS
// =============================================================================

// StatusIndicatorSet contains text indicators shown next to colored
// status text.
type StatusIndicatorSet struct {
	Success string
	Error   string
	Warning string
	Pending string
}

// StatusIndicators are ASCII-only for terminal compatibility.
var StatusIndicators = StatusIndicatorSet{
	Success: "[OK]",
	Error:   "[X]",
	Warning: "[!]",
	Pending: "[ ]",
}
