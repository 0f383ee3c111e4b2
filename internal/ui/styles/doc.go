// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the emochat TUI.

Colors come from the [ui] section of the config file (bg_color, fg_color,
code_bg, code_fg, kaomoji_color, loading_color, border_color). A few fixed
accent colors (Rose for errors, Cyan for user prompts) use Lip Gloss
AdaptiveColor so they read on both light and dark terminals.

# Theme (theme.go)

NewTheme builds every Lip Gloss style once from the config palette and
records the terminal's color profile via termenv:

	theme := styles.NewTheme(cfg.UI)
	theme.StyleFor(render.TagError).Render(line)

# Animations (animations.go)

LoadingSpinner and IdleSpinner turn loading_frames and kaomojis into
SpinnerConfig values for the bubbles spinner. Cycle steps through frames
forever for callers outside Bubble Tea, such as the line REPL.
*/
package styles
