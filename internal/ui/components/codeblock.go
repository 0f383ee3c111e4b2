// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/emochat/internal/render"
	"github.com/jeranaias/emochat/internal/ui/styles"
)

// =============================================================================
// CODE BLOCK RENDERER
// =============================================================================

// CodeBlock is one code segment of the transcript, ready to draw.
type CodeBlock struct {
	Language string
	Code     string
	MaxWidth int

	// LineNumbers adds a right-aligned gutter.
	LineNumbers bool
}

// NewCodeBlock creates a new code block.
func NewCodeBlock(language, code string) CodeBlock {
	return CodeBlock{
		Language:    language,
		Code:        code,
		MaxWidth:    80,
		LineNumbers: true,
	}
}

// ParseCodeSegment builds a code block from a raw code segment as the
// splitter emits it: the info string line first, then the body.
func ParseCodeSegment(segment string) CodeBlock {
	lang, code := render.SplitLanguage(segment)
	return NewCodeBlock(lang, code)
}

// SetMaxWidth sets the maximum width for the code block.
func (c *CodeBlock) SetMaxWidth(width int) {
	c.MaxWidth = width
}

// Plain returns the code without the info string or trailing newlines.
// This is what gets copied to the clipboard.
func (c CodeBlock) Plain() string {
	return strings.TrimRight(c.Code, "\n")
}

// Render draws the block with syntax colors from hl. A nil highlighter
// leaves the code uncolored.
func (c CodeBlock) Render(theme *styles.Theme, hl *render.Highlighter) string {
	code := c.Plain()

	highlighted := code
	if hl != nil && code != "" {
		highlighted = strings.TrimRight(hl.HighlightCode(code, c.Language), "\n")
	}
	lines := strings.Split(highlighted, "\n")

	if c.LineNumbers {
		for i, line := range lines {
			lines[i] = theme.CodeLineNum.Render(fmt.Sprint(i+1)) + line
		}
	}

	var header string
	if c.Language != "" {
		header = theme.CodeLangBadge.Render(c.Language) + "\n"
	}

	maxWidth := c.MaxWidth - 2
	if maxWidth < 20 {
		maxWidth = 20
	}

	return theme.CodeBlock.
		MaxWidth(maxWidth).
		Render(header + strings.Join(lines, "\n"))
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// RenderSegments draws transcript segments for the viewport. Text segments
// are wrapped to width and styled by tag. Code segments become blocks; a
// code segment that is still streaming is drawn the same way and simply
// grows on the next render.
func RenderSegments(segments []render.Segment, width int, theme *styles.Theme, hl *render.Highlighter) string {
	if width <= 0 {
		width = 80
	}

	var sb strings.Builder
	for _, seg := range segments {
		if seg.Tag == render.TagCode {
			cb := ParseCodeSegment(seg.Text)
			cb.SetMaxWidth(width)
			// A fence always ends a line of prose, so the block starts
			// on its own line.
			if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
				sb.WriteString("\n")
			}
			sb.WriteString(cb.Render(theme, hl))
			continue
		}
		sb.WriteString(renderText(seg.Text, width, theme.StyleFor(seg.Tag)))
	}
	return sb.String()
}

// renderText styles text line by line so embedded newlines survive and
// each line wraps on its own.
func renderText(text string, width int, style lipgloss.Style) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line == "" {
			continue
		}
		lines[i] = style.Width(width).Render(line)
	}
	return strings.Join(lines, "\n")
}
