// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"strings"
	"sync"

	"github.com/jeranaias/emochat/internal/render"
	"github.com/jeranaias/emochat/internal/ui/components"
	"github.com/jeranaias/emochat/internal/ui/styles"
)

// =============================================================================
// STREAM PRINTER
// =============================================================================

// printer writes splitter events to a terminal or pipe. Prose is written
// as it arrives. Code is held until the block ends, then drawn as a
// highlighted block, or re-fenced when output is plain.
type printer struct {
	mu  sync.Mutex
	out io.Writer

	// theme and hl are nil for plain output.
	theme *styles.Theme
	hl    *render.Highlighter
	width int

	code   strings.Builder
	inCode bool
	last   byte

	// onFirst runs once, before the first event is written.
	onFirst func()
	started bool
}

// newPrinter creates a printer. With color off, code blocks are written
// back with their fences so the output stays valid markdown.
func newPrinter(out io.Writer, theme *styles.Theme, color bool, width int) *printer {
	p := &printer{out: out, width: width}
	if color && theme != nil {
		p.theme = theme
		p.hl = render.NewHighlighter(theme.CodeStyle)
	}
	return p
}

// Emit implements render.Sink.
func (p *printer) Emit(e render.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		p.started = true
		if p.onFirst != nil {
			p.onFirst()
		}
	}

	if e.Kind == render.Code {
		p.inCode = true
		p.code.WriteString(e.Text)
		return
	}
	p.flushCode()
	p.write(e.Text)
}

// Flush writes a code block left open when the response ended.
func (p *printer) Flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushCode()
}

// EndLine writes a newline unless the output already ends with one.
func (p *printer) EndLine() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last != 0 && p.last != '\n' {
		p.write("\n")
	}
}

func (p *printer) flushCode() {
	if !p.inCode {
		return
	}
	segment := p.code.String()
	p.code.Reset()
	p.inCode = false

	if p.hl == nil {
		p.write(render.Fence + segment + render.Fence)
		return
	}
	if p.last != 0 && p.last != '\n' {
		p.write("\n")
	}
	cb := components.ParseCodeSegment(segment)
	cb.SetMaxWidth(p.width)
	p.write(cb.Render(p.theme, p.hl) + "\n")
}

func (p *printer) write(s string) {
	if s == "" {
		return
	}
	_, _ = io.WriteString(p.out, s)
	p.last = s[len(s)-1]
}
