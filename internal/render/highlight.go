// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
)

// =============================================================================
// SYNTAX HIGHLIGHTING (Chroma-based)
// =============================================================================

// DefaultStyle is the chroma style used when none is configured.
const DefaultStyle = "monokai"

// Highlighter renders finished code segments with terminal syntax colors.
type Highlighter struct {
	// Style is a chroma style name, e.g. "monokai".
	Style string
	// Formatter is a chroma formatter name, e.g. "terminal256".
	Formatter string
}

// NewHighlighter creates a highlighter with the given chroma style.
// An empty style selects monokai.
func NewHighlighter(style string) *Highlighter {
	if style == "" {
		style = DefaultStyle
	}
	return &Highlighter{Style: style, Formatter: "terminal256"}
}

// Highlight colors a raw code segment as produced by the Splitter. A leading
// info string line (e.g. "go") selects the lexer and is dropped from the
// output. The plain code is returned if highlighting fails.
func (h *Highlighter) Highlight(segment string) string {
	lang, code := SplitLanguage(segment)
	return h.HighlightCode(code, lang)
}

// HighlightCode colors code using the lexer for language, or a detected one.
func (h *Highlighter) HighlightCode(code, language string) string {
	var lexer chroma.Lexer
	if language != "" {
		lexer = lexers.Get(language)
	}
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get(h.Style)
	if style == nil {
		style = chromaStyles.Fallback
	}

	formatter := formatters.Get(h.Formatter)
	if formatter == nil {
		formatter = formatters.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// SplitLanguage separates the info string that follows an opening fence
// from the code body. "go\nfmt.Println()\n" yields ("go", "fmt.Println()\n").
// Segments without a plausible info string come back unchanged with an
// empty language.
func SplitLanguage(segment string) (string, string) {
	nl := strings.IndexByte(segment, '\n')
	if nl < 0 {
		return "", segment
	}
	first := strings.TrimSpace(segment[:nl])
	if first == "" {
		return "", segment[nl+1:]
	}
	if len(first) > 32 || strings.ContainsAny(first, " \t(){};=") {
		return "", segment
	}
	return first, segment[nl+1:]
}
