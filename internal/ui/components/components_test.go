// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/emochat/internal/config"
	"github.com/jeranaias/emochat/internal/render"
	"github.com/jeranaias/emochat/internal/telemetry"
	"github.com/jeranaias/emochat/internal/ui/styles"
)

func testTheme() *styles.Theme {
	return styles.NewTheme(config.Default().UI)
}

// =============================================================================
// CODE BLOCK TESTS
// =============================================================================

func TestParseCodeSegment(t *testing.T) {
	tests := []struct {
		segment string
		lang    string
		plain   string
	}{
		{"go\nfmt.Println(1)\n", "go", "fmt.Println(1)"},
		{"\nplain text\n\n", "", "plain text"},
		{"x := f(1)", "", "x := f(1)"},
	}

	for _, tt := range tests {
		cb := ParseCodeSegment(tt.segment)
		if cb.Language != tt.lang {
			t.Errorf("ParseCodeSegment(%q).Language = %q, want %q", tt.segment, cb.Language, tt.lang)
		}
		if cb.Plain() != tt.plain {
			t.Errorf("ParseCodeSegment(%q).Plain() = %q, want %q", tt.segment, cb.Plain(), tt.plain)
		}
	}
}

func TestCodeBlockRender(t *testing.T) {
	theme := testTheme()
	cb := NewCodeBlock("python", "print('a')\nprint('b')\n")

	out := ansi.Strip(cb.Render(theme, render.NewHighlighter("")))

	assert.Contains(t, out, "python")
	assert.Contains(t, out, "print('a')")
	assert.Contains(t, out, "print('b')")
	assert.Contains(t, out, "1 ")
	assert.Contains(t, out, "2 ")
}

func TestCodeBlockRender_NoHighlighter(t *testing.T) {
	cb := NewCodeBlock("", "a < b")
	cb.LineNumbers = false

	out := ansi.Strip(cb.Render(testTheme(), nil))
	assert.Contains(t, out, "a < b")
}

func TestRenderSegments(t *testing.T) {
	theme := testTheme()
	segments := []render.Segment{
		{Tag: render.TagUser, Text: "\n>: show code\n"},
		{Tag: render.TagAssistant, Text: "\nHere:\n"},
		{Tag: render.TagCode, Text: "sh\necho hi\n"},
		{Tag: render.TagAssistant, Text: "\nDone."},
		{Tag: render.TagError, Text: "\nERROR: API Error: boom\n"},
	}

	out := ansi.Strip(RenderSegments(segments, 60, theme, render.NewHighlighter("")))

	for _, want := range []string{">: show code", "Here:", "echo hi", "Done.", "ERROR: API Error: boom"} {
		assert.Contains(t, out, want)
	}
	// Fence delimiters never reach the screen.
	assert.NotContains(t, out, "```")

	if strings.Index(out, "Here:") > strings.Index(out, "echo hi") {
		t.Error("segments should render in order")
	}
}

// =============================================================================
// STATUS BAR TESTS
// =============================================================================

func TestFormatTokenLine(t *testing.T) {
	got := FormatTokenLine(telemetry.TokenCount{Input: 12, Output: 30}, 1234*time.Millisecond)
	want := "Tokens: 12 in / 30 out (Total: 42) | Response time: 1.23s"
	if got != want {
		t.Errorf("FormatTokenLine() = %q, want %q", got, want)
	}
}

func TestFormatPingLine(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 5, 7, 0, time.UTC)

	tests := []struct {
		ping string
		want string
	}{
		{"42ms", "Ping: 42ms | Time: 09:05:07"},
		{"N/A", "Ping: N/A | Time: 09:05:07"},
		{"", "Ping: N/A | Time: 09:05:07"},
	}
	for _, tt := range tests {
		if got := FormatPingLine(tt.ping, now); got != tt.want {
			t.Errorf("FormatPingLine(%q) = %q, want %q", tt.ping, got, tt.want)
		}
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusReady, "Ready"},
		{StatusThinking, "Thinking..."},
		{StatusStreaming, "Streaming..."},
		{StatusError, "Error"},
		{Status(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestStatusBarView(t *testing.T) {
	sb := NewStatusBar(testTheme())
	sb.now = func() time.Time { return time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC) }
	sb.SetWidth(120)
	sb.SetModel("deepseek-chat", true)
	sb.SetPing("15ms")

	out := ansi.Strip(sb.View())
	assert.Contains(t, out, "deepseek-chat")
	assert.Contains(t, out, "stream")
	assert.Contains(t, out, "Ready")
	assert.Contains(t, out, "Tokens: - | Response time: -")
	assert.Contains(t, out, "Ping: 15ms | Time: 12:00:00")

	sb.SetStats(telemetry.TokenCount{Input: 1, Output: 2}, time.Second)
	sb.SetStatus(StatusStreaming)
	out = ansi.Strip(sb.View())
	assert.Contains(t, out, "Tokens: 1 in / 2 out (Total: 3) | Response time: 1.00s")
	assert.Contains(t, out, "Streaming...")
}

func TestStatusBarNotice(t *testing.T) {
	sb := NewStatusBar(testTheme())
	sb.SetWidth(100)

	sb.SetNotice("Copied code block", false)
	assert.Equal(t, "Copied code block", sb.Notice())
	assert.Contains(t, ansi.Strip(sb.View()), "Copied code block")
	assert.NotContains(t, ansi.Strip(sb.View()), "Ready")

	sb.ClearNotice()
	assert.Empty(t, sb.Notice())
	assert.Contains(t, ansi.Strip(sb.View()), "Ready")
}

func TestStatusBarNarrowWraps(t *testing.T) {
	sb := NewStatusBar(testTheme())
	sb.SetWidth(30)
	sb.SetModel("deepseek-chat", false)

	out := ansi.Strip(sb.View())
	assert.Contains(t, out, "batch")
	assert.GreaterOrEqual(t, strings.Count(out, "\n"), 2)
}

// =============================================================================
// INDICATOR TESTS
// =============================================================================

func TestIndicatorStartStop(t *testing.T) {
	theme := testTheme()
	ind := NewIndicator(
		styles.SpinnerConfig{Frames: []string{"a", "b"}, Interval: 10 * time.Millisecond},
		styles.SpinnerConfig{Frames: []string{"(^_^)", "(-_-)"}, Interval: 10 * time.Millisecond},
		theme,
	)

	assert.False(t, ind.IsActive())
	assert.Equal(t, time.Duration(0), ind.Elapsed())
	assert.Contains(t, ansi.Strip(ind.View()), "(^_^)")

	cmd := ind.Start()
	assert.NotNil(t, cmd)
	assert.True(t, ind.IsActive())
	assert.Contains(t, ansi.Strip(ind.View()), "Thinking")

	ind.Stop()
	assert.False(t, ind.IsActive())
	assert.NotContains(t, ansi.Strip(ind.View()), "Thinking")
}

func TestIndicatorIdleAdvances(t *testing.T) {
	ind := NewIndicator(
		styles.SpinnerConfig{Frames: []string{"a"}, Interval: time.Millisecond},
		styles.SpinnerConfig{Frames: []string{"one", "two"}, Interval: time.Millisecond},
		testTheme(),
	)

	msg := ind.Init()()
	ind, cmd := ind.Update(msg)
	assert.NotNil(t, cmd)
	assert.Contains(t, ansi.Strip(ind.View()), "two")
}

func TestIndicatorIgnoresThinkingTickWhenStopped(t *testing.T) {
	ind := NewIndicator(
		styles.SpinnerConfig{Frames: []string{"a", "b"}, Interval: time.Millisecond},
		styles.SpinnerConfig{Frames: []string{"x"}, Interval: time.Millisecond},
		testTheme(),
	)

	tick := ind.Start()()
	ind.Stop()

	_, cmd := ind.Update(tick)
	assert.Nil(t, cmd)

	_, cmd = ind.Update(spinner.TickMsg{})
	assert.Nil(t, cmd)
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{1200 * time.Millisecond, "1.2s"},
		{65 * time.Second, "1m05s"},
	}
	for _, tt := range tests {
		if got := formatElapsed(tt.d); got != tt.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
