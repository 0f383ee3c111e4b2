// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"strings"
	"sync"
)

// Turn-prefix wire convention. These strings are persisted verbatim and
// parsed back by model.Reconstruct, so they must not change.
const (
	UserPrefix  = ">: "
	ErrorPrefix = "ERROR: "
)

// =============================================================================
// SEGMENTS
// =============================================================================

// Tag labels a stretch of transcript text for display styling.
type Tag string

const (
	TagUser      Tag = "user"
	TagAssistant Tag = "assistant"
	TagCode      Tag = "code"
	TagError     Tag = "error"
)

// TagFor maps an event kind to its display tag.
func TagFor(k Kind) Tag {
	if k == Code {
		return TagCode
	}
	return TagAssistant
}

// Segment is one appended stretch of transcript text.
type Segment struct {
	Tag  Tag
	Text string
}

// Appender persists transcript text as it is written.
type Appender interface {
	Append(tag Tag, text string) error
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is the flat display log of a conversation.
//
// It is the display Sink for a Splitter and also writes user turns and
// error notices using the turn-prefix convention. Text is kept in memory
// and, when an Appender is set, persisted as it arrives. Emit cannot return
// an error, so the first persistence failure is kept and reported by Err.
//
// Thread-safety: writes come from the turn goroutine while the UI reads,
// so all methods lock.
type Transcript struct {
	mu       sync.Mutex
	segments []Segment
	text     strings.Builder
	appender Appender
	err      error
}

// NewTranscript creates an empty transcript. app may be nil.
func NewTranscript(app Appender) *Transcript {
	return &Transcript{appender: app}
}

// WriteUser appends a user turn as "\n>: {text}\n".
func (t *Transcript) WriteUser(text string) {
	t.append(TagUser, "\n"+UserPrefix+text+"\n")
}

// BeginAssistant separates an upcoming assistant response from the turn
// before it. Assistant text has no reserved prefix.
func (t *Transcript) BeginAssistant() {
	t.append(TagAssistant, "\n")
}

// WriteError appends a diagnostic line as "\nERROR: {msg}\n".
func (t *Transcript) WriteError(msg string) {
	t.append(TagError, "\n"+ErrorPrefix+msg+"\n")
}

// Emit appends a splitter event.
func (t *Transcript) Emit(e Event) {
	t.append(TagFor(e.Kind), e.Text)
}

// Restore replaces the in-memory contents with previously persisted
// segments without writing them to the Appender again.
func (t *Transcript) Restore(segments []Segment) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.segments = t.segments[:0]
	t.text.Reset()
	for _, s := range segments {
		t.segments = append(t.segments, s)
		t.text.WriteString(s.Text)
	}
}

// Clear empties the in-memory transcript.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.segments = nil
	t.text.Reset()
	t.err = nil
}

// String returns the full transcript text.
func (t *Transcript) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text.String()
}

// Len returns the transcript length in bytes.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text.Len()
}

// Segments returns a copy of the tagged segments.
func (t *Transcript) Segments() []Segment {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Segment, len(t.segments))
	copy(out, t.segments)
	return out
}

// Err returns the first persistence error, if any.
func (t *Transcript) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Transcript) append(tag Tag, text string) {
	if text == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Consecutive writes with the same tag share a segment so a streamed
	// response does not produce one segment per token.
	if n := len(t.segments); n > 0 && t.segments[n-1].Tag == tag {
		t.segments[n-1].Text += text
	} else {
		t.segments = append(t.segments, Segment{Tag: tag, Text: text})
	}
	t.text.WriteString(text)

	if t.appender != nil {
		if err := t.appender.Append(tag, text); err != nil && t.err == nil {
			t.err = err
		}
	}
}

// =============================================================================
// CODE BLOCK LOOKUP
// =============================================================================

// LastCode returns the text of the most recent code segment, or "" if the
// transcript has none.
func (t *Transcript) LastCode() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.segments) - 1; i >= 0; i-- {
		if t.segments[i].Tag == TagCode {
			return t.segments[i].Text
		}
	}
	return ""
}
