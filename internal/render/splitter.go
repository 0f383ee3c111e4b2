// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import "strings"

// Fence is the delimiter that opens and closes a code segment.
const Fence = "```"

// =============================================================================
// EVENT TYPES
// =============================================================================

// Kind classifies an emitted piece of text.
type Kind int

const (
	Prose Kind = iota
	Code
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case Prose:
		return "prose"
	case Code:
		return "code"
	default:
		return "unknown"
	}
}

// State is the fence mode a Splitter is in.
type State int

const (
	InProse State = iota
	InCode
)

// String returns the state name.
func (s State) String() string {
	if s == InCode {
		return "in_code"
	}
	return "in_prose"
}

// Kind returns the event kind emitted while in this state.
func (s State) Kind() Kind {
	if s == InCode {
		return Code
	}
	return Prose
}

// Event is one classified piece of response text.
type Event struct {
	Kind Kind
	Text string
}

// Sink receives events in emission order.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) { f(e) }

// Discard is a Sink that drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// MultiSink fans each event out to every sink in order.
func MultiSink(sinks ...Sink) Sink {
	all := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			all = append(all, s)
		}
	}
	return SinkFunc(func(e Event) {
		for _, s := range all {
			s.Emit(e)
		}
	})
}

// =============================================================================
// SPLITTER
// =============================================================================

// Splitter classifies streamed fragments into prose and code events.
//
// Fragments are appended to a pending buffer which is scanned for Fence.
// Text before a fence is emitted with the current kind and the state flips.
// When no fence remains the buffer is emitted, except for a trailing run of
// one or two backticks: those may be the first bytes of a fence that the
// next fragment completes, so they stay pending until Feed or Finish
// resolves them.
type Splitter struct {
	sink    Sink
	state   State
	pending string
	fences  int
}

// NewSplitter creates a Splitter in prose state that emits to sink.
// A nil sink discards output.
func NewSplitter(sink Sink) *Splitter {
	if sink == nil {
		sink = Discard
	}
	return &Splitter{sink: sink}
}

// Feed appends a fragment and emits every event it resolves.
// Empty fragments are valid and still run the scan.
func (s *Splitter) Feed(fragment string) {
	s.pending += fragment

	for {
		i := strings.Index(s.pending, Fence)
		if i < 0 {
			break
		}
		s.emit(s.pending[:i])
		s.pending = s.pending[i+len(Fence):]
		s.toggle()
	}

	held := trailingTicks(s.pending)
	s.emit(s.pending[:len(s.pending)-held])
	s.pending = s.pending[len(s.pending)-held:]
}

// Finish flushes whatever is still pending as text of the current kind.
// The state is left as is, so an unterminated code block stays open.
func (s *Splitter) Finish() {
	s.emit(s.pending)
	s.pending = ""
}

// Reset drops pending text and returns to prose state.
// Call it before reusing a Splitter for a new response.
func (s *Splitter) Reset() {
	s.pending = ""
	s.state = InProse
	s.fences = 0
}

// State returns the current fence state.
func (s *Splitter) State() State {
	return s.state
}

// Pending returns text that has been fed but not yet emitted.
func (s *Splitter) Pending() string {
	return s.pending
}

// Delimiters returns how many fences were consumed since the last Reset.
func (s *Splitter) Delimiters() int {
	return s.fences
}

func (s *Splitter) emit(text string) {
	if text == "" {
		return
	}
	s.sink.Emit(Event{Kind: s.state.Kind(), Text: text})
}

func (s *Splitter) toggle() {
	s.fences++
	if s.state == InCode {
		s.state = InProse
	} else {
		s.state = InCode
	}
}

// trailingTicks counts trailing backticks that could start a fence,
// at most len(Fence)-1.
func trailingTicks(buf string) int {
	n := 0
	for n < len(Fence)-1 && n < len(buf) && buf[len(buf)-1-n] == '`' {
		n++
	}
	return n
}

// =============================================================================
// COLLECTOR
// =============================================================================

// Collector is a Sink that records every event it receives.
type Collector struct {
	Events []Event
}

// Emit records e.
func (c *Collector) Emit(e Event) {
	c.Events = append(c.Events, e)
}

// Text returns all recorded text concatenated, fences stripped.
func (c *Collector) Text() string {
	var b strings.Builder
	for _, e := range c.Events {
		b.WriteString(e.Text)
	}
	return b.String()
}

// TextOf returns the concatenated text of one kind.
func (c *Collector) TextOf(kind Kind) string {
	var b strings.Builder
	for _, e := range c.Events {
		if e.Kind == kind {
			b.WriteString(e.Text)
		}
	}
	return b.String()
}

// Reset clears recorded events.
func (c *Collector) Reset() {
	c.Events = nil
}
