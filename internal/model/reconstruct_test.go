// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/jeranaias/emochat/internal/render"
)

var ignoreUnexported = cmpopts.IgnoreUnexported(Message{})

// =============================================================================
// RECONSTRUCT TESTS
// =============================================================================

func TestReconstruct(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		system     string
		want       []Message
	}{
		{
			name:   "empty transcript",
			system: "sys",
			want:   []Message{Msg(RoleSystem, "sys")},
		},
		{
			name:       "whitespace transcript",
			transcript: "\n\n  \t\n",
			system:     "sys",
			want:       []Message{Msg(RoleSystem, "sys")},
		},
		{
			name:       "user then assistant",
			transcript: ">: hello\nhi there",
			system:     "sys",
			want: []Message{
				Msg(RoleSystem, "sys"),
				Msg(RoleUser, "hello"),
				Msg(RoleAssistant, "hi there"),
			},
		},
		{
			name:       "error line dropped",
			transcript: ">: a\nERROR: bad\nok\n>: b",
			want: []Message{
				Msg(RoleSystem, ""),
				Msg(RoleUser, "a"),
				Msg(RoleAssistant, "ok"),
				Msg(RoleUser, "b"),
			},
		},
		{
			name:       "error inside assistant turn does not end it",
			transcript: ">: q\nline one\nERROR: x\nline two",
			want: []Message{
				Msg(RoleSystem, ""),
				Msg(RoleUser, "q"),
				Msg(RoleAssistant, "line one\nline two"),
			},
		},
		{
			name:       "assistant keeps internal blank lines",
			transcript: ">: q\n\npara one\n\npara two\n\n",
			want: []Message{
				Msg(RoleSystem, ""),
				Msg(RoleUser, "q"),
				Msg(RoleAssistant, "para one\n\npara two"),
			},
		},
		{
			name:       "leading assistant text without user turn",
			transcript: "\n\nwelcome\n>: hi",
			want: []Message{
				Msg(RoleSystem, ""),
				Msg(RoleAssistant, "welcome"),
				Msg(RoleUser, "hi"),
			},
		},
		{
			name:       "consecutive user turns stay separate",
			transcript: ">: one\n>: two",
			want: []Message{
				Msg(RoleSystem, ""),
				Msg(RoleUser, "one"),
				Msg(RoleUser, "two"),
			},
		},
		{
			name:       "empty user turn dropped",
			transcript: ">: \n>:  \nanswer",
			want: []Message{
				Msg(RoleSystem, ""),
				Msg(RoleAssistant, "answer"),
			},
		},
		{
			name:       "only errors",
			transcript: "\nERROR: a\nERROR: b\n",
			system:     "s",
			want:       []Message{Msg(RoleSystem, "s")},
		},
		{
			name:       "prefix must be exact",
			transcript: ">:no space\n > indented",
			want: []Message{
				Msg(RoleSystem, ""),
				Msg(RoleAssistant, ">:no space\n > indented"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconstruct(tt.transcript, tt.system)
			if diff := cmp.Diff(tt.want, got, ignoreUnexported); diff != "" {
				t.Errorf("Reconstruct() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReconstruct_NeverEmitsEmptyContent(t *testing.T) {
	inputs := []string{
		"\n>: \n\n\nERROR: x\n\n",
		">: a\n   \n\t\n>: b\n\n",
		"\n\n\n",
	}
	for _, in := range inputs {
		for i, m := range Reconstruct(in, "") {
			if i == 0 {
				continue // the system message may be blank
			}
			if m.Content == "" {
				t.Errorf("Reconstruct(%q)[%d] has empty content", in, i)
			}
		}
	}
}

func TestReconstructWithPolicy_OmitEmpty(t *testing.T) {
	if got := ReconstructWithPolicy("", "", OmitEmpty); len(got) != 0 {
		t.Errorf("ReconstructWithPolicy(\"\", \"\", OmitEmpty) = %v, want empty", got)
	}

	got := ReconstructWithPolicy(">: hi", "  ", OmitEmpty)
	want := []Message{Msg(RoleUser, "hi")}
	if diff := cmp.Diff(want, got, ignoreUnexported); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	got = ReconstructWithPolicy(">: hi", "sys", OmitEmpty)
	want = []Message{Msg(RoleSystem, "sys"), Msg(RoleUser, "hi")}
	if diff := cmp.Diff(want, got, ignoreUnexported); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

// =============================================================================
// LIVE TRANSCRIPT TESTS
// =============================================================================

func TestReconstruct_FromLiveTranscript(t *testing.T) {
	tr := render.NewTranscript(nil)

	tr.WriteUser("write hello world")
	tr.BeginAssistant()
	sp := render.NewSplitter(tr)
	for _, frag := range []string{"Sure:\n`", "``go\nfmt.Println(\"hi\")\n``", "`\nThat's it."} {
		sp.Feed(frag)
	}
	sp.Finish()

	tr.WriteUser("again")
	tr.WriteError("API Error: timeout")
	tr.WriteUser("once more")
	tr.BeginAssistant()
	tr.Emit(render.Event{Kind: render.Prose, Text: "ok"})

	got := Reconstruct(tr.String(), "sys")
	want := []Message{
		Msg(RoleSystem, "sys"),
		Msg(RoleUser, "write hello world"),
		Msg(RoleAssistant, "Sure:\ngo\nfmt.Println(\"hi\")\n\nThat's it."),
		Msg(RoleUser, "again"),
		Msg(RoleUser, "once more"),
		Msg(RoleAssistant, "ok"),
	}
	if diff := cmp.Diff(want, got, ignoreUnexported); diff != "" {
		t.Errorf("Reconstruct() mismatch (-want +got):\n%s", diff)
	}
}

// =============================================================================
// ROUND TRIP TESTS
// =============================================================================

func TestRenderTranscript_Format(t *testing.T) {
	got := RenderTranscript([]Message{
		Msg(RoleSystem, "ignored"),
		Msg(RoleUser, "hi"),
		Msg(RoleAssistant, "hello"),
	})
	want := "\n>: hi\n\nhello"
	if got != want {
		t.Errorf("RenderTranscript() = %q, want %q", got, want)
	}
}

func TestRenderTranscript_RoundTrip(t *testing.T) {
	conversations := [][]Message{
		{},
		{Msg(RoleUser, "hi")},
		{Msg(RoleUser, "hi"), Msg(RoleAssistant, "hello")},
		{
			Msg(RoleUser, "explain"),
			Msg(RoleAssistant, "first para\n\nsecond para\n  indented"),
			Msg(RoleUser, "thanks"),
			Msg(RoleAssistant, "np"),
		},
		{Msg(RoleAssistant, "greeting first"), Msg(RoleUser, "ok")},
		{Msg(RoleUser, "padded  "), Msg(RoleAssistant, "  padded too\n")},
	}

	for _, msgs := range conversations {
		got := ReconstructWithPolicy(RenderTranscript(msgs), "", OmitEmpty)

		want := make([]Message, 0, len(msgs))
		for _, m := range msgs {
			want = append(want, Msg(m.Role, strings.TrimSpace(m.Content)))
		}
		if diff := cmp.Diff(want, got, ignoreUnexported, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	}
}

// =============================================================================
// POLICY PARSING TESTS
// =============================================================================

func TestParseSystemPromptPolicy(t *testing.T) {
	tests := []struct {
		in     string
		want   SystemPromptPolicy
		wantOK bool
	}{
		{"", IncludeEmpty, true},
		{"include_empty", IncludeEmpty, true},
		{"OMIT_EMPTY", OmitEmpty, true},
		{"bogus", IncludeEmpty, false},
	}
	for _, tt := range tests {
		got, ok := ParseSystemPromptPolicy(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseSystemPromptPolicy(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestParseHistorySource(t *testing.T) {
	tests := []struct {
		in     string
		want   HistorySource
		wantOK bool
	}{
		{"", SourceStructured, true},
		{"structured", SourceStructured, true},
		{" Transcript ", SourceTranscript, true},
		{"db", SourceStructured, false},
	}
	for _, tt := range tests {
		got, ok := ParseHistorySource(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseHistorySource(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
