// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns a streamed model response into classified display output.
//
// The response arrives as arbitrary text fragments. A Splitter scans them
// for triple-backtick fences, which may be cut anywhere by the network, and
// forwards each piece of text to a Sink tagged as prose or code. The
// Transcript sink appends those pieces to the flat conversation log using
// the turn-prefix convention that the model package later parses back into
// role-tagged history.
//
// # Key Types
//
//   - Splitter: fence-aware fragment classifier, one per response
//   - Event: a (Kind, Text) output piece
//   - Sink: receiver of events (Transcript, Collector, SinkFunc)
//   - Transcript: display log writer for user, assistant and error turns
//   - Highlighter: chroma syntax highlighting for finished code segments
//
// # Usage
//
//	tr := render.NewTranscript(nil)
//	tr.WriteUser("hello")
//	tr.BeginAssistant()
//	sp := render.NewSplitter(tr)
//	for _, frag := range fragments {
//	    sp.Feed(frag)
//	}
//	sp.Finish()
//
// A Splitter is not safe for concurrent use. Construct a fresh one (or call
// Reset) for every response.
package render
