// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session runs chat turns.
//
// A Session holds the structured message log and the display transcript
// of one conversation. Each Send is one turn: the user line is written,
// outgoing history is built from the log (or, in transcript mode, by
// re-parsing the transcript), and the response is fed through a fresh
// render.Splitter into the transcript. A failed request leaves its partial
// output in place followed by an "ERROR: API Error: ..." line.
//
// # Key Types
//
//   - Session: one conversation and its settings
//   - Result: what a turn produced
//   - Manager: auto-save timing, with Bubble Tea tick messages
//
// # Usage
//
//	s := session.New(client, session.Options{Model: "deepseek-chat", Streaming: true})
//	res, err := s.Send(ctx, "hello", nil)
//	fmt.Print(s.Transcript().String())
package session
