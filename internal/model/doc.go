// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// There are two ways to obtain the history sent with a request:
//
//   - Conversation.History reads the structured message log (the default).
//   - Reconstruct re-parses a rendered transcript written with the
//     turn-prefix convention of package render.
//
// # Key Types
//
//   - Message: role-tagged content with optional bookkeeping fields
//   - Conversation: ordered message log with title and token estimate
//   - SystemPromptPolicy: whether a blank system prompt is sent
//   - HistorySource: which of the two history paths a session uses
//
// # Usage
//
//	history := model.Reconstruct(">: hello\nhi there", "be brief")
//	// [{system "be brief"} {user "hello"} {assistant "hi there"}]
package model
