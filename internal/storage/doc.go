// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists emochat conversations.
//
// Two logs are kept per conversation:
//
//   - ConversationStore: the structured message log, one JSON file per
//     conversation under ~/.emochat/conversations/
//   - TranscriptStore: the flat display transcript, one SQLite row per
//     appended chunk in ~/.emochat/transcripts.db
//
// # Usage
//
//	store, err := storage.NewConversationStore(dir)
//	err = store.SaveConversation(conv)
//	metas, err := store.List()
//	conv, err := store.LoadConversation(metas[0].ID)
//
// A TranscriptStore bound to a conversation is a render.Appender:
//
//	ts, err := storage.OpenTranscriptStore(path)
//	tr := render.NewTranscript(ts.For(conv.ID))
package storage
