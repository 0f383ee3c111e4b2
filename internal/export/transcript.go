// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"github.com/jeranaias/emochat/internal/model"
	"github.com/jeranaias/emochat/internal/storage"
)

// =============================================================================
// TRANSCRIPT EXPORTER
// =============================================================================

// TranscriptExporter writes the turn-prefix transcript: user turns as
// "\n>: text\n", assistant turns as plain text with fences kept. The
// output can be read back with model.Reconstruct or `history import`.
type TranscriptExporter struct{}

// NewTranscriptExporter creates a new transcript exporter. Options do not
// apply.
func NewTranscriptExporter(_ *Options) *TranscriptExporter {
	return &TranscriptExporter{}
}

// Export renders the conversation as a transcript.
func (e *TranscriptExporter) Export(conv *storage.StoredConversation) ([]byte, error) {
	if err := validate(conv); err != nil {
		return nil, err
	}

	msgs := make([]model.Message, 0, len(conv.Messages))
	for _, sm := range conv.Messages {
		role, ok := model.ParseRole(sm.Role)
		if !ok {
			continue
		}
		msgs = append(msgs, model.Msg(role, sm.Content))
	}
	return []byte(model.RenderTranscript(msgs)), nil
}

// FileExtension returns the file extension for transcripts.
func (e *TranscriptExporter) FileExtension() string {
	return ".txt"
}

// MimeType returns the MIME type for transcripts.
func (e *TranscriptExporter) MimeType() string {
	return "text/plain"
}
