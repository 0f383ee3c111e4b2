// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/emochat/internal/storage"
)

// =============================================================================
// YAML EXPORTER
// =============================================================================

// YAMLExporter exports conversations as a YAML document. Multi-line
// message content is written as literal blocks.
type YAMLExporter struct {
	options *Options
}

// NewYAMLExporter creates a new YAML exporter.
func NewYAMLExporter(opts *Options) *YAMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &YAMLExporter{options: opts}
}

type yamlConversation struct {
	ID         string        `yaml:"id"`
	Title      string        `yaml:"title"`
	Model      string        `yaml:"model"`
	Created    string        `yaml:"created,omitempty"`
	Updated    string        `yaml:"updated,omitempty"`
	TokensUsed int           `yaml:"tokens_used,omitempty"`
	Messages   []yamlMessage `yaml:"messages"`
}

type yamlMessage struct {
	Role       string `yaml:"role"`
	Time       string `yaml:"time,omitempty"`
	TokenCount int    `yaml:"token_count,omitempty"`
	DurationMs int64  `yaml:"duration_ms,omitempty"`
	Content    string `yaml:"content"`
}

// Export converts a conversation to YAML.
func (e *YAMLExporter) Export(conv *storage.StoredConversation) ([]byte, error) {
	if err := validate(conv); err != nil {
		return nil, err
	}

	doc := yamlConversation{
		ID:       conv.ID,
		Title:    conv.Summary,
		Model:    conv.Model,
		Messages: make([]yamlMessage, 0, len(conv.Messages)),
	}
	if e.options.IncludeMetadata {
		doc.Created = conv.CreatedAt.Format(time.RFC3339)
		doc.Updated = conv.UpdatedAt.Format(time.RFC3339)
		doc.TokensUsed = conv.TokensUsed
	}

	for _, msg := range conv.Messages {
		ym := yamlMessage{Role: msg.Role, Content: msg.Content}
		if e.options.IncludeTimestamps && !msg.Timestamp.IsZero() {
			ym.Time = msg.Timestamp.Format(time.RFC3339)
		}
		if e.options.IncludeMetadata {
			ym.TokenCount = msg.TokenCount
			ym.DurationMs = msg.DurationMs
		}
		doc.Messages = append(doc.Messages, ym)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// FileExtension returns the file extension for YAML.
func (e *YAMLExporter) FileExtension() string {
	return ".yaml"
}

// MimeType returns the MIME type for YAML.
func (e *YAMLExporter) MimeType() string {
	return "application/yaml"
}
