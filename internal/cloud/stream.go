// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

// MaxChunkSize is the maximum allowed size for a single SSE line (64KB).
const MaxChunkSize = 64 * 1024

var doneMarker = []byte("[DONE]")

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamChunk is a single chat.completion.chunk from the stream.
type StreamChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Role    string `json:"role,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage,omitempty"`

	// Failure is set when the provider reports an error inside the stream.
	Failure *struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
	} `json:"error,omitempty"`
}

// GetContent returns the content from the first choice's delta.
func (c *StreamChunk) GetContent() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// IsDone returns true if the chunk carries a finish reason.
func (c *StreamChunk) IsDone() bool {
	return c.GetFinishReason() != ""
}

// GetFinishReason returns the finish reason if streaming is complete.
func (c *StreamChunk) GetFinishReason() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].FinishReason
	}
	return ""
}

// StreamCallback is called for each received chunk, in order.
type StreamCallback func(chunk StreamChunk)

// StreamStats holds statistics collected during streaming.
type StreamStats struct {
	FirstTokenTime time.Duration
	TotalTime      time.Duration
	Chunks         int
	Model          string
	FinishReason   string
	// Usage is nil unless the provider sent a usage chunk.
	Usage *Usage
}

// StreamError is a failure after some content was already delivered.
// Partial holds that content; the request is not retried.
type StreamError struct {
	Partial string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial content received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{
		reader: bufio.NewReader(r),
	}
}

// ReadEvent reads the next SSE event from the stream.
// Returns the event type, data, and any error.
// Returns io.EOF when the stream ends.
func (s *SSEReader) ReadEvent() (string, []byte, error) {
	var eventType string
	var dataLines [][]byte

	for {
		line, err := s.reader.ReadBytes('\n')
		if len(line) > MaxChunkSize {
			return "", nil, fmt.Errorf("chunk too large: %d bytes", len(line))
		}
		if err != nil {
			if err == io.EOF {
				line = bytes.TrimRight(line, "\r\n")
				if bytes.HasPrefix(line, []byte("data:")) {
					dataLines = append(dataLines, bytes.TrimSpace(line[5:]))
				}
				if len(dataLines) > 0 {
					return eventType, bytes.Join(dataLines, []byte("\n")), nil
				}
				return "", nil, io.EOF
			}
			return "", nil, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Empty line signals end of event
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return eventType, bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			eventType = string(bytes.TrimSpace(line[6:]))
		case bytes.HasPrefix(line, []byte("data:")):
			dataLines = append(dataLines, bytes.TrimSpace(line[5:]))
		}
		// Ignore other fields (id:, retry:, comments starting with :)
	}
}

// =============================================================================
// STREAMING CHAT
// =============================================================================

// ChatStream performs a streaming chat completion with the client's model.
//
// The callback receives every chunk in arrival order. Connection failures
// and server errors are retried only while nothing has been delivered; once
// content reached the callback a failure is returned as *StreamError.
func (c *Client) ChatStream(ctx context.Context, messages []ChatMessage, callback StreamCallback) (*StreamStats, error) {
	return c.ChatStreamWithModel(ctx, c.model, messages, callback)
}

// ChatStreamWithModel is ChatStream with an explicit model.
func (c *Client) ChatStreamWithModel(ctx context.Context, model string, messages []ChatMessage, callback StreamCallback) (*StreamStats, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if callback == nil {
		callback = func(StreamChunk) {}
	}

	bodyBytes, err := json.Marshal(c.newRequest(model, messages, true))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	acc := NewStreamAccumulator()
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.retryDelay(attempt, lastErr)); err != nil {
				return acc.GetStats(), err
			}
		}
		if err := c.wait(ctx); err != nil {
			return acc.GetStats(), err
		}

		c.logRequest(model, len(messages), true, attempt)
		resp, err := c.sendStreamRequest(ctx, bodyBytes)
		if err != nil {
			if c.isRetryable(ctx, err) {
				c.logger.Debug("retrying stream", zap.Int("attempt", attempt+1), zap.Error(err))
				lastErr = err
				continue
			}
			return acc.GetStats(), err
		}

		err = c.processStream(ctx, resp.Body, func(chunk StreamChunk) {
			acc.Add(chunk)
			callback(chunk)
		})
		resp.Body.Close()

		stats := acc.GetStats()
		if err == nil {
			c.logger.Debug("stream complete",
				zap.Int("chunks", stats.Chunks),
				zap.Duration("ttft", stats.FirstTokenTime),
				zap.Duration("total", stats.TotalTime),
				zap.String("finish_reason", stats.FinishReason),
			)
			return stats, nil
		}
		if acc.Content.Len() > 0 {
			return stats, &StreamError{Partial: acc.GetContent(), Err: err}
		}
		if !c.isRetryable(ctx, err) {
			return stats, err
		}
		lastErr = err
	}

	if lastErr != nil {
		return acc.GetStats(), fmt.Errorf("max retries exceeded: %w", lastErr)
	}
	return acc.GetStats(), errors.New("max retries exceeded")
}

// sendStreamRequest sends one streaming HTTP request. The caller closes the body.
func (c *Client) sendStreamRequest(ctx context.Context, bodyBytes []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := readResponse(resp)
		resp.Body.Close()
		return nil, c.handleErrorResponse(resp.StatusCode, resp.Header, body)
	}
	return resp, nil
}

// processStream reads SSE events until [DONE] or EOF.
func (c *Client) processStream(ctx context.Context, body io.Reader, callback StreamCallback) error {
	reader := NewSSEReader(body)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, data, err := reader.ReadEvent()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read error: %w", err)
		}

		if bytes.Equal(data, doneMarker) {
			return nil
		}

		var chunk StreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			c.logger.Debug("skipping malformed chunk", zap.Error(err))
			continue
		}
		if chunk.Failure != nil && chunk.Failure.Message != "" {
			env := apiErrorResponse{}
			env.Error.Code = chunk.Failure.Code
			return &APIError{Code: env.code(), Message: chunk.Failure.Message, Status: http.StatusOK}
		}

		callback(chunk)
	}
}

// =============================================================================
// STREAM ACCUMULATOR
// =============================================================================

// StreamAccumulator collects streaming chunks and builds a complete response.
type StreamAccumulator struct {
	Content      bytes.Buffer
	Chunks       int
	Model        string
	FinishReason string
	Usage        *Usage
	StartTime    time.Time
	FirstTokenAt time.Time
}

// NewStreamAccumulator creates a new accumulator.
func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{
		StartTime: time.Now(),
	}
}

// Add processes a new chunk.
func (a *StreamAccumulator) Add(chunk StreamChunk) {
	if content := chunk.GetContent(); content != "" {
		a.Chunks++
		if a.FirstTokenAt.IsZero() {
			a.FirstTokenAt = time.Now()
		}
		a.Content.WriteString(content)
	}
	if chunk.Model != "" {
		a.Model = chunk.Model
	}
	if chunk.IsDone() {
		a.FinishReason = chunk.GetFinishReason()
	}
	if chunk.Usage != nil {
		u := *chunk.Usage
		a.Usage = &u
	}
}

// GetContent returns the accumulated content.
func (a *StreamAccumulator) GetContent() string {
	return a.Content.String()
}

// GetStats returns the collected statistics.
func (a *StreamAccumulator) GetStats() *StreamStats {
	var ttft time.Duration
	if !a.FirstTokenAt.IsZero() {
		ttft = a.FirstTokenAt.Sub(a.StartTime)
	}

	return &StreamStats{
		FirstTokenTime: ttft,
		TotalTime:      time.Since(a.StartTime),
		Chunks:         a.Chunks,
		Model:          a.Model,
		FinishReason:   a.FinishReason,
		Usage:          a.Usage,
	}
}
