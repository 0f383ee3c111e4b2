// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// SSE READER TESTS
// =============================================================================

func TestSSEReader_ReadEvent(t *testing.T) {
	input := ": keep-alive\n" +
		"event: message\n" +
		"data: {\"a\":1}\n\n" +
		"id: 7\r\n" +
		"data:first\r\n" +
		"data: second\r\n\r\n" +
		"data: [DONE]"

	r := NewSSEReader(strings.NewReader(input))

	typ, data, err := r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "message", typ)
	assert.Equal(t, `{"a":1}`, string(data))

	_, data, err = r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond", string(data))

	_, data, err = r.ReadEvent()
	require.NoError(t, err)
	assert.Equal(t, "[DONE]", string(data))

	_, _, err = r.ReadEvent()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSSEReader_ChunkTooLarge(t *testing.T) {
	line := "data: " + strings.Repeat("x", MaxChunkSize) + "\n\n"
	_, _, err := NewSSEReader(strings.NewReader(line)).ReadEvent()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk too large")
}

// =============================================================================
// STREAMING CHAT TESTS
// =============================================================================

func TestChatStream_DeliversChunksInOrder(t *testing.T) {
	var req ChatRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		writeSSE(w,
			contentChunk("Here: ``"),
			contentChunk("`go\nfmt.Println()\n``"),
			contentChunk("`"),
			`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
			`{"choices":[],"usage":{"prompt_tokens":4,"completion_tokens":9,"total_tokens":13}}`,
			"[DONE]",
		)
	})

	var got []string
	stats, err := client.ChatStream(context.Background(), []ChatMessage{NewUserMessage("hi")}, func(c StreamChunk) {
		if s := c.GetContent(); s != "" {
			got = append(got, s)
		}
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Here: ``", "`go\nfmt.Println()\n``", "`"}, got)
	assert.True(t, req.Stream)
	require.NotNil(t, req.StreamOptions)
	assert.True(t, req.StreamOptions.IncludeUsage)

	assert.Equal(t, 3, stats.Chunks)
	assert.Equal(t, "stop", stats.FinishReason)
	assert.Equal(t, "deepseek-chat", stats.Model)
	require.NotNil(t, stats.Usage)
	assert.Equal(t, 9, stats.Usage.CompletionTokens)
}

func TestChatStream_SkipsMalformedChunks(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, contentChunk("a"), "{not json", contentChunk("b"))
	})

	var sb strings.Builder
	_, err := client.ChatStream(context.Background(), nil, func(c StreamChunk) {
		sb.WriteString(c.GetContent())
	})
	require.NoError(t, err)
	assert.Equal(t, "ab", sb.String())
}

func TestChatStream_ErrorStatusNotRetried(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":{"message":"Authentication Fails"}}`)
	})

	_, err := client.ChatStream(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Contains(t, err.Error(), "Authentication Fails")
	assert.Equal(t, int32(1), calls.Load())
}

func TestChatStream_RetriesBeforeFirstContent(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeSSE(w, contentChunk("ok"), "[DONE]")
	})

	var sb strings.Builder
	_, err := client.WithMaxRetries(2).ChatStream(context.Background(), nil, func(c StreamChunk) {
		sb.WriteString(c.GetContent())
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", sb.String())
	assert.Equal(t, int32(2), calls.Load())
}

func TestChatStream_InStreamErrorKeepsPartial(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeSSE(w, contentChunk("partial "), `{"error":{"message":"overloaded","code":503}}`)
	})

	_, err := client.WithMaxRetries(3).ChatStream(context.Background(), nil, nil)
	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, "partial ", streamErr.Partial)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "503", apiErr.Code)
	assert.Equal(t, int32(1), calls.Load(), "delivered content must not be replayed")
}

func TestChatStream_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, contentChunk("a"))
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := client.ChatStream(ctx, nil, func(c StreamChunk) {
		cancel()
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestChatStream_EOFWithoutDone(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, contentChunk("x"))
	})

	stats, err := client.ChatStream(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Chunks)
	assert.Nil(t, stats.Usage)
}

// =============================================================================
// ACCUMULATOR TESTS
// =============================================================================

func TestStreamAccumulator(t *testing.T) {
	acc := NewStreamAccumulator()
	var c StreamChunk
	require.NoError(t, json.Unmarshal([]byte(contentChunk("hel")), &c))
	acc.Add(c)
	require.NoError(t, json.Unmarshal([]byte(contentChunk("lo")), &c))
	acc.Add(c)
	acc.Add(StreamChunk{Usage: &Usage{PromptTokens: 1, CompletionTokens: 2}})

	assert.Equal(t, "hello", acc.GetContent())
	stats := acc.GetStats()
	assert.Equal(t, 2, stats.Chunks)
	assert.GreaterOrEqual(t, stats.TotalTime, stats.FirstTokenTime)
	assert.Equal(t, 2, stats.Usage.CompletionTokens)
}

func TestStreamError(t *testing.T) {
	inner := io.ErrUnexpectedEOF
	err := &StreamError{Partial: "abc", Err: inner}
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "3 chars")
	assert.Equal(t, "stream error: unexpected EOF", (&StreamError{Err: inner}).Error())
}
