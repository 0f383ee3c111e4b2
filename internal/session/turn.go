// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/emochat/internal/cloud"
	"github.com/jeranaias/emochat/internal/model"
	"github.com/jeranaias/emochat/internal/render"
	"github.com/jeranaias/emochat/internal/telemetry"
)

// ErrorLinePrefix is written before the provider error text on a failed
// turn. The whole line is dropped from history by the reconstructor.
const ErrorLinePrefix = "API Error: "

// =============================================================================
// CLIENT
// =============================================================================

// Client is the part of cloud.Client a turn needs.
type Client interface {
	ChatWithModel(ctx context.Context, model string, messages []cloud.ChatMessage) (*cloud.ChatResponse, error)
	ChatStreamWithModel(ctx context.Context, model string, messages []cloud.ChatMessage, callback cloud.StreamCallback) (*cloud.StreamStats, error)
}

var _ Client = (*cloud.Client)(nil)

// =============================================================================
// RESULT
// =============================================================================

// Result describes one finished turn.
type Result struct {
	Model string

	// Content is the response text as received, fences included.
	Content string

	Tokens   telemetry.TokenCount
	TTFT     time.Duration
	Duration time.Duration

	FinishReason string

	// Err is the request error, if any. Partial content is still kept.
	Err error
}

// =============================================================================
// TURN
// =============================================================================

// turn is one request-processing task. It owns a fresh Splitter for its
// response and is dropped when the response ends.
type turn struct {
	client    Client
	model     string
	streaming bool
	history   []model.Message
	counter   telemetry.Counter
	logger    *zap.Logger

	splitter *render.Splitter
	stats    *model.Statistics

	// onText receives every response fragment as it arrives.
	onText func(string)
}

func newTurn(client Client, modelName string, streaming bool, history []model.Message, counter telemetry.Counter, sink render.Sink, logger *zap.Logger) *turn {
	return &turn{
		client:    client,
		model:     modelName,
		streaming: streaming,
		history:   history,
		counter:   counter,
		logger:    logger,
		splitter:  render.NewSplitter(sink),
		stats:     model.NewStatistics(),
	}
}

// run sends the request and feeds the response through the splitter.
// The splitter is always finished, so text held back at the end of a
// failed response still reaches the sink.
func (t *turn) run(ctx context.Context) *Result {
	res := &Result{Model: t.model}
	var content []byte
	var usage *cloud.Usage

	feed := func(text string) {
		if text == "" {
			return
		}
		t.stats.RecordFirstToken()
		content = append(content, text...)
		if t.onText != nil {
			t.onText(text)
		}
		t.splitter.Feed(text)
	}

	msgs := toChatMessages(t.history)
	t.logger.Debug("turn started",
		zap.String("model", t.model),
		zap.Bool("streaming", t.streaming),
		zap.Int("messages", len(msgs)))

	if t.streaming {
		streamStats, err := t.client.ChatStreamWithModel(ctx, t.model, msgs, func(chunk cloud.StreamChunk) {
			feed(chunk.GetContent())
		})
		if streamStats != nil {
			usage = streamStats.Usage
			res.FinishReason = streamStats.FinishReason
		}
		res.Err = err
	} else {
		resp, err := t.client.ChatWithModel(ctx, t.model, msgs)
		if err == nil {
			// The whole response is a single fragment.
			feed(resp.GetContent())
			usage = resp.Usage
			if len(resp.Choices) > 0 {
				res.FinishReason = resp.Choices[0].FinishReason
			}
		}
		res.Err = err
	}

	t.splitter.Finish()

	res.Content = string(content)
	res.Tokens = t.counter.Count(t.history, res.Content, toTelemetryUsage(usage))
	t.stats.Finalize(res.Tokens.Input, res.Tokens.Output)
	res.TTFT = t.stats.TTFT
	res.Duration = t.stats.TotalDuration

	if res.Err != nil {
		t.logger.Debug("turn failed", zap.Error(res.Err), zap.Int("partial_bytes", len(content)))
	} else {
		t.logger.Debug("turn finished",
			zap.Int("input_tokens", res.Tokens.Input),
			zap.Int("output_tokens", res.Tokens.Output),
			zap.Duration("duration", res.Duration),
			zap.Int("fences", t.splitter.Delimiters()))
	}
	return res
}

// =============================================================================
// HELPERS
// =============================================================================

func toChatMessages(history []model.Message) []cloud.ChatMessage {
	msgs := make([]cloud.ChatMessage, len(history))
	for i, m := range history {
		msgs[i] = cloud.ChatMessage{Role: m.Role.String(), Content: m.Content}
	}
	return msgs
}

func toTelemetryUsage(u *cloud.Usage) *telemetry.Usage {
	if u == nil {
		return nil
	}
	return &telemetry.Usage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens}
}
