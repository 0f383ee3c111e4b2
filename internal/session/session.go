// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/jeranaias/emochat/internal/logging"
	"github.com/jeranaias/emochat/internal/model"
	"github.com/jeranaias/emochat/internal/render"
	"github.com/jeranaias/emochat/internal/storage"
	"github.com/jeranaias/emochat/internal/telemetry"
	"github.com/jeranaias/emochat/internal/util"
)

// ErrBusy is returned by Send while another request is running.
var ErrBusy = errors.New("a request is already in progress")

// ErrEmptyPrompt is returned by Send for a blank prompt.
var ErrEmptyPrompt = errors.New("prompt is empty")

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures how a Session builds and sends requests.
type Options struct {
	Model        string
	Streaming    bool
	SystemPrompt string
	Policy       model.SystemPromptPolicy
	Source       model.HistorySource

	// Counter defaults to the original strategy.
	Counter telemetry.Counter

	// Optional persistence. Nil disables each.
	Store       *storage.ConversationStore
	Transcripts *storage.TranscriptStore
	Usage       *telemetry.UsageTracker

	Logger *zap.Logger
}

// =============================================================================
// SESSION
// =============================================================================

// Session is one chat: the structured message log, the display transcript,
// and the settings used to send the next turn. At most one request runs
// at a time.
//
// Thread-safety: Send runs on a worker goroutine while the UI reads, so
// shared state is guarded by mu.
type Session struct {
	mu         sync.Mutex
	client     Client
	opts       Options
	conv       *model.Conversation
	transcript *render.Transcript

	busy   atomic.Bool
	logger *zap.Logger
}

// New starts a session with an empty conversation.
func New(client Client, opts Options) *Session {
	opts = withDefaults(opts)
	s := &Session{
		client: client,
		opts:   opts,
		logger: opts.Logger,
	}
	s.conv = model.NewConversationWithModel(opts.Model)
	s.transcript = render.NewTranscript(s.appender(s.conv.ID))
	return s
}

// Resume continues a stored conversation. The display transcript is
// restored from the transcript store when it has one; otherwise it is
// rebuilt from the messages and persisted.
func Resume(ctx context.Context, client Client, opts Options, conv *model.Conversation) (*Session, error) {
	opts = withDefaults(opts)
	s := &Session{
		client: client,
		opts:   opts,
		logger: opts.Logger,
		conv:   conv,
	}
	s.transcript = render.NewTranscript(s.appender(conv.ID))

	if opts.Transcripts != nil {
		segments, err := opts.Transcripts.Segments(ctx, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to restore transcript: %w", err)
		}
		if len(segments) > 0 {
			s.transcript.Restore(segments)
			return s, nil
		}
	}

	Replay(s.transcript, conv.Messages)
	if err := s.transcript.Err(); err != nil {
		return nil, fmt.Errorf("failed to persist transcript: %w", err)
	}
	return s, nil
}

func withDefaults(opts Options) Options {
	if opts.Counter == nil {
		opts.Counter = telemetry.OriginalCounter{}
	}
	if opts.Policy == "" {
		opts.Policy = model.IncludeEmpty
	}
	if opts.Source == "" {
		opts.Source = model.SourceStructured
	}
	opts.Logger = logging.OrNop(opts.Logger)
	return opts
}

func (s *Session) appender(id string) render.Appender {
	if s.opts.Transcripts == nil {
		return nil
	}
	return s.opts.Transcripts.For(id)
}

// Replay writes messages to a transcript the way live turns write them.
// Assistant text goes through a Splitter, so fences are consumed exactly
// as they are when streamed.
func Replay(tr *render.Transcript, messages []*model.Message) {
	for _, m := range messages {
		switch m.Role {
		case model.RoleUser:
			tr.WriteUser(m.GetDisplayContent())
		case model.RoleAssistant:
			tr.BeginAssistant()
			sp := render.NewSplitter(tr)
			sp.Feed(m.GetDisplayContent())
			sp.Finish()
		}
	}
}

// =============================================================================
// SENDING
// =============================================================================

// Send runs one turn for prompt. observer, if non-nil, receives every
// splitter event after the transcript has recorded it.
//
// A request failure is not returned as an error: it is written to the
// transcript as an ERROR line and reported in Result.Err. Send returns an
// error only when the turn could not start.
func (s *Session) Send(ctx context.Context, prompt string, observer render.Sink) (*Result, error) {
	prompt = util.NormalizeInput(prompt)
	if util.IsBlank(prompt) {
		return nil, ErrEmptyPrompt
	}
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	opts := s.opts
	client := s.client
	tr := s.transcript
	conv := s.conv

	tr.WriteUser(prompt)
	conv.AddUserMessage(prompt)

	var history []model.Message
	if opts.Source == model.SourceTranscript {
		history = model.ReconstructWithPolicy(tr.String(), opts.SystemPrompt, opts.Policy)
	} else {
		history = conv.History(opts.SystemPrompt, opts.Policy)
	}

	tr.BeginAssistant()
	conv.AddAssistantMessage()
	s.mu.Unlock()

	var sink render.Sink = tr
	if observer != nil {
		sink = render.MultiSink(tr, observer)
	}

	t := newTurn(client, opts.Model, opts.Streaming, history, opts.Counter, sink, s.logger)
	t.onText = func(text string) {
		s.mu.Lock()
		conv.AppendToLast(text)
		s.mu.Unlock()
	}
	res := t.run(ctx)

	s.mu.Lock()
	conv.FinalizeLast(t.stats)
	s.mu.Unlock()

	if res.Err != nil {
		tr.WriteError(ErrorLinePrefix + res.Err.Error())
	}
	if err := tr.Err(); err != nil {
		s.logger.Warn("transcript persistence failed", zap.Error(err))
	}

	if opts.Usage != nil {
		opts.Usage.RecordQuery(telemetry.QueryUsage{
			Model:        opts.Model,
			Prompt:       prompt,
			Counter:      opts.Counter.Name(),
			InputTokens:  res.Tokens.Input,
			OutputTokens: res.Tokens.Output,
			Duration:     res.Duration,
			Failed:       res.Err != nil,
		})
	}

	return res, nil
}

// Busy reports whether a request is running.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// =============================================================================
// STATE
// =============================================================================

// Transcript returns the display transcript.
func (s *Session) Transcript() *render.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

// Conversation returns a copy of the structured log.
func (s *Session) Conversation() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Clone()
}

// ID returns the conversation ID.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.ID
}

// History returns the message list the next turn would send before its
// new user message.
func (s *Session) History() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opts.Source == model.SourceTranscript {
		return model.ReconstructWithPolicy(s.transcript.String(), s.opts.SystemPrompt, s.opts.Policy)
	}
	return s.conv.History(s.opts.SystemPrompt, s.opts.Policy)
}

// Options returns the current options.
func (s *Session) Options() Options {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

// Model returns the model used for the next turn.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts.Model
}

// SetModel switches the model for the next turn.
func (s *Session) SetModel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.Model = name
	s.conv.SetModel(name)
}

// SetClient replaces the API client used for the next turn. A running
// turn keeps the client it started with.
func (s *Session) SetClient(client Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = client
}

// Reconfigure replaces the request settings. Stores, tracker and logger
// are kept.
func (s *Session) Reconfigure(opts Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	opts.Store = s.opts.Store
	opts.Transcripts = s.opts.Transcripts
	opts.Usage = s.opts.Usage
	opts.Logger = s.opts.Logger
	s.opts = withDefaults(opts)
	s.conv.SetModel(s.opts.Model)
}

// Reset starts a new conversation. The old one stays in the stores.
func (s *Session) Reset() error {
	if s.Busy() {
		return ErrBusy
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv = model.NewConversationWithModel(s.opts.Model)
	s.transcript = render.NewTranscript(s.appender(s.conv.ID))
	return nil
}

// Save writes the structured log to the conversation store. Empty
// conversations are not saved.
func (s *Session) Save() error {
	s.mu.Lock()
	store := s.opts.Store
	if store == nil || s.conv.IsEmpty() {
		s.mu.Unlock()
		return nil
	}
	snapshot := s.conv.Clone()
	s.mu.Unlock()

	if err := store.SaveConversation(snapshot); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}
