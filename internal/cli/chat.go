// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/emochat/internal/config"
	"github.com/jeranaias/emochat/internal/export"
	"github.com/jeranaias/emochat/internal/render"
	"github.com/jeranaias/emochat/internal/session"
	"github.com/jeranaias/emochat/internal/storage"
	"github.com/jeranaias/emochat/internal/ui/components"
)

// writeClipboard is replaced in tests.
var writeClipboard = clipboard.WriteAll

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader reads one line of input per prompt. io.EOF ends the chat.
type lineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// linerReader adds line editing and persistent history on a terminal.
type linerReader struct {
	line        *liner.State
	historyFile string
}

func newLinerReader() *linerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	r := &linerReader{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(r.historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *linerReader) Prompt(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history and restores the terminal.
func (r *linerReader) Close() error {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	return r.line.Close()
}

// scanReader reads lines from a pipe.
type scanReader struct {
	sc *bufio.Scanner
}

func (r *scanReader) Prompt(string) (string, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.sc.Text(), nil
}

func (r *scanReader) Close() error { return nil }

// =============================================================================
// CHAT COMMAND
// =============================================================================

func newChatCommand(a *app) *cobra.Command {
	var noHistory bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat line by line in the terminal",
		Long: `Chat line by line without taking over the screen.

Enter sends the line. Ctrl+C cancels a running response, Ctrl+D exits.
Lines starting with / are commands; /help lists them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd.Context(), !noHistory)
		},
	}
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not save the conversation")
	return cmd
}

// repl is one line-mode chat.
type repl struct {
	a    *app
	sess *session.Session
	st   *stores

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (a *app) runChat(ctx context.Context, persist bool) error {
	client, err := a.client()
	if err != nil {
		return err
	}

	r := &repl{a: a}
	opts := a.sessionOptions(nil)
	if persist {
		st, err := a.openStores()
		if err != nil {
			return err
		}
		defer st.Close()
		r.st = st
		opts = a.sessionOptions(st)
	}
	r.sess = session.New(client, opts)

	var in lineReader
	if IsTTY() && a.in == os.Stdin {
		in = newLinerReader()
	} else {
		in = &scanReader{sc: bufio.NewScanner(a.in)}
	}
	defer in.Close()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer func() {
		signal.Stop(sigs)
		close(sigs)
	}()
	go func() {
		for range sigs {
			r.interrupt()
		}
	}()

	r.welcome()
	defer r.save()

	for {
		line, err := in.Prompt(promptStyle.Render(">: "))
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(a.out)
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := r.command(ctx, line); quit {
				return nil
			}
			continue
		}
		r.send(ctx, line)
	}
}

func (r *repl) welcome() {
	fmt.Fprintln(r.a.out, TitleStyle.Render("emochat"))
	fmt.Fprintln(r.a.out, DimStyle.Render(fmt.Sprintf("Model: %s | /help for commands | Ctrl+D to exit", r.sess.Model())))
}

// send runs one turn, printing the response as it streams.
func (r *repl) send(ctx context.Context, prompt string) {
	turnCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.cancel = nil
		r.mu.Unlock()
		cancel()
	}()

	p := r.a.newPrinter(true)
	wait := r.a.startWaiter()
	p.onFirst = wait.Stop

	res, err := r.sess.Send(turnCtx, prompt, p)
	wait.Stop()
	if err != nil {
		r.errorf("%v", err)
		return
	}
	p.Flush()
	p.EndLine()

	switch {
	case errors.Is(res.Err, context.Canceled):
		r.errorf("Request canceled")
	case res.Err != nil:
		r.errorf("%s%s%v", render.ErrorPrefix, session.ErrorLinePrefix, res.Err)
	default:
		fmt.Fprintln(r.a.errOut, DimStyle.Render(components.FormatTokenLine(res.Tokens, res.Duration)))
	}
}

// interrupt cancels the running turn, if any.
func (r *repl) interrupt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *repl) save() {
	if err := r.sess.Save(); err != nil {
		r.a.logger.Warn("failed to save conversation", zap.Error(err))
	}
}

func (r *repl) infof(format string, args ...interface{}) {
	fmt.Fprintln(r.a.out, DimStyle.Render(fmt.Sprintf(format, args...)))
}

func (r *repl) errorf(format string, args ...interface{}) {
	fmt.Fprintln(r.a.errOut, ErrorStyle.Render(fmt.Sprintf(format, args...)))
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

const replHelp = `Commands:
  /help                  Show this help
  /new                   Start a new conversation
  /model [name]          Switch to a model, or the next one
  /models                List configured models
  /streaming [on|off]    Toggle streaming responses
  /history [query]       List saved conversations
  /load <id|index>       Continue a saved conversation
  /save                  Save the conversation
  /export [format]       Export to the current directory
  /copy                  Copy the last code block
  /quit                  Save and exit`

// command runs a slash command and reports whether to exit.
func (r *repl) command(ctx context.Context, line string) bool {
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(fields) == 0 {
		r.errorf("Empty command, try /help")
		return false
	}
	name, args := strings.ToLower(fields[0]), fields[1:]

	switch name {
	case "help", "?":
		fmt.Fprintln(r.a.out, replHelp)
	case "quit", "exit", "q":
		return true
	case "new", "clear":
		r.save()
		if err := r.sess.Reset(); err != nil {
			r.errorf("%v", err)
			return false
		}
		r.infof("New conversation")
	case "model":
		r.switchModel(args)
	case "models":
		for _, m := range r.a.cfg.ModelNames() {
			marker := "  "
			if m == r.a.cfg.Model {
				marker = "* "
			}
			fmt.Fprintln(r.a.out, marker+m)
		}
	case "streaming":
		r.setStreaming(args)
	case "history", "sessions":
		r.history(args)
	case "load", "resume":
		r.load(ctx, args)
	case "save":
		if r.st == nil {
			r.errorf("History is not enabled")
			return false
		}
		if err := r.sess.Save(); err != nil {
			r.errorf("Save failed: %v", err)
			return false
		}
		r.infof("Conversation saved")
	case "export":
		r.export(args)
	case "copy":
		seg := r.sess.Transcript().LastCode()
		if seg == "" {
			r.errorf("No code block to copy")
			return false
		}
		if err := writeClipboard(components.ParseCodeSegment(seg).Plain()); err != nil {
			r.errorf("Copy failed: %v", err)
			return false
		}
		r.infof("Copied code block")
	default:
		r.errorf("Unknown command: /%s (try /help)", name)
	}
	return false
}

func (r *repl) switchModel(args []string) {
	name := r.a.cfg.NextModel()
	if len(args) > 0 {
		if err := r.a.cfg.SetModel(args[0]); err != nil {
			r.errorf("%v", err)
			return
		}
		name = r.a.cfg.Model
	}
	client, err := r.a.client()
	if err != nil {
		r.errorf("%v", err)
		return
	}
	r.sess.SetClient(client)
	r.sess.SetModel(name)
	r.infof("Model: %s", name)
}

func (r *repl) setStreaming(args []string) {
	streaming := !r.a.cfg.Streaming
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "on", "true", "yes":
			streaming = true
		case "off", "false", "no":
			streaming = false
		default:
			r.errorf("Usage: /streaming [on|off]")
			return
		}
	}
	r.a.cfg.Streaming = streaming
	r.sess.Reconfigure(session.OptionsFromConfig(r.a.cfg))
	if streaming {
		r.infof("Streaming on")
	} else {
		r.infof("Streaming off")
	}
}

func (r *repl) history(args []string) {
	if r.st == nil {
		r.errorf("History is not enabled")
		return
	}
	var (
		metas []storage.ConversationMeta
		err   error
	)
	if len(args) > 0 {
		metas, err = r.st.conversations.Search(strings.Join(args, " "))
	} else {
		metas, err = r.st.conversations.List()
	}
	if err != nil {
		r.errorf("History failed: %v", err)
		return
	}
	fmt.Fprint(r.a.out, storage.FormatSessionList(metas))
}

func (r *repl) load(ctx context.Context, args []string) {
	if len(args) == 0 {
		r.errorf("Usage: /load <id|index>")
		return
	}
	if r.st == nil {
		r.errorf("History is not enabled")
		return
	}
	stored, err := r.st.conversations.Resolve(args[0])
	if err != nil {
		r.errorf("Load failed: %v", err)
		return
	}
	client, err := r.a.client()
	if err != nil {
		r.errorf("%v", err)
		return
	}
	r.save()

	conv := stored.ToConversation()
	sess, err := session.Resume(ctx, client, r.sess.Options(), conv)
	if err != nil {
		r.errorf("Load failed: %v", err)
		return
	}
	sess.SetModel(r.a.cfg.Model)
	r.sess = sess

	printMessages(r.a.out, r.a.newPrinter(true), conv)
	r.infof("Loaded %s (%d messages)", stored.ID, len(conv.Messages))
}

func (r *repl) export(args []string) {
	format := export.FormatMarkdown
	if len(args) > 0 {
		format = args[0]
	}
	path, err := exportConversation(storage.FromConversation(r.sess.Conversation()), format, ".")
	if err != nil {
		r.errorf("Export failed: %v", err)
		return
	}
	r.infof("Exported to %s", path)
}
