// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/emochat/internal/session"
	"github.com/jeranaias/emochat/internal/ui/components"
	"github.com/jeranaias/emochat/internal/ui/styles"
)

// =============================================================================
// ASK COMMAND
// =============================================================================

type askOptions struct {
	noStream bool
	raw      bool
	save     bool
	stats    bool
}

func newAskCommand(a *app) *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask [prompt...]",
		Short: "Send one prompt and print the response",
		Long: `Send one prompt and print the response.

The prompt is taken from the arguments. With no arguments, or "-", it is
read from stdin. Code blocks are highlighted when stdout is a terminal.`,
		Example: `  emochat ask "explain goroutines"
  git diff | emochat ask -
  emochat ask --no-stream --stats "hello"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := a.readPrompt(args)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return a.runAsk(ctx, prompt, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.noStream, "no-stream", false, "Wait for the whole response")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "Print the response without highlighting")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Save the exchange to history")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "Print token and timing stats to stderr")
	return cmd
}

// readPrompt joins args, or reads stdin for no args or "-".
func (a *app) readPrompt(args []string) (string, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		if len(args) == 0 && IsTTY() && a.in == os.Stdin {
			return "", errors.New("no prompt given")
		}
		data, err := io.ReadAll(a.in)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt: %w", err)
		}
		return string(data), nil
	}
	return strings.Join(args, " "), nil
}

func (a *app) runAsk(ctx context.Context, prompt string, opts askOptions) error {
	client, err := a.client()
	if err != nil {
		return err
	}

	sessOpts := a.sessionOptions(nil)
	if opts.save {
		st, err := a.openStores()
		if err != nil {
			return err
		}
		defer st.Close()
		sessOpts = a.sessionOptions(st)
	}
	if opts.noStream {
		sessOpts.Streaming = false
	}
	sess := session.New(client, sessOpts)

	p := a.newPrinter(!opts.raw)
	wait := a.startWaiter()
	p.onFirst = wait.Stop

	res, err := sess.Send(ctx, prompt, p)
	wait.Stop()
	if err != nil {
		return err
	}
	p.Flush()
	p.EndLine()

	if opts.save {
		if err := sess.Save(); err != nil {
			a.logger.Warn("failed to save conversation", zap.Error(err))
		}
	}
	if opts.stats {
		fmt.Fprintln(a.errOut, DimStyle.Render(components.FormatTokenLine(res.Tokens, res.Duration)))
	}
	return res.Err
}

// newPrinter creates a printer for a.out. Highlighting needs color and a
// terminal.
func (a *app) newPrinter(highlight bool) *printer {
	color := highlight && ColorsEnabled() && isTerminalWriter(a.out)
	return newPrinter(a.out, styles.NewTheme(a.cfg.UI), color, GetTerminalWidth())
}

// startWaiter animates on stderr while it is a terminal.
func (a *app) startWaiter() *waiter {
	var out io.Writer
	if isTerminalWriter(a.errOut) && ColorsEnabled() {
		out = a.errOut
	}
	return startWaiter(out, styles.LoadingSpinner(a.cfg.UI))
}
