// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/emochat/internal/config"
	"github.com/jeranaias/emochat/internal/session"
	"github.com/jeranaias/emochat/internal/ui/chat"
)

// =============================================================================
// TUI COMMAND
// =============================================================================

func newTUICommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Start the full-screen chat (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runTUI()
		},
	}
}

// runTUI runs the Bubble Tea chat until the user quits.
func (a *app) runTUI() error {
	if !IsTTY() || !IsStdoutTTY() {
		return &TTYRequiredError{Operation: "start the full-screen chat"}
	}
	if _, err := a.client(); err != nil {
		return err
	}

	st, err := a.openStores()
	if err != nil {
		return err
	}
	defer st.Close()

	factory := func(cfg *config.Config) chat.Backend {
		return a.newClient(cfg, a.logger)
	}
	sess := session.New(factory(a.cfg), a.sessionOptions(st))

	m := chat.New(chat.Options{
		Config:    a.cfg,
		Session:   sess,
		NewClient: factory,
		ExportDir: ".",
		Logger:    a.logger,
	})

	p := tea.NewProgram(m, tea.WithAltScreen())
	m.Attach(p)

	send := m.Sender()
	watcher, err := config.NewWatcher(a.cfgPath, func(cfg *config.Config, err error) {
		send(chat.ConfigReloadedMsg{Config: cfg, Err: err})
	}, a.logger)
	if err != nil {
		a.logger.Warn("config watch disabled", zap.Error(err))
	} else {
		defer watcher.Close()
	}

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("chat UI failed: %w", err)
	}

	if fm, ok := final.(chat.Model); ok {
		if s := fm.Session(); s != nil {
			if err := s.Save(); err != nil {
				a.logger.Warn("final save failed", zap.Error(err))
			}
		}
	}
	return nil
}
