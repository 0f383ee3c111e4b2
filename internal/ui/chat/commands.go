// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/emochat/internal/export"
	"github.com/jeranaias/emochat/internal/session"
	"github.com/jeranaias/emochat/internal/storage"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// CommandHandler runs a slash command against the model.
type CommandHandler func(m Model, args []string) (tea.Model, tea.Cmd)

// Command describes a slash command.
type Command struct {
	Name        string
	Aliases     []string
	Args        string
	Description string
	Handler     CommandHandler
}

var (
	commands     []Command
	commandIndex map[string]*Command
)

func init() {
	commands = []Command{
		{Name: "help", Aliases: []string{"?"}, Description: "Show keys and commands", Handler: cmdHelp},
		{Name: "quit", Aliases: []string{"exit", "q"}, Description: "Save and exit", Handler: cmdQuit},
		{Name: "new", Aliases: []string{"clear"}, Description: "Start a new conversation", Handler: cmdNew},
		{Name: "model", Args: "[name]", Description: "Switch to a model, or the next one", Handler: cmdModel},
		{Name: "models", Description: "List configured models", Handler: cmdModels},
		{Name: "streaming", Args: "[on|off]", Description: "Toggle streaming responses", Handler: cmdStreaming},
		{Name: "save", Description: "Save the conversation", Handler: cmdSave},
		{Name: "export", Args: "[format]", Description: "Export as " + strings.Join(export.Formats(), ", "), Handler: cmdExport},
		{Name: "copy", Description: "Copy the last code block", Handler: cmdCopy},
		{Name: "history", Aliases: []string{"sessions"}, Args: "[query]", Description: "List saved conversations", Handler: cmdHistory},
		{Name: "load", Aliases: []string{"resume"}, Args: "<id|index>", Description: "Continue a saved conversation", Handler: cmdLoad},
		{Name: "ping", Description: "Measure latency to the API", Handler: cmdPing},
	}

	commandIndex = make(map[string]*Command)
	for i := range commands {
		c := &commands[i]
		commandIndex[c.Name] = c
		for _, a := range c.Aliases {
			commandIndex[a] = c
		}
	}
}

// commandHelp lists the slash commands.
func commandHelp() string {
	var sb strings.Builder
	sb.WriteString("Commands:\n")
	for _, c := range commands {
		usage := "/" + c.Name
		if c.Args != "" {
			usage += " " + c.Args
		}
		fmt.Fprintf(&sb, "  %-22s %s\n", usage, c.Description)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// handleCommand parses and runs a line starting with "/".
func (m Model) handleCommand(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(fields) == 0 {
		return m, m.notify("Empty command, try /help", true)
	}

	name := strings.ToLower(fields[0])
	cmd, ok := commandIndex[name]
	if !ok {
		return m, m.notify(fmt.Sprintf("Unknown command: /%s (try /help)", name), true)
	}
	m.logger.Debug("command", zap.String("name", cmd.Name), zap.Strings("args", fields[1:]))
	return cmd.Handler(m, fields[1:])
}

// =============================================================================
// HANDLERS
// =============================================================================

func cmdHelp(m Model, _ []string) (tea.Model, tea.Cmd) {
	m.showHelp = true
	m.panel = ""
	m.layout()
	return m, nil
}

func cmdQuit(m Model, _ []string) (tea.Model, tea.Cmd) {
	return m.quit()
}

func cmdNew(m Model, _ []string) (tea.Model, tea.Cmd) {
	return m.newChat()
}

func cmdModel(m Model, args []string) (tea.Model, tea.Cmd) {
	if m.state != StateReady {
		return m, m.notify("Wait for the response before switching models", true)
	}
	if len(args) == 0 {
		return m.switchModel(m.cfg.NextModel())
	}
	if err := m.cfg.SetModel(args[0]); err != nil {
		return m, m.notify(err.Error(), true)
	}
	return m.switchModel(m.cfg.Model)
}

func cmdModels(m Model, _ []string) (tea.Model, tea.Cmd) {
	var sb strings.Builder
	sb.WriteString("Models:\n")
	for _, name := range m.cfg.ModelNames() {
		marker := "  "
		if name == m.cfg.Model {
			marker = "* "
		}
		sb.WriteString(marker + name + "\n")
	}
	m.showPanel("%s", sb.String())
	return m, nil
}

func cmdStreaming(m Model, args []string) (tea.Model, tea.Cmd) {
	if m.state != StateReady {
		return m, m.notify(session.ErrBusy.Error(), true)
	}
	streaming := !m.cfg.Streaming
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "on", "true", "yes":
			streaming = true
		case "off", "false", "no":
			streaming = false
		default:
			return m, m.notify("Usage: /streaming [on|off]", true)
		}
	}
	m.cfg.Streaming = streaming
	if m.sess != nil {
		m.sess.Reconfigure(session.OptionsFromConfig(m.cfg))
	}
	m.status.SetModel(m.cfg.Model, streaming)
	if streaming {
		return m, m.notify("Streaming on", false)
	}
	return m, m.notify("Streaming off", false)
}

func cmdSave(m Model, _ []string) (tea.Model, tea.Cmd) {
	return m, m.saveCmd(false)
}

func cmdExport(m Model, args []string) (tea.Model, tea.Cmd) {
	format := export.FormatMarkdown
	if len(args) > 0 {
		format = args[0]
	}
	opts := export.DefaultOptions()
	if m.exportDir != "" {
		opts.OutputDir = m.exportDir
	}
	exp, err := export.New(format, opts)
	if err != nil {
		return m, m.notify(err.Error(), true)
	}
	if m.sess == nil {
		return m, nil
	}
	conv := storage.FromConversation(m.sess.Conversation())
	return m, func() tea.Msg {
		path, err := export.ExportToFile(conv, exp, opts)
		return ExportCompleteMsg{Path: path, Err: err}
	}
}

func cmdCopy(m Model, _ []string) (tea.Model, tea.Cmd) {
	return m, m.copyLastCode()
}

func cmdHistory(m Model, args []string) (tea.Model, tea.Cmd) {
	store := m.store()
	if store == nil {
		return m, m.notify("History is not enabled", true)
	}

	var (
		metas []storage.ConversationMeta
		err   error
	)
	if len(args) > 0 {
		metas, err = store.Search(strings.Join(args, " "))
	} else {
		metas, err = store.List()
	}
	if err != nil {
		return m, m.notify("History failed: "+err.Error(), true)
	}
	m.showPanel("%s\nUse /load <id|index> to continue one.", storage.FormatSessionList(metas))
	return m, nil
}

func cmdLoad(m Model, args []string) (tea.Model, tea.Cmd) {
	if len(args) == 0 {
		return m, m.notify("Usage: /load <id|index>", true)
	}
	if m.state != StateReady || m.sess == nil {
		return m, m.notify(session.ErrBusy.Error(), true)
	}
	store := m.store()
	if store == nil {
		return m, m.notify("History is not enabled", true)
	}

	stored, err := store.Resolve(args[0])
	if err != nil {
		return m, m.notify(fmt.Sprintf("Load failed: %v", err), true)
	}
	if err := m.manager.Flush(); err != nil {
		m.logger.Warn("save before load failed", zap.Error(err))
	}

	conv := stored.ToConversation()
	sess, err := session.Resume(context.Background(), m.backend, m.sess.Options(), conv)
	if err != nil {
		return m, m.notify(fmt.Sprintf("Load failed: %v", err), true)
	}
	// Keep the selected model rather than the stored one.
	sess.SetModel(m.cfg.Model)

	m.sess = sess
	m.bindAutoSave()
	m.panel = ""
	m.status.ContextUsed = 0
	m.layout()
	m.syncViewport(true)
	return m, m.notify(fmt.Sprintf("Loaded %s (%d messages)", shortID(conv.ID), len(conv.Messages)), false)
}

func cmdPing(m Model, _ []string) (tea.Model, tea.Cmd) {
	return m, m.pingNow()
}

// store returns the conversation store of the session, if any.
func (m Model) store() *storage.ConversationStore {
	if m.sess == nil {
		return nil
	}
	return m.sess.Options().Store
}

func shortID(id string) string {
	id = strings.TrimPrefix(id, "conv_")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
