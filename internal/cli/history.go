// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/emochat/internal/model"
	"github.com/jeranaias/emochat/internal/render"
	"github.com/jeranaias/emochat/internal/session"
	"github.com/jeranaias/emochat/internal/storage"
)

// =============================================================================
// HISTORY COMMAND
// =============================================================================

func newHistoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"sessions"},
		Short:   "List, show and manage saved conversations",
	}
	cmd.AddCommand(
		newHistoryListCommand(a),
		newHistoryShowCommand(a),
		newHistoryDeleteCommand(a),
		newHistoryClearCommand(a),
		newHistoryImportCommand(a),
	)
	return cmd
}

func newHistoryListCommand(a *app) *cobra.Command {
	var content bool
	cmd := &cobra.Command{
		Use:     "list [query]",
		Aliases: []string{"ls"},
		Short:   "List saved conversations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openConversations()
			if err != nil {
				return err
			}

			query := strings.Join(args, " ")
			var metas []storage.ConversationMeta
			switch {
			case query == "":
				metas, err = store.List()
			case content:
				metas, err = store.SearchMessages(query)
			default:
				metas, err = store.Search(query)
			}
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, storage.FormatSessionList(metas))
			return nil
		},
	}
	cmd.Flags().BoolVar(&content, "content", false, "Search message text instead of titles")
	return cmd
}

func newHistoryShowCommand(a *app) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <id|index>",
		Short: "Print a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openConversations()
			if err != nil {
				return err
			}
			stored, err := store.Resolve(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, TitleStyle.Render(stored.Summary))
			fmt.Fprintln(a.out, DimStyle.Render(fmt.Sprintf("%s | %s | %d messages",
				stored.ID, stored.Model, stored.MessageCount())))
			printMessages(a.out, a.newPrinter(!raw), stored.ToConversation())
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print without highlighting")
	return cmd
}

// printMessages writes a conversation the way it was shown live.
func printMessages(out io.Writer, p *printer, conv *model.Conversation) {
	for _, m := range conv.Messages {
		switch m.Role {
		case model.RoleUser:
			p.EndLine()
			fmt.Fprintln(out, "\n"+userEchoStyle.Render(render.UserPrefix+m.GetDisplayContent()))
		case model.RoleAssistant:
			sp := render.NewSplitter(p)
			sp.Feed(m.GetDisplayContent())
			sp.Finish()
			p.Flush()
			p.EndLine()
		}
	}
}

func newHistoryDeleteCommand(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <id|index>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStores()
			if err != nil {
				return err
			}
			defer st.Close()

			stored, err := st.conversations.Resolve(args[0])
			if err != nil {
				return err
			}
			if !yes {
				ok, err := confirm(a.in, a.out, fmt.Sprintf("Delete %q?", stored.Summary))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(a.out, DimStyle.Render("Canceled"))
					return nil
				}
			}
			if err := st.conversations.Delete(stored.ID); err != nil {
				return err
			}
			if err := st.transcripts.Clear(cmd.Context(), stored.ID); err != nil {
				return err
			}
			fmt.Fprintln(a.out, SuccessStyle.Render("Deleted "+stored.ID))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newHistoryClearCommand(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all saved conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete all conversations without --yes")
			}
			st, err := a.openStores()
			if err != nil {
				return err
			}
			defer st.Close()

			ids, err := st.transcripts.Conversations(cmd.Context())
			if err != nil {
				return err
			}
			if err := st.conversations.Clear(); err != nil {
				return err
			}
			for _, id := range ids {
				if err := st.transcripts.Clear(cmd.Context(), id); err != nil {
					return err
				}
			}
			fmt.Fprintln(a.out, SuccessStyle.Render("History cleared"))
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deleting everything")
	return cmd
}

func newHistoryImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a plain-text transcript as a conversation",
		Long: `Import a plain-text transcript as a conversation.

User turns are lines starting with ">: ". Lines starting with "ERROR: "
are dropped. Everything else belongs to the assistant. Use "-" to read
stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(a.in)
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read transcript: %w", err)
			}

			conv := model.NewConversationWithModel(a.cfg.Model)
			conv.ImportTranscript(string(data))
			if conv.IsEmpty() {
				return errors.New("transcript has no turns")
			}

			st, err := a.openStores()
			if err != nil {
				return err
			}
			defer st.Close()

			// Resume persists the display transcript for the new ID.
			if _, err := session.Resume(cmd.Context(), nil, a.sessionOptions(st), conv); err != nil {
				return err
			}
			if err := st.conversations.SaveConversation(conv); err != nil {
				return err
			}
			fmt.Fprintln(a.out, SuccessStyle.Render(fmt.Sprintf("Imported %d messages as %s", len(conv.Messages), conv.ID)))
			return nil
		},
	}
}
