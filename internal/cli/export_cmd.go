// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/emochat/internal/export"
	"github.com/jeranaias/emochat/internal/storage"
)

// =============================================================================
// EXPORT COMMAND
// =============================================================================

func newExportCommand(a *app) *cobra.Command {
	var (
		format string
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "export <id|index>",
		Short: "Export a saved conversation to a file",
		Example: `  emochat export 0
  emochat export conv_1a2b --format json --out ./exports`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openConversations()
			if err != nil {
				return err
			}
			stored, err := store.Resolve(args[0])
			if err != nil {
				return err
			}
			path, err := exportConversation(stored, format, outDir)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, SuccessStyle.Render("Exported to "+path))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", export.FormatMarkdown,
		"Output format: "+strings.Join(export.Formats(), ", "))
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Output directory")
	return cmd
}

// exportConversation writes conv to dir in format and returns the path.
func exportConversation(conv *storage.StoredConversation, format, dir string) (string, error) {
	opts := export.DefaultOptions()
	if dir != "" {
		opts.OutputDir = dir
	}
	exp, err := export.New(format, opts)
	if err != nil {
		return "", err
	}
	return export.ExportToFile(conv, exp, opts)
}
