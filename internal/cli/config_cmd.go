// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/emochat/internal/config"
)

// =============================================================================
// CONFIG COMMAND
// =============================================================================

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show and edit the configuration",
		Long: `Show and edit the configuration.

Keys are dotted paths such as "streaming" or "ui.code_style". Model
entries and their API keys are edited in the file itself.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file path",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(a.out, a.cfgPath)
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the config with API keys redacted",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprint(a.out, a.cfg.String())
			},
		},
		&cobra.Command{
			Use:   "keys",
			Short: "List the keys accepted by get and set",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				for _, k := range config.Keys() {
					fmt.Fprintln(a.out, k)
				}
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print one value",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := a.cfg.Get(args[0])
				if err != nil {
					return err
				}
				if list, ok := v.([]string); ok {
					v = strings.Join(list, ",")
				}
				fmt.Fprintln(a.out, v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Change one value and save the file",
			Example: `  emochat config set streaming false
  emochat config set ui.code_style dracula
  emochat config set ui.kaomojis "(^_^),(o_o)"`,
			Args: cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := readConfigFile(a.cfgPath)
				if err != nil {
					return err
				}
				if err := cfg.Set(args[0], args[1]); err != nil {
					return err
				}
				if err := cfg.Validate(); err != nil {
					return err
				}
				if err := saveConfig(cfg, a.cfgPath); err != nil {
					return err
				}
				fmt.Fprintln(a.out, SuccessStyle.Render(fmt.Sprintf("Set %s", args[0])))
				return nil
			},
		},
		newConfigExportCommand(a),
		newConfigImportCommand(a),
	)
	return cmd
}

func newConfigExportCommand(a *app) *cobra.Command {
	var (
		encrypt    bool
		passphrase string
		outPath    string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the config as a shareable string",
		Long: `Print the config as a shareable string.

API keys are included. Use --encrypt to seal the string with a
passphrase before sharing it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if encrypt && passphrase == "" {
				p, err := readPassphrase(a.errOut, "Passphrase: ", true)
				if err != nil {
					return err
				}
				passphrase = p
			}
			encoded, err := config.Export(a.cfg, passphrase)
			if err != nil {
				return err
			}
			if outPath != "" {
				return os.WriteFile(outPath, []byte(encoded+"\n"), 0600)
			}
			fmt.Fprintln(a.out, encoded)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&encrypt, "encrypt", "e", false, "Prompt for a passphrase")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "Seal with this passphrase")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write to a file instead of stdout")
	return cmd
}

func newConfigImportCommand(a *app) *cobra.Command {
	var passphrase string
	cmd := &cobra.Command{
		Use:   "import <data|@file|->",
		Short: "Replace the config with an exported string",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			encoded, err := a.readImport(args[0])
			if err != nil {
				return err
			}
			if config.IsSealed(encoded) && passphrase == "" {
				p, err := readPassphrase(a.errOut, "Passphrase: ", false)
				if err != nil {
					return err
				}
				passphrase = p
			}
			cfg, err := config.Import(encoded, passphrase)
			if err != nil {
				return err
			}
			if err := saveConfig(cfg, a.cfgPath); err != nil {
				return err
			}
			fmt.Fprintln(a.out, SuccessStyle.Render("Config imported to "+a.cfgPath))
			return nil
		},
	}
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "Passphrase for a sealed export")
	return cmd
}

// readImport returns the argument itself, a file's contents for "@path",
// or stdin for "-".
func (a *app) readImport(arg string) (string, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case arg == "-":
		data, err = io.ReadAll(a.in)
	case strings.HasPrefix(arg, "@"):
		data, err = os.ReadFile(strings.TrimPrefix(arg, "@"))
	default:
		return strings.TrimSpace(arg), nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read import: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
