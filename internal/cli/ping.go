// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/emochat/internal/cloud"
)

// =============================================================================
// PING COMMAND
// =============================================================================

func newPingCommand(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Measure latency to the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names := []string{a.cfg.Model}
			if all {
				names = a.cfg.ModelNames()
			}

			selected := a.cfg.Model
			defer func() { _ = a.cfg.SetModel(selected) }()

			failed := 0
			for _, name := range names {
				if err := a.cfg.SetModel(name); err != nil {
					return err
				}
				c := a.newClient(a.cfg, a.logger)
				d, err := c.Ping(cmd.Context())
				if err != nil {
					failed++
					a.logger.Debug("ping failed", zap.String("model", name), zap.Error(err))
				}
				fmt.Fprintf(a.out, "%s %s %s %s\n",
					RenderStatus(err == nil),
					RenderLabel(name),
					ValueStyle.Render(cloud.FormatPing(d, err)),
					DimStyle.Render(c.BaseURL()))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d endpoints unreachable", failed, len(names))
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Ping every configured model")
	return cmd
}
