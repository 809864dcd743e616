package main

import (
	"fmt"

	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"github.com/spf13/cobra"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove download-manager registrations left by failed deliveries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := ctx.newApp()
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logutils.Log.WithError(err).Warn("Failed to close delivery journal")
				}
			}()

			res, err := a.Janitor.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "orphans found: %d, removed: %d, failed: %d\n", res.Found, res.Removed, res.Failed)
			return nil
		},
	}
}
