package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"github.com/spf13/cobra"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot, the ops API and the orphan janitor",
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

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Serve(runCtx)
		},
	}
}
