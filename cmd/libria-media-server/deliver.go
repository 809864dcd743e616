package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NikitaDmitryuk/libria-media-server/internal/delivery"
	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"github.com/NikitaDmitryuk/libria-media-server/internal/notifier"
	"github.com/spf13/cobra"
)

type deliverFlags struct {
	locator   string
	hash      string
	title     string
	releaseID int
	torrentID int
	outDir    string
}

func (f *deliverFlags) validate() error {
	switch {
	case f.outDir == "":
		return errors.New("--out is required")
	case f.locator != "" && (f.releaseID != 0 || f.torrentID != 0):
		return errors.New("use either --locator or --release/--torrent, not both")
	case f.locator == "" && (f.releaseID <= 0 || f.torrentID <= 0):
		return errors.New("--locator or both --release and --torrent are required")
	}
	return nil
}

func newDeliverCommand(ctx *commandContext) *cobra.Command {
	var flags deliverFlags
	cmd := &cobra.Command{
		Use:   "deliver",
		Short: "Run one delivery and copy the files into a directory",
		Long: "Runs one delivery in the foreground. The first interrupt asks the run to stop at its " +
			"next checkpoint, a second one aborts it.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := flags.validate(); err != nil {
				return err
			}
			if err := os.MkdirAll(flags.outDir, 0o750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			a, err := ctx.newApp()
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logutils.Log.WithError(err).Warn("Failed to close delivery journal")
				}
			}()

			runCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			req := delivery.Request{Locator: flags.locator, ContentHash: flags.hash, Title: flags.title}
			if flags.locator == "" {
				release, variant, err := a.Catalog.Variant(runCtx, flags.releaseID, flags.torrentID)
				if err != nil {
					return err
				}
				req.Locator = variant.Magnet
				req.ContentHash = variant.Hash
				if req.Title == "" {
					req.Title = fmt.Sprintf("%s [%s]", release.Name, variant.Quality)
				}
			}

			console := notifier.NewConsole(flags.outDir)
			stopSignals := handleInterrupts(console, cancel)
			defer stopSignals()

			res := a.Pipeline.Run(runCtx, req, console)
			if res.Err != nil {
				return res.Err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d files written to %s (%d compressed, %d original, %d unreadable)\n",
				res.Summary.Delivered(), flags.outDir, res.Summary.Transcoded, res.Summary.Original, res.Summary.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.locator, "locator", "", "Magnet URI or torrent URL")
	cmd.Flags().StringVar(&flags.hash, "hash", "", "Info-hash, required for non-magnet locators")
	cmd.Flags().StringVar(&flags.title, "title", "", "Title recorded in the journal")
	cmd.Flags().IntVar(&flags.releaseID, "release", 0, "Catalog release ID")
	cmd.Flags().IntVar(&flags.torrentID, "torrent", 0, "Catalog torrent (quality variant) ID")
	cmd.Flags().StringVarP(&flags.outDir, "out", "o", "", "Directory delivered files are copied into")
	return cmd
}

// handleInterrupts requests a cooperative stop on the first signal and
// cancels the run on the second.
func handleInterrupts(console *notifier.Console, cancel context.CancelFunc) func() {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		count := 0
		for {
			select {
			case <-done:
				return
			case <-sigs:
				count++
				if count == 1 {
					logutils.Log.Warn("Interrupt received, stopping at the next checkpoint")
					console.Cancel()
					continue
				}
				logutils.Log.Warn("Second interrupt, aborting")
				cancel()
			}
		}
	}()
	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
