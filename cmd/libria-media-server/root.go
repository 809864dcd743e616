package main

import (
	"sync"

	"github.com/NikitaDmitryuk/libria-media-server/internal/app"
	"github.com/NikitaDmitryuk/libria-media-server/internal/config"
	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"github.com/spf13/cobra"
)

type commandContext struct {
	logLevel *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = config.NewConfig()
		if c.configErr != nil {
			return
		}
		if c.logLevel != nil && *c.logLevel != "" {
			c.config.LogLevel = *c.logLevel
		}
		logutils.InitLogger(c.config.LogLevel)
		logutils.Log.WithFields(map[string]any{
			"version":    Version,
			"build_time": BuildTime,
		}).Debug("Configuration loaded")
	})
	return c.config, c.configErr
}

func (c *commandContext) newApp() (*app.App, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return app.New(cfg)
}

func newRootCommand() *cobra.Command {
	var logLevel string
	ctx := &commandContext{logLevel: &logLevel}

	rootCmd := &cobra.Command{
		Use:           "libria-media-server",
		Short:         "Download releases through qBittorrent and deliver them to Telegram",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override LOG_LEVEL")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newDeliverCommand(ctx))
	rootCmd.AddCommand(newSweepCommand(ctx))
	return rootCmd
}
