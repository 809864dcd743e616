package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/NikitaDmitryuk/libria-media-server/internal/api"
	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"github.com/NikitaDmitryuk/libria-media-server/internal/ratelimit"
	"github.com/NikitaDmitryuk/libria-media-server/internal/transport/telegram"
	"github.com/NikitaDmitryuk/libria-media-server/internal/transport/telegram/bot"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// Serve runs the Telegram bot, the ops API and the janitor until ctx is done,
// then waits for in-flight deliveries to finish.
func (a *App) Serve(ctx context.Context) error {
	if err := a.Config.RequireBot(); err != nil {
		return err
	}
	tg, err := bot.NewBot(a.Config.BotToken)
	if err != nil {
		return err
	}
	limiter := ratelimit.NewKeyedLimiter(a.Config.ProgressEditInterval, 1)
	router := telegram.NewRouter(tg, a.Catalog, a.Pipeline, a.Config.ChatAllowed, limiter)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		processUpdates(gctx, router, tg.Updates(gctx))
		router.Wait()
		return nil
	})

	if server := a.newAPIServer(); server != nil {
		g.Go(func() error {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		a.Janitor.Start(gctx, a.Config.Janitor.Interval)
		return nil
	})

	logutils.Log.Info("Libria Media Server started successfully")
	err = g.Wait()
	logutils.Log.Info("Libria Media Server shutdown complete")
	return err
}

// newAPIServer returns nil when API_LISTEN is empty.
func (a *App) newAPIServer() *api.Server {
	if a.Config.APIListen == "" {
		logutils.Log.Info("Ops API disabled")
		return nil
	}
	return api.NewServer(a.DB, a.Config.APIListen, a.Config.APIKey)
}

func processUpdates(ctx context.Context, router *telegram.Router, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			router.HandleUpdate(ctx, &update)
		case <-ctx.Done():
			logutils.Log.Info("Stopping update processing")
			return
		}
	}
}
