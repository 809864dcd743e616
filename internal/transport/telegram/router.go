// Package telegram is the chat front end: it turns commands into delivery
// runs and reports each run back into the chat it came from.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/NikitaDmitryuk/libria-media-server/internal/catalog"
	"github.com/NikitaDmitryuk/libria-media-server/internal/core/domain"
	"github.com/NikitaDmitryuk/libria-media-server/internal/core/errors"
	"github.com/NikitaDmitryuk/libria-media-server/internal/delivery"
	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"github.com/NikitaDmitryuk/libria-media-server/internal/ratelimit"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

const helpText = `/deliver <release> <torrent> - download a release variant and send its files here
/cancel - stop the running delivery
/help - this message`

// VariantResolver finds the torrent behind a release variant.
type VariantResolver interface {
	Variant(ctx context.Context, releaseID, torrentID int) (catalog.Release, catalog.Variant, error)
}

// Runner executes one delivery.
type Runner interface {
	Run(ctx context.Context, req delivery.Request, obs domain.Observer) delivery.Result
}

// AccessFunc reports whether a chat may use the bot.
type AccessFunc func(chatID int64) bool

type Router struct {
	sender   Sender
	resolver VariantResolver
	runner   Runner
	allowed  AccessFunc
	limiter  *ratelimit.KeyedLimiter

	wg     sync.WaitGroup
	mu     sync.Mutex
	active map[int64]*ChatObserver
}

func NewRouter(sender Sender, resolver VariantResolver, runner Runner, allowed AccessFunc, limiter *ratelimit.KeyedLimiter) *Router {
	if allowed == nil {
		allowed = func(int64) bool { return true }
	}
	return &Router{
		sender:   sender,
		resolver: resolver,
		runner:   runner,
		allowed:  allowed,
		limiter:  limiter,
		active:   make(map[int64]*ChatObserver),
	}
}

// HandleUpdate dispatches one update. Deliveries run in the background under ctx.
func (r *Router) HandleUpdate(ctx context.Context, update *tgbotapi.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	if !r.allowed(chatID) {
		logutils.Log.WithField("chat_id", chatID).Warn("Rejected message from chat outside the allow list")
		r.reply(chatID, "This chat is not allowed to use the bot.")
		return
	}
	if !update.Message.IsCommand() {
		r.reply(chatID, "Unknown command. Send /help for the list.")
		return
	}

	switch update.Message.Command() {
	case "start", "help":
		r.reply(chatID, helpText)
	case "deliver":
		r.handleDeliver(ctx, chatID, update.Message.CommandArguments())
	case "cancel":
		r.handleCancel(chatID)
	default:
		r.reply(chatID, "Unknown command. Send /help for the list.")
	}
}

func (r *Router) reply(chatID int64, text string) {
	if _, err := r.sender.SendText(chatID, text); err != nil {
		logutils.Log.WithError(err).WithField("chat_id", chatID).Warn("Reply not sent")
	}
}

func parseDeliverArgs(args string) (releaseID, torrentID int, err error) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("expected two arguments, got %d", len(fields))
	}
	if releaseID, err = strconv.Atoi(fields[0]); err != nil {
		return 0, 0, fmt.Errorf("release id %q: %w", fields[0], err)
	}
	if torrentID, err = strconv.Atoi(fields[1]); err != nil {
		return 0, 0, fmt.Errorf("torrent id %q: %w", fields[1], err)
	}
	return releaseID, torrentID, nil
}

func (r *Router) handleDeliver(ctx context.Context, chatID int64, args string) {
	releaseID, torrentID, err := parseDeliverArgs(args)
	if err != nil {
		r.reply(chatID, "Usage: /deliver <release> <torrent>")
		return
	}

	r.mu.Lock()
	if _, busy := r.active[chatID]; busy {
		r.mu.Unlock()
		r.reply(chatID, "A delivery is already running here. Send /cancel to stop it.")
		return
	}
	// reserve the slot before the catalog lookup so a second /deliver is refused
	r.active[chatID] = nil
	r.mu.Unlock()

	log := logutils.Log.WithFields(logrus.Fields{
		"chat_id":    chatID,
		"release_id": releaseID,
		"torrent_id": torrentID,
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(chatID)

		release, variant, err := r.resolver.Variant(ctx, releaseID, torrentID)
		if err != nil {
			log.WithError(err).Warn("Catalog lookup failed")
			r.reply(chatID, "Lookup failed: "+errors.UserMessage(err))
			return
		}

		title := fmt.Sprintf("%s [%s, %s]", release.Name, variant.Quality, variant.SizeLabel())
		obs := NewChatObserver(r.sender, chatID, title, r.limiter)
		r.mu.Lock()
		r.active[chatID] = obs
		r.mu.Unlock()

		log.Info("Starting delivery")
		res := r.runner.Run(ctx, delivery.Request{
			Locator:     variant.Magnet,
			ContentHash: variant.Hash,
			Title:       title,
			ChatID:      chatID,
		}, obs)
		if res.Err != nil {
			log.WithError(res.Err).Warn("Delivery failed")
			return
		}
		log.WithField("delivered", res.Summary.Delivered()).Info("Delivery finished")
	}()
}

func (r *Router) release(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, chatID)
	if r.limiter != nil {
		r.limiter.Forget(chatID)
	}
}

func (r *Router) handleCancel(chatID int64) {
	r.mu.Lock()
	obs := r.active[chatID]
	r.mu.Unlock()
	if obs == nil {
		r.reply(chatID, "Nothing to cancel.")
		return
	}
	obs.Cancel()
	r.reply(chatID, "Cancelling, the delivery stops at the next checkpoint.")
}

// Active reports whether chatID has a delivery in progress.
func (r *Router) Active(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[chatID]
	return ok
}

// Wait blocks until every started delivery has returned.
func (r *Router) Wait() {
	r.wg.Wait()
}
