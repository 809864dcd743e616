package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot wraps the Bot API with the few calls the delivery front end needs.
type Bot struct {
	Api *tgbotapi.BotAPI
}

func NewBot(botToken string) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		logutils.Log.WithError(err).Error("Error creating bot")
		return nil, fmt.Errorf("error creating bot: %w", err)
	}
	logutils.Log.Infof("Authorized on account %s", api.Self.UserName)
	return &Bot{Api: api}, nil
}

// SendText sends a plain message and returns its ID.
func (b *Bot) SendText(chatID int64, text string) (int, error) {
	msg, err := b.Api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		logutils.Log.WithError(err).WithField("chat_id", chatID).Error("Message not sent")
		return 0, err
	}
	return msg.MessageID, nil
}

// EditText replaces the text of an earlier message.
func (b *Bot) EditText(chatID int64, messageID int, text string) error {
	_, err := b.Api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text))
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return err
}

// SendDocument uploads the file at path.
func (b *Bot) SendDocument(chatID int64, path, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	if _, err := b.Api.Send(doc); err != nil {
		logutils.Log.WithError(err).WithField("path", path).Error("Failed to send document")
		return err
	}
	return nil
}

// Updates streams incoming updates until ctx is done.
func (b *Bot) Updates(ctx context.Context) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.Api.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		b.Api.StopReceivingUpdates()
	}()
	return updates
}
