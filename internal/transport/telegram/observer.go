package telegram

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/NikitaDmitryuk/libria-media-server/internal/core/domain"
	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"github.com/NikitaDmitryuk/libria-media-server/internal/ratelimit"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// Sender is the subset of the Bot API the chat front end uses.
type Sender interface {
	SendText(chatID int64, text string) (int, error)
	EditText(chatID int64, messageID int, text string) error
	SendDocument(chatID int64, path, caption string) error
}

// ChatObserver reports one delivery run into a chat: a single progress message
// that is edited in place, followed by one document per delivered file.
type ChatObserver struct {
	sender  Sender
	chatID  int64
	title   string
	limiter *ratelimit.KeyedLimiter

	cancelled atomic.Bool

	mu        sync.Mutex
	messageID int
	lastText  string
}

var _ domain.Observer = (*ChatObserver)(nil)

func NewChatObserver(sender Sender, chatID int64, title string, limiter *ratelimit.KeyedLimiter) *ChatObserver {
	if limiter == nil {
		limiter = ratelimit.NewKeyedLimiter(0, 1)
	}
	return &ChatObserver{sender: sender, chatID: chatID, title: title, limiter: limiter}
}

// RenderProgress is the progress message text for e.
func RenderProgress(title string, e domain.ProgressEvent) string {
	var b strings.Builder
	if title != "" {
		b.WriteString(title)
		b.WriteString("\n")
	}
	switch e.Phase {
	case domain.PhaseDownloading:
		fmt.Fprintf(&b, "Downloading: %.1f%%", e.Fraction*100)
	case domain.PhaseTranscoding:
		fmt.Fprintf(&b, "Compressing %s", e.Detail)
	case domain.PhaseDelivering:
		fmt.Fprintf(&b, "Sending %s", e.Detail)
	case domain.PhaseDone:
		b.WriteString("Done")
		if s := e.Summary; s != nil {
			fmt.Fprintf(&b, ": %d sent (%d compressed, %d original)", s.Delivered(), s.Transcoded, s.Original)
			if s.Failed > 0 {
				fmt.Fprintf(&b, ", %d unreadable", s.Failed)
			}
		}
	case domain.PhaseFailed:
		b.WriteString("Failed")
		if e.Detail != "" {
			b.WriteString(": ")
			b.WriteString(e.Detail)
		}
	}
	return b.String()
}

func (o *ChatObserver) OnProgress(e domain.ProgressEvent) {
	text := RenderProgress(o.title, e)

	o.mu.Lock()
	defer o.mu.Unlock()

	if text == o.lastText {
		return
	}
	if !e.Phase.IsTerminal() && o.messageID != 0 && !o.limiter.Allow(o.chatID) {
		return
	}
	o.lastText = text

	if o.messageID == 0 {
		id, err := o.sender.SendText(o.chatID, text)
		if err != nil {
			logutils.Log.WithError(err).WithField("chat_id", o.chatID).Warn("Failed to send progress message")
			return
		}
		o.messageID = id
		return
	}
	if err := o.sender.EditText(o.chatID, o.messageID, text); err != nil {
		logutils.Log.WithError(err).WithField("chat_id", o.chatID).Debug("Failed to edit progress message")
	}
}

// Caption is "<name> (<variant>, <size>)".
func Caption(r domain.DeliveryResult) string {
	size := "?"
	if info, err := os.Stat(r.OutputPath); err == nil {
		size = humanize.IBytes(uint64(info.Size()))
	}
	return fmt.Sprintf("%s (%s, %s)", r.Caption, r.Variant, size)
}

func (o *ChatObserver) OnFileDelivered(r domain.DeliveryResult) {
	log := logutils.Log.WithFields(logrus.Fields{
		"chat_id": o.chatID,
		"file":    r.File.RelativeName,
		"variant": r.Variant,
	})
	if err := o.sender.SendDocument(o.chatID, r.OutputPath, Caption(r)); err != nil {
		log.WithError(err).Warn("Failed to deliver file to chat")
		if _, sendErr := o.sender.SendText(o.chatID, fmt.Sprintf("Could not send %s: %v", r.Caption, err)); sendErr != nil {
			log.WithError(sendErr).Debug("Failed to report delivery error")
		}
		return
	}
	log.Info("File sent to chat")
}

// Cancel flags the run; the pipeline stops at its next checkpoint.
func (o *ChatObserver) Cancel() {
	o.cancelled.Store(true)
}

func (o *ChatObserver) OnCancelRequested() bool {
	return o.cancelled.Load()
}
