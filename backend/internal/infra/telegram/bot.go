package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ivankudzin/nikah/backend/internal/domain/enums"
	"github.com/ivankudzin/nikah/backend/internal/domain/model"
)

var ErrNoChat = errors.New("notification has no telegram chat")

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier delivers notifications as Telegram bot messages.
type Notifier struct {
	api sender
}

func NewNotifier(token string) (*Notifier, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}

	api, err := tgbotapi.NewBotAPI(strings.TrimSpace(token))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	return &Notifier{api: api}, nil
}

func (n *Notifier) Notify(ctx context.Context, msg model.Notification) error {
	if n == nil || n.api == nil {
		return fmt.Errorf("telegram bot is not initialized")
	}
	if msg.Recipient.TelegramChatID == 0 {
		return ErrNoChat
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	out := tgbotapi.NewMessage(msg.Recipient.TelegramChatID, renderText(msg))
	out.DisableWebPagePreview = true
	if _, err := n.api.Send(out); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

func renderText(msg model.Notification) string {
	switch msg.Kind {
	case enums.NotificationMatchCreated:
		return fmt.Sprintf("A mutual interest was just formed for the profile you supervise (#%d).", msg.UserID)
	case enums.NotificationPaymentFailed:
		return "We could not process your latest subscription payment. Please update your payment method to keep your plan."
	default:
		return "You have a new notification."
	}
}
