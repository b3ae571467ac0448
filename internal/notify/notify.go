// Package notify tells review targets about new reviews over Telegram.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/evotags/evotags/internal/domain"
	"github.com/evotags/evotags/internal/telegram"
)

// previewLength caps the quoted talents text in a notification.
const previewLength = 500

// MessageSender is the Bot API method the notifier needs.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) error
}

// Notifier sends review notifications.
type Notifier interface {
	ReviewReceived(ctx context.Context, target *domain.Account, authorName, talents string) error
}

// TelegramNotifier sends notifications as bot messages. Synthetic accounts
// are skipped.
type TelegramNotifier struct {
	sender    MessageSender
	webAppURL string
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewTelegramNotifier creates a notifier. With a webAppURL the message
// carries a button that opens the mini-app. Sends wait on limiter, which
// keeps the bot under Telegram's per-bot message rate; nil sends freely.
func NewTelegramNotifier(sender MessageSender, webAppURL string, limiter *rate.Limiter, logger *slog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		sender:    sender,
		webAppURL: webAppURL,
		limiter:   limiter,
		logger:    logger,
	}
}

// ReviewReceived implements Notifier.
func (n *TelegramNotifier) ReviewReceived(ctx context.Context, target *domain.Account, authorName, talents string) error {
	if domain.IsSyntheticPlatformID(target.PlatformID) {
		n.logger.DebugContext(ctx, "skipping notification for synthetic account",
			slog.String("target_id", target.ID),
		)
		return nil
	}

	var markup *telegram.InlineKeyboardMarkup
	if n.webAppURL != "" {
		markup = &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{{
			{Text: "🌟 Открыть EVO Tags", WebApp: &telegram.WebAppInfo{URL: n.webAppURL}},
		}}}
	}

	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("notify review target %s: throttled: %w", target.ID, err)
		}
	}

	if err := n.sender.SendMessage(ctx, target.PlatformID, ReviewMessage(authorName, talents), markup); err != nil {
		return fmt.Errorf("notify review target %s: %w", target.ID, err)
	}
	return nil
}

// ReviewMessage renders the notification text.
func ReviewMessage(authorName, talents string) string {
	return fmt.Sprintf("💬 %s оставил(а) вам новый отзыв в EVO Tags!\n\nВаши таланты: %s", authorName, truncate(talents, previewLength))
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}

// Nop drops notifications. It is used when no bot token is configured.
type Nop struct{}

// ReviewReceived implements Notifier.
func (Nop) ReviewReceived(context.Context, *domain.Account, string, string) error { return nil }
