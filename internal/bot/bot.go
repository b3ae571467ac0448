// Package bot runs the Telegram update listener that registers users on
// /start and points them at the mini-app.
package bot

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/evotags/evotags/internal/domain"
	"github.com/evotags/evotags/internal/telegram"
	"github.com/evotags/evotags/pkg/logger"
)

// PhotoPathPrefix is the media proxy route stored as an account photo.
const PhotoPathPrefix = "/api/media/telegram-photo/"

// Fixed replies.
const (
	WelcomeMessage = "👋 Добро пожаловать в EVO Tags!\n\n" +
		"Здесь вы можете:\n" +
		"• Просматривать профили участников\n" +
		"• Читать отзывы о себе и других\n" +
		"• Оставлять анонимные отзывы\n\n" +
		"Нажмите кнопку ниже, чтобы открыть приложение:"
	ErrorMessage    = "Произошла ошибка. Попробуйте позже."
	WebAppDataReply = "Данные получены! ✅"
	OpenButtonText  = "🌟 Открыть EVO Tags"
)

// maxBackoff caps the wait between failed polls.
const maxBackoff = 30 * time.Second

// API is the subset of the Bot API the listener uses.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, queryID string) error
	GetUserProfilePhotos(ctx context.Context, userID int64, limit int) (*telegram.UserProfilePhotos, error)
}

// Registrar creates or refreshes the account of a bot user.
type Registrar interface {
	Register(ctx context.Context, identity *domain.PlatformIdentity, photoRef string) (*domain.Account, error)
}

// Listener long-polls for updates and dispatches them.
type Listener struct {
	api         API
	accounts    Registrar
	webAppURL   string
	pollTimeout time.Duration
	logger      *slog.Logger

	offset int64
}

// NewListener creates an update listener.
func NewListener(api API, accounts Registrar, webAppURL string, pollTimeout time.Duration, logger *slog.Logger) *Listener {
	return &Listener{
		api:         api,
		accounts:    accounts,
		webAppURL:   webAppURL,
		pollTimeout: pollTimeout,
		logger:      logger,
	}
}

// Start polls until ctx is canceled. Poll failures are retried with
// growing backoff; handler failures never stop the loop.
func (l *Listener) Start(ctx context.Context) error {
	l.logger.Info("bot listener started", slog.Duration("poll_timeout", l.pollTimeout))

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("bot listener stopping")
			return nil
		default:
		}

		updates, err := l.api.GetUpdates(ctx, l.offset, l.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.logger.Error("failed to fetch updates",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", backoff),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second

		for i := range updates {
			l.Handle(ctx, &updates[i])
			if updates[i].UpdateID >= l.offset {
				l.offset = updates[i].UpdateID + 1
			}
		}
	}
}

// Handle processes one update.
func (l *Listener) Handle(ctx context.Context, u *telegram.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			l.logger.ErrorContext(ctx, "update handler panicked",
				slog.Int64("update_id", u.UpdateID),
				slog.Any("panic", rec),
			)
		}
	}()

	switch {
	case u.CallbackQuery != nil:
		l.handleCallbackQuery(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.WebAppData != nil:
		l.handleWebAppData(ctx, u.Message)
	case u.Message != nil && isStartCommand(u.Message.Text):
		l.handleStart(ctx, u.Message)
	}
}

func (l *Listener) handleStart(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil {
		return
	}
	from := msg.From

	identity := &domain.PlatformIdentity{
		ID:           from.ID,
		FirstName:    from.FirstName,
		LastName:     from.LastName,
		Username:     from.Username,
		LanguageCode: from.LanguageCode,
	}

	account, err := l.accounts.Register(ctx, identity, l.photoRef(ctx, from.ID))
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to register bot user",
			slog.Int64("platform_id", from.ID),
			slog.String("error", err.Error()),
		)
		l.reply(ctx, msg.Chat.ID, ErrorMessage, nil)
		return
	}
	ctx = logger.WithAccountID(ctx, account.ID)

	markup := &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{{
			{Text: OpenButtonText, WebApp: &telegram.WebAppInfo{URL: l.webAppURL}},
		}},
	}
	if err := l.api.SendMessage(ctx, msg.Chat.ID, WelcomeMessage, markup); err != nil {
		l.logger.ErrorContext(ctx, "failed to send welcome message", slog.String("error", err.Error()))
		l.reply(ctx, msg.Chat.ID, ErrorMessage, nil)
	}
}

// photoRef returns the proxy path of the user's current profile photo, or ""
// when there is none or it cannot be fetched.
func (l *Listener) photoRef(ctx context.Context, userID int64) string {
	photos, err := l.api.GetUserProfilePhotos(ctx, userID, 1)
	if err != nil {
		l.logger.WarnContext(ctx, "could not get user photo",
			slog.Int64("platform_id", userID),
			slog.String("error", err.Error()),
		)
		return ""
	}
	if len(photos.Photos) == 0 {
		return ""
	}
	best, ok := telegram.LargestPhoto(photos.Photos[0])
	if !ok {
		return ""
	}
	return PhotoPathPrefix + best.FileID
}

func (l *Listener) handleCallbackQuery(ctx context.Context, q *telegram.CallbackQuery) {
	if q.Message == nil {
		return
	}
	if err := l.api.AnswerCallbackQuery(ctx, q.ID); err != nil {
		l.logger.WarnContext(ctx, "failed to answer callback query",
			slog.String("query_id", q.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (l *Listener) handleWebAppData(ctx context.Context, msg *telegram.Message) {
	var data any
	if err := json.Unmarshal([]byte(msg.WebAppData.Data), &data); err != nil {
		l.logger.WarnContext(ctx, "web app data is not JSON", slog.String("error", err.Error()))
	} else {
		l.logger.InfoContext(ctx, "received web app data", slog.Any("data", data))
	}
	l.reply(ctx, msg.Chat.ID, WebAppDataReply, nil)
}

func (l *Listener) reply(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) {
	if err := l.api.SendMessage(ctx, chatID, text, markup); err != nil {
		l.logger.WarnContext(ctx, "failed to send reply",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

// isStartCommand matches "/start", "/start payload" and "/start@botname".
func isStartCommand(text string) bool {
	cmd, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return cmd == "/start"
}
