// Package telegram delivers outbound messages through the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/forumgram/forumgram/internal/config"
)

// ErrDeliveryFailed is returned when the single send attempt fails or
// times out. Callers log it; it never fails the triggering request.
var ErrDeliveryFailed = errors.New("telegram delivery failed")

// Notifier sends a text message to a chat identity with one API round
// trip per call. No retries, no queueing.
type Notifier struct {
	token    string
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewNotifier creates a Notifier from the Telegram config. The send
// timeout bounds the whole round trip.
func NewNotifier(log *slog.Logger, cfg config.TelegramConfig) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	endpoint := strings.TrimSpace(cfg.APIEndpoint)
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	timeout := time.Duration(cfg.SendTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultSendTimeoutSeconds) * time.Second
	}
	return &Notifier{
		token:    strings.TrimSpace(cfg.BotToken),
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   log.With(slog.String("component", "telegram")),
	}
}

// Send delivers text to the chat identified by externalID (a numeric chat
// id or an @channel username). A failed or timed-out call returns
// ErrDeliveryFailed wrapped with the cause.
func (n *Notifier) Send(ctx context.Context, externalID, text string) error {
	to := strings.TrimSpace(externalID)
	if to == "" {
		return fmt.Errorf("%w: target is required", ErrDeliveryFailed)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text is required", ErrDeliveryFailed)
	}
	if n.token == "" {
		return fmt.Errorf("%w: bot token not configured", ErrDeliveryFailed)
	}

	bot, err := tgbotapi.NewBotAPIWithClient(n.token, n.endpoint, n.client)
	if err != nil {
		n.logger.Error("create bot failed", slog.Any("error", err))
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	message, err := buildMessage(to, text)
	if err != nil {
		return err
	}
	if _, err := bot.Send(message); err != nil {
		n.logger.Error("send failed", slog.String("target", to), slog.Any("error", err))
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	return nil
}

func buildMessage(target, text string) (tgbotapi.MessageConfig, error) {
	if strings.HasPrefix(target, "@") {
		return tgbotapi.NewMessageToChannel(target, text), nil
	}
	chatID, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, fmt.Errorf("%w: target must be @username or chat_id", ErrDeliveryFailed)
	}
	return tgbotapi.NewMessage(chatID, text), nil
}
