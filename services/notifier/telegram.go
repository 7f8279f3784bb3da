package notifier

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"sjsage522/pricetracker/logger"
	apperrors "sjsage522/pricetracker/pkg/errors"
)

// TelegramConfig holds the bot credentials and destination chat
type TelegramConfig struct {
	Token  string
	ChatID string
	// APIURL overrides the Bot API base URL; empty means api.telegram.org
	APIURL  string
	Timeout time.Duration
}

// TelegramNotifier sends alerts through the Telegram Bot API
type TelegramNotifier struct {
	bot  *tele.Bot
	chat tele.ChatID
	log  *logger.Logger
}

// NewTelegramNotifier creates a notifier without contacting Telegram; a bad
// token only shows up as a failed delivery.
func NewTelegramNotifier(cfg TelegramConfig, log *logger.Logger) (*TelegramNotifier, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, apperrors.NewConfiguration("telegram token is empty", nil)
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(cfg.ChatID), 10, 64)
	if err != nil {
		return nil, apperrors.NewConfiguration("telegram chat id must be numeric", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}

	bot, err := tele.NewBot(tele.Settings{
		URL:     cfg.APIURL,
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
	})
	if err != nil {
		return nil, apperrors.NewConfiguration("failed to create telegram bot", err)
	}

	return &TelegramNotifier{bot: bot, chat: tele.ChatID(chatID), log: log}, nil
}

// Notify implements Notifier
func (n *TelegramNotifier) Notify(ctx context.Context, message string) Outcome {
	if err := ctx.Err(); err != nil {
		return DeliveryFailed(apperrors.NewDelivery("telegram", "not sent", err).Error())
	}

	msg, err := n.bot.Send(n.chat, message)
	if err != nil {
		deliveryErr := apperrors.NewDelivery("telegram", "sendMessage failed", err)
		n.log.Error().Err(deliveryErr).Int64("chat_id", int64(n.chat)).Msg("Alert not delivered")
		return DeliveryFailed(deliveryErr.Error())
	}

	n.log.Info().Int64("chat_id", int64(n.chat)).Int("message_id", msg.ID).Msg("Alert delivered")
	return Delivered()
}

// LogNotifier writes alerts to the log. Used when no chat credentials are configured.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a log-only notifier
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.Nop()
	}
	return &LogNotifier{log: log}
}

// Notify implements Notifier
func (n *LogNotifier) Notify(_ context.Context, message string) Outcome {
	n.log.Warn().Str("message", message).Msg("No chat configured, alert written to log only")
	return Delivered()
}
