package channels

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"monitoring-service/internal/config"
	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
	"monitoring-service/internal/utils"
)

// telegramRatePerSecond caps outbound bot messages.
const telegramRatePerSecond = 1

// TelegramChannel delivers alerts to one chat via the Telegram bot API.
type TelegramChannel struct {
	cfg     config.Config
	logger  *logging.Logger
	limiter *rate.Limiter
}

func NewTelegramChannel(cfg config.Config, logger *logging.Logger) *TelegramChannel {
	return &TelegramChannel{
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(telegramRatePerSecond), telegramRatePerSecond),
	}
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Configured() bool {
	t := c.cfg.Channels.Telegram
	return t.Enabled && t.BotToken != "" && t.ChatID != 0
}

func (c *TelegramChannel) Deliver(ctx context.Context, n models.Notification) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit exceeded: %w", err)
	}

	t := c.cfg.Channels.Telegram
	text := fmt.Sprintf("*%s*\n%s", n.Subject, n.Body)

	return utils.Retry(c.logger, 3, time.Second, func() error {
		b, err := bot.New(t.BotToken)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram bot: %w", err)
		}

		params := &bot.SendMessageParams{
			ChatID:    t.ChatID,
			Text:      text,
			ParseMode: "Markdown",
		}
		if _, err := b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", t.ChatID, err)
		}
		return nil
	})
}
