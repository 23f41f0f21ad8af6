package bot

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"bansync/internal/config"
	"bansync/internal/logger"
)

// BotService represents the Telegram bot used to publish announcements and,
// when moderation is enabled, to receive button presses.
type BotService struct {
	Bot     *telego.Bot
	Handler *th.BotHandler
}

// Start starts the update handler. It blocks until Stop is called.
func (b *BotService) Start() {
	if b.Handler != nil {
		b.Handler.Start()
	}
}

// Stop stops the update handler
func (b *BotService) Stop() {
	if b.Handler != nil {
		b.Handler.Stop()
	}
}

// Initialize creates the bot and, when moderation is enabled, a long polling
// update handler that only receives callback queries.
func Initialize(ctx context.Context, cfg config.TelegramConfig) (*BotService, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	bot, err := telego.NewBot(cfg.Token, telego.WithDefaultLogger(false, true))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}

	botUser, err := bot.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get bot info: %w", err)
	}
	logger.Infof("Authorized on account %s", botUser.Username)

	service := &BotService{Bot: bot}
	if !cfg.Moderation {
		return service, nil
	}

	// long polling and webhooks are mutually exclusive
	if err := bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{}); err != nil {
		return nil, fmt.Errorf("failed to delete existing webhook: %w", err)
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		AllowedUpdates: []string{"callback_query"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start long polling: %w", err)
	}

	bh, err := th.NewBotHandler(bot, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot handler: %w", err)
	}
	service.Handler = bh
	return service, nil
}
