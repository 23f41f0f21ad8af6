package publisher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	ta "github.com/mymmrac/telego/telegoapi"
	tu "github.com/mymmrac/telego/telegoutil"

	"bansync/internal/logger"
	"bansync/internal/models"
)

// Telegram posts ban announcements to a channel.
type Telegram struct {
	bot        *telego.Bot
	channelID  int64
	moderation bool
}

// NewTelegram returns a publisher for channelID. With moderation enabled,
// pending announcements carry Confirm / Deny buttons.
func NewTelegram(bot *telego.Bot, channelID int64, moderation bool) *Telegram {
	return &Telegram{bot: bot, channelID: channelID, moderation: moderation}
}

func (t *Telegram) Platform() models.Platform {
	return models.PlatformTelegram
}

func moderationKeyboard() *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton("Confirm").WithCallbackData(CallbackConfirm),
			tu.InlineKeyboardButton("Deny").WithCallbackData(CallbackDeny),
		),
	)
}

// Publish sends the announcement and returns its message id.
func (t *Telegram) Publish(ctx context.Context, record *models.BanRecord) (int64, error) {
	params := &telego.SendMessageParams{
		ChatID:    telego.ChatID{ID: t.channelID},
		Text:      htmlText(record),
		ParseMode: telego.ModeHTML,
	}
	if t.moderation {
		params.ReplyMarkup = moderationKeyboard()
	}

	msg, err := t.bot.SendMessage(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("send telegram announcement for ban %d: %w", record.ID, err)
	}
	logger.Infof("Published ban %d to Telegram as message %d", record.ID, msg.MessageID)
	return int64(msg.MessageID), nil
}

// PublishDecision rewrites the announcement with the final status, dropping
// the buttons, and replies with a short comment. It returns the comment id.
func (t *Telegram) PublishDecision(ctx context.Context, record *models.BanRecord, postID int64) (int64, error) {
	_, err := t.bot.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:    telego.ChatID{ID: t.channelID},
		MessageID: int(postID),
		Text:      htmlText(record),
		ParseMode: telego.ModeHTML,
	})
	if err != nil && !isNotModified(err) {
		return 0, fmt.Errorf("edit telegram announcement %d for ban %d: %w", postID, record.ID, err)
	}

	comment, err := t.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:          telego.ChatID{ID: t.channelID},
		Text:            decisionLabel(record.Status),
		ReplyParameters: &telego.ReplyParameters{MessageID: int(postID), AllowSendingWithoutReply: true},
	})
	if err != nil {
		return 0, fmt.Errorf("send telegram comment for ban %d: %w", record.ID, err)
	}
	return int64(comment.MessageID), nil
}

// isNotModified matches the error Telegram returns when an edit repeats the
// current text, which happens when a status update is delivered twice.
func isNotModified(err error) bool {
	var apiErr *ta.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode == 400 && strings.Contains(apiErr.Description, "message is not modified")
}
