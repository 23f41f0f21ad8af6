package handler

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"bansync/internal/logger"
	"bansync/internal/models"
	"bansync/internal/publisher"
)

// Moderator is the part of the lifecycle API behind the Telegram buttons.
type Moderator interface {
	GetByPlatformPost(ctx context.Context, p models.Platform, postID int64) (*models.BanRecord, error)
	Decide(ctx context.Context, id uint, d models.Decision) (bool, error)
}

// ModerationCallbacks turns Confirm / Deny button presses under channel
// announcements into lifecycle calls.
type ModerationCallbacks struct {
	moderator  Moderator
	channelID  int64
	moderators map[int64]struct{}
}

func NewModerationCallbacks(moderator Moderator, channelID int64, moderatorIDs []int64) *ModerationCallbacks {
	allowed := make(map[int64]struct{}, len(moderatorIDs))
	for _, id := range moderatorIDs {
		allowed[id] = struct{}{}
	}
	return &ModerationCallbacks{moderator: moderator, channelID: channelID, moderators: allowed}
}

// Register installs the callback handlers on bh.
func (m *ModerationCallbacks) Register(bh *th.BotHandler) {
	bh.HandleCallbackQuery(func(ctx *th.Context, query telego.CallbackQuery) error {
		return m.answer(ctx, query, m.Decide(ctx, query, true))
	}, th.CallbackDataEqual(publisher.CallbackConfirm))

	bh.HandleCallbackQuery(func(ctx *th.Context, query telego.CallbackQuery) error {
		return m.answer(ctx, query, m.Decide(ctx, query, false))
	}, th.CallbackDataEqual(publisher.CallbackDeny))
}

func (m *ModerationCallbacks) answer(ctx *th.Context, query telego.CallbackQuery, text string) error {
	return ctx.Bot().AnswerCallbackQuery(ctx, tu.CallbackQuery(query.ID).WithText(text))
}

// Decide applies a button press and returns the text shown to the presser.
func (m *ModerationCallbacks) Decide(ctx context.Context, query telego.CallbackQuery, confirm bool) string {
	if _, ok := m.moderators[query.From.ID]; !ok {
		logger.Warningf("User %d pressed a moderation button without permission", query.From.ID)
		return "You are not a moderator"
	}
	if query.Message == nil || query.Message.GetChat().ID != m.channelID {
		return "This message is not a ban announcement"
	}

	messageID := int64(query.Message.GetMessageID())
	record, err := m.moderator.GetByPlatformPost(ctx, models.PlatformTelegram, messageID)
	if err != nil {
		logger.Warningf("Error looking up ban for Telegram message %d: %v", messageID, err)
		return "Database unavailable, try again"
	}
	if record == nil {
		return "Ban request not found"
	}
	if record.Status.Settled() {
		return fmt.Sprintf("Ban #%d is already %s", record.ID, record.Status)
	}

	decision := models.DecisionRejected
	if confirm {
		decision = models.DecisionApproved
	}
	applied, err := m.moderator.Decide(ctx, record.ID, decision)
	if err != nil {
		logger.Warningf("Error applying decision to ban %d: %v", record.ID, err)
		return "Could not save the decision, try again"
	}
	if !applied {
		return fmt.Sprintf("Ban #%d was already decided", record.ID)
	}

	logger.Infof("Moderator %d decided ban %d: %s", query.From.ID, record.ID, decision)
	if confirm {
		return fmt.Sprintf("Ban #%d confirmed", record.ID)
	}
	return fmt.Sprintf("Ban #%d denied", record.ID)
}
