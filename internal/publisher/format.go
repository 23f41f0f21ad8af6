package publisher

import (
	"fmt"
	"html"
	"strings"

	"bansync/internal/models"
)

// Callback data attached to the Telegram moderation buttons.
const (
	CallbackConfirm = "ban:confirm"
	CallbackDeny    = "ban:deny"
)

func decisionLabel(d models.Decision) string {
	switch d {
	case models.DecisionApproved:
		return "Ban confirmed"
	case models.DecisionRejected:
		return "Ban denied, subject unbanned"
	case models.DecisionPending:
		return "Awaiting moderator decision"
	default:
		return "Unknown status: " + string(d)
	}
}

// plainText renders a record for platforms without markup.
func plainText(r *models.BanRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ban request #%d\n", r.ID)
	fmt.Fprintf(&b, "Player: %s\n", r.Subject)
	fmt.Fprintf(&b, "Requested by: %s\n", r.Issuer)
	if r.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", r.Reason)
	}
	fmt.Fprintf(&b, "\n%s", decisionLabel(r.Status))
	return b.String()
}

// htmlText renders a record for Telegram's HTML parse mode.
func htmlText(r *models.BanRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>Ban request #%d</b>\n", r.ID)
	fmt.Fprintf(&b, "Player: <code>%s</code>\n", html.EscapeString(r.Subject))
	fmt.Fprintf(&b, "Requested by: %s\n", html.EscapeString(r.Issuer))
	if r.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", html.EscapeString(r.Reason))
	}
	fmt.Fprintf(&b, "\n<i>%s</i>", html.EscapeString(decisionLabel(r.Status)))
	return b.String()
}
