package bot

import (
	tele "gopkg.in/telebot.v3"

	"github.com/selloriy/selloriy/pkg/logger"
)

// subscribed reports whether the user is a member of every verifiable gate
// channel. Channels without a username cannot be checked through the API
// and are skipped; an API error counts as not subscribed, so a transient
// failure never opens the gate.
func (b *Bot) subscribed(user *tele.User) bool {
	for _, ch := range b.cfg.Channels {
		if ch.Username == "" {
			continue
		}
		chat, err := b.tb.ChatByUsername(ch.Username)
		if err != nil {
			logger.Log.Info("channel lookup failed",
				logger.String("channel", ch.Username), logger.Error(err))
			return false
		}
		member, err := b.tb.ChatMemberOf(chat, user)
		if err != nil {
			logger.Log.Info("membership check failed",
				logger.String("channel", ch.Username), logger.Error(err))
			return false
		}
		if !isMember(member.Role) {
			return false
		}
	}
	return true
}

func isMember(role tele.MemberStatus) bool {
	switch role {
	case tele.Creator, tele.Administrator, tele.Member:
		return true
	}
	return false
}

// onCheckSubscription re-runs the gate when the user presses the
// confirmation button under the channel list.
func (b *Bot) onCheckSubscription(c tele.Context) error {
	sender := c.Sender()
	if !b.subscribed(sender) {
		return c.Respond(&tele.CallbackResponse{
			Text:      "You're not subscribed to all channels yet.",
			ShowAlert: true,
		})
	}
	if err := c.Respond(&tele.CallbackResponse{Text: "Thanks!"}); err != nil {
		return err
	}
	return c.Send(
		welcomeText(b.tb.Me.Username, sender.ID),
		mainMenu(b.isAdmin(sender.ID)),
	)
}
