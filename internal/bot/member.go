package bot

import (
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"github.com/selloriy/selloriy/internal/domain"
	"github.com/selloriy/selloriy/pkg/logger"
)

func (b *Bot) onStart(c tele.Context) error {
	sender := c.Sender()
	referrerID := parseStartPayload(c.Message().Payload)

	created, err := b.ledger.RegisterContact(
		sender.ID, sender.Username, sender.FirstName, sender.LastName, referrerID,
	)
	if err != nil {
		logger.Log.Error("registering contact", logger.Error(err))
		return c.Send("Something went wrong, please try again.")
	}

	if created && referrerID != 0 && referrerID != sender.ID {
		b.notifyInviter(referrerID, sender)
	}

	if !b.subscribed(sender) {
		return c.Send(
			"To use the bot, please subscribe to our channels first:",
			channelsMenu(b.cfg.Channels),
		)
	}

	return c.Send(
		welcomeText(b.tb.Me.Username, sender.ID),
		mainMenu(b.isAdmin(sender.ID)),
	)
}

// notifyInviter tells the referrer a new user joined through their link.
// Delivery failures are logged and swallowed: registration must not
// depend on the inviter being reachable.
func (b *Bot) notifyInviter(inviterID int64, joined *tele.User) {
	name := joined.FirstName
	if joined.Username != "" {
		name = "@" + joined.Username
	}
	_, err := b.tb.Send(tele.ChatID(inviterID),
		fmt.Sprintf("🎉 %s joined through your link! +1 point.", name))
	if err != nil {
		logger.Log.Info("inviter notification failed",
			logger.Int64("inviter", inviterID), logger.Error(err))
	}
}

func (b *Bot) onHelp(c tele.Context) error {
	return c.Send(helpText(), mainMenu(b.isAdmin(c.Sender().ID)))
}

func (b *Bot) onCancel(c tele.Context) error {
	b.conv.End(c.Sender().ID)
	return c.Send("Cancelled.", mainMenu(b.isAdmin(c.Sender().ID)))
}

func (b *Bot) onBalance(c tele.Context) error {
	bal, err := b.ledger.Compute(c.Sender().ID)
	if err != nil {
		logger.Log.Error("computing balance", logger.Error(err))
		return c.Send("Something went wrong, please try again.")
	}
	return c.Send(renderBalance(bal, referralLink(b.tb.Me.Username, c.Sender().ID)))
}

func (b *Bot) onNetwork(c tele.Context) error {
	children, err := b.ledger.Network(c.Sender().ID)
	if err != nil {
		logger.Log.Error("loading network", logger.Error(err))
		return c.Send("Something went wrong, please try again.")
	}
	return c.Send(renderNetwork(children))
}

func (b *Bot) onRetention(c tele.Context) error {
	active, err := b.ledger.ComputeActive(c.Sender().ID)
	if err != nil {
		logger.Log.Error("computing retention view", logger.Error(err))
		return c.Send("Something went wrong, please try again.")
	}
	return c.Send(renderRetention(active, b.cfg.Ledger.RetentionDays))
}

func (b *Bot) onTop(c tele.Context) error {
	board, err := b.ledger.Leaderboard(b.cfg.Ledger.LeaderboardLimit)
	if err != nil {
		logger.Log.Error("building leaderboard", logger.Error(err))
		return c.Send("Something went wrong, please try again.")
	}
	return c.Send(renderLeaderboard(board, 10))
}

func (b *Bot) onServices(c tele.Context) error {
	if len(b.cfg.Services) == 0 {
		return c.Send("No services are available right now.")
	}
	bal, err := b.ledger.Compute(c.Sender().ID)
	if err != nil {
		logger.Log.Error("computing balance", logger.Error(err))
		return c.Send("Something went wrong, please try again.")
	}
	text := fmt.Sprintf("You have %d points available.\nPick a service to redeem:", bal.AvailablePoints)
	return c.Send(text, servicesMenu(b.cfg.Services))
}

// onServicePick handles the catalog callback: the data is the service key.
func (b *Bot) onServicePick(c tele.Context) error {
	sender := c.Sender()
	key := c.Data()

	req, err := b.redeem.Create(sender.ID, key)
	switch {
	case errors.Is(err, domain.ErrServiceNotFound):
		return c.Respond(&tele.CallbackResponse{Text: "This service is no longer available."})
	case errors.Is(err, domain.ErrInsufficientBalance):
		return c.Respond(&tele.CallbackResponse{
			Text:      "Not enough available points for this service.",
			ShowAlert: true,
		})
	case err != nil:
		logger.Log.Error("creating service request", logger.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: "Something went wrong, please try again."})
	}

	svc, _ := b.redeem.Service(key)
	b.notifyAdmins(fmt.Sprintf(
		"📨 New request: %s %s (%d pts) from id %d. Approve with /approve %d",
		svc.Icon, svc.Name, req.Cost.IntPart(), sender.ID, sender.ID,
	))

	if err := c.Respond(&tele.CallbackResponse{Text: "Request created!"}); err != nil {
		return err
	}
	return c.Send(fmt.Sprintf(
		"✅ Your request for %s %s is in. %d points are reserved until an admin approves it.",
		svc.Icon, svc.Name, req.Cost.IntPart(),
	))
}

func (b *Bot) notifyAdmins(text string) {
	for _, id := range b.cfg.Bot.AdminIDs {
		if _, err := b.tb.Send(tele.ChatID(id), text); err != nil {
			logger.Log.Info("admin notification failed",
				logger.Int64("admin", id), logger.Error(err))
		}
	}
}

// ─── Rendering ──────────────────────────────────────────────────────────────

func welcomeText(botUsername string, userID int64) string {
	return "👋 Welcome!\n\n" +
		"Invite friends and earn points: 1 point per direct invite, plus a " +
		"bonus for the people they bring in. Spend points on services from " +
		"the catalog.\n\n" +
		"Your invite link:\n" + referralLink(botUsername, userID)
}

func helpText() string {
	return strings.Join([]string{
		"💰 My balance — your points and how they break down",
		"👥 My network — who you invited and who they invited",
		"📈 Retention — points counting only recently active invitees",
		"🏆 Top — the leaderboard",
		"🎁 Services — spend your points",
	}, "\n")
}

func renderBalance(bal domain.Balance, link string) string {
	var sb strings.Builder
	sb.WriteString("💰 Your balance\n\n")
	fmt.Fprintf(&sb, "Direct invites: %d (+%d pts)\n", bal.Level1Count, bal.Level1Count)
	fmt.Fprintf(&sb, "Second level: %d (+%d pts bonus)\n", bal.Level2Raw, bal.Level2Bonus)
	if bal.ManualTotal != 0 {
		fmt.Fprintf(&sb, "Bonus points: %+d\n", bal.ManualTotal)
	}
	fmt.Fprintf(&sb, "\nTotal: %d pts\n", bal.TotalPoints)
	if bal.Reserved != 0 {
		fmt.Fprintf(&sb, "Reserved: %d pts\n", bal.Reserved)
	}
	fmt.Fprintf(&sb, "Available: %d pts\n", bal.AvailablePoints)
	sb.WriteString("\nYour invite link:\n" + link)
	return sb.String()
}

func renderNetwork(children []domain.NetworkChild) string {
	if len(children) == 0 {
		return "👥 You haven't invited anyone yet. Share your link!"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "👥 Your network: %d direct invite(s)\n\n", len(children))
	for i, ch := range children {
		name := ch.Username
		if name == "" {
			name = fmt.Sprintf("id %d", ch.UserID)
		} else {
			name = "@" + name
		}
		fmt.Fprintf(&sb, "%d. %s — brought %d more\n", i+1, name, ch.Level1Count)
	}
	return sb.String()
}

func renderRetention(active domain.ActiveBalance, days int) string {
	return fmt.Sprintf(
		"📈 Active in the last %d days\n\n"+
			"Direct invites: %d\nSecond level: %d (+%d bonus)\n\nActive total: %d pts",
		days, active.Level1Count, active.Level2Raw, active.Level2Bonus, active.TotalPoints,
	)
}

func renderLeaderboard(board []domain.LeaderboardEntry, limit int) string {
	if len(board) == 0 {
		return "🏆 The leaderboard is empty so far."
	}
	if limit > 0 && len(board) > limit {
		board = board[:limit]
	}
	var sb strings.Builder
	sb.WriteString("🏆 Top referrers\n\n")
	for i, e := range board {
		name := e.Username
		if name == "" {
			name = fmt.Sprintf("id %d", e.UserID)
		} else {
			name = "@" + name
		}
		fmt.Fprintf(&sb, "%d. %s — %d pts\n", i+1, name, e.TotalPoints)
	}
	return sb.String()
}
