package bot

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	tele "gopkg.in/telebot.v3"

	"github.com/selloriy/selloriy/internal/app/conversation"
	"github.com/selloriy/selloriy/internal/domain"
	"github.com/selloriy/selloriy/internal/export"
	"github.com/selloriy/selloriy/internal/infra/observability"
	"github.com/selloriy/selloriy/pkg/logger"
)

func (b *Bot) onAdminPanel(c tele.Context) error {
	if !b.isAdmin(c.Sender().ID) {
		return nil
	}
	return c.Send("🛠 Admin panel", adminMenu())
}

func (b *Bot) onAdminStats(c tele.Context) error {
	if !b.isAdmin(c.Sender().ID) {
		return nil
	}
	stats, err := b.ledger.Stats()
	if err != nil {
		logger.Log.Error("loading stats", logger.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: "Failed to load stats."})
	}
	if err := c.Respond(); err != nil {
		return err
	}
	return c.Send(fmt.Sprintf(
		"📊 Stats\n\nUsers: %d\nPending requests: %d\nApproved requests: %d",
		stats.Users, stats.Pending, stats.Approved,
	))
}

func (b *Bot) onAdminPending(c tele.Context) error {
	if !b.isAdmin(c.Sender().ID) {
		return nil
	}
	pending, err := b.redeem.Pending()
	if err != nil {
		logger.Log.Error("loading pending requests", logger.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: "Failed to load requests."})
	}
	if err := c.Respond(); err != nil {
		return err
	}
	return c.Send(renderPending(pending))
}

func (b *Bot) onAdminTop(c tele.Context) error {
	if !b.isAdmin(c.Sender().ID) {
		return nil
	}
	board, err := b.ledger.Leaderboard(b.cfg.Ledger.LeaderboardLimit)
	if err != nil {
		logger.Log.Error("building leaderboard", logger.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: "Failed to build the leaderboard."})
	}
	if err := c.Respond(); err != nil {
		return err
	}
	return c.Send(renderLeaderboard(board, b.cfg.Ledger.LeaderboardLimit))
}

// onAdminExport builds the users workbook in memory and sends it as a
// document.
func (b *Bot) onAdminExport(c tele.Context) error {
	if !b.isAdmin(c.Sender().ID) {
		return nil
	}
	users, err := b.ledger.AllUsers()
	if err != nil {
		logger.Log.Error("loading users for export", logger.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: "Export failed."})
	}
	var buf bytes.Buffer
	if err := export.WriteUsers(&buf, users); err != nil {
		logger.Log.Error("building export workbook", logger.Error(err))
		return c.Respond(&tele.CallbackResponse{Text: "Export failed."})
	}
	if err := c.Respond(); err != nil {
		return err
	}
	return c.Send(&tele.Document{
		File:     tele.FromReader(&buf),
		FileName: export.SnapshotName(),
	})
}

func (b *Bot) onAdminBroadcast(c tele.Context) error {
	if !b.isAdmin(c.Sender().ID) {
		return nil
	}
	b.conv.Begin(c.Sender().ID, conversation.KindBroadcast, conversation.StepText)
	if err := c.Respond(); err != nil {
		return err
	}
	return c.Send("📣 Send the broadcast text. /cancel to abort.")
}

func (b *Bot) onAdminSearch(c tele.Context) error {
	if !b.isAdmin(c.Sender().ID) {
		return nil
	}
	b.conv.Begin(c.Sender().ID, conversation.KindSearch, conversation.StepText)
	if err := c.Respond(); err != nil {
		return err
	}
	return c.Send("🔎 Send a user id or @username. /cancel to abort.")
}

func (b *Bot) onAdminGrant(c tele.Context) error {
	if !b.isAdmin(c.Sender().ID) {
		return nil
	}
	b.conv.Begin(c.Sender().ID, conversation.KindGrant, conversation.StepUser)
	if err := c.Respond(); err != nil {
		return err
	}
	return c.Send("➕ Who gets the points? Send a user id or @username. /cancel to abort.")
}

// onGivePoint is the command alias for the grant flow.
func (b *Bot) onGivePoint(c tele.Context) error {
	if !b.isAdmin(c.Sender().ID) {
		return nil
	}
	b.conv.Begin(c.Sender().ID, conversation.KindGrant, conversation.StepUser)
	return c.Send("➕ Who gets the points? Send a user id or @username. /cancel to abort.")
}

// onApproveCommand settles the newest pending request of the given user,
// then asks for an optional comment to forward to them.
func (b *Bot) onApproveCommand(c tele.Context) error {
	admin := c.Sender()
	if !b.isAdmin(admin.ID) {
		return nil
	}

	target, err := b.ledger.FindUser(strings.TrimSpace(c.Message().Payload))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return c.Send("Usage: /approve <id or @username> — user not found.")
		}
		logger.Log.Error("resolving approve target", logger.Error(err))
		return c.Send("Something went wrong, please try again.")
	}

	settled, err := b.redeem.ApproveLatest(target.ID, admin.ID)
	if errors.Is(err, domain.ErrNoPendingRequest) {
		return c.Send(fmt.Sprintf("%s has no pending requests.", target.DisplayName()))
	}
	if err != nil {
		logger.Log.Error("approving request", logger.Error(err))
		return c.Send("Something went wrong, please try again.")
	}

	svcName := settled.ServiceKey
	if svc, ok := b.redeem.Service(settled.ServiceKey); ok {
		svcName = svc.Icon + " " + svc.Name
	}
	if _, err := b.tb.Send(tele.ChatID(target.ID),
		fmt.Sprintf("✅ Your request for %s has been approved!", svcName)); err != nil {
		logger.Log.Info("approval notification failed",
			logger.Int64("user", target.ID), logger.Error(err))
	}

	st := b.conv.Begin(admin.ID, conversation.KindApprove, conversation.StepText)
	st.TargetID = target.ID
	return c.Send(fmt.Sprintf(
		"Approved %s for %s. Send a comment to forward to them, or /cancel to skip.",
		svcName, target.DisplayName(),
	))
}

// ─── Conversation steps ─────────────────────────────────────────────────────

// continueConversation feeds the message into the admin's in-progress flow.
// Returns false when no flow is active, so onText falls through to the
// keyboard buttons.
func (b *Bot) continueConversation(c tele.Context) (bool, error) {
	admin := c.Sender()
	st, err := b.conv.Current(admin.ID)
	if errors.Is(err, domain.ErrConversationNotFound) {
		return false, nil
	}
	if errors.Is(err, domain.ErrConversationExpired) {
		return true, c.Send("That took too long, the flow was cancelled. Start again.")
	}

	switch st.Kind {
	case conversation.KindGrant:
		return true, b.stepGrant(c, st)
	case conversation.KindBroadcast:
		b.conv.End(admin.ID)
		return true, b.runBroadcast(c, c.Text())
	case conversation.KindSearch:
		b.conv.End(admin.ID)
		return true, b.runSearch(c, c.Text())
	case conversation.KindApprove:
		b.conv.End(admin.ID)
		return true, b.forwardComment(c, st.TargetID, c.Text())
	}
	b.conv.End(admin.ID)
	return true, nil
}

func (b *Bot) stepGrant(c tele.Context, st conversation.State) error {
	admin := c.Sender()
	text := strings.TrimSpace(c.Text())

	switch st.Step {
	case conversation.StepUser:
		target, err := b.ledger.FindUser(text)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				return c.Send("User not found. Send a user id or @username, or /cancel.")
			}
			logger.Log.Error("resolving grant target", logger.Error(err))
			return c.Send("Something went wrong, please try again.")
		}
		if err := b.conv.Advance(admin.ID, conversation.StepAmount, func(s *conversation.State) {
			s.TargetID = target.ID
		}); err != nil {
			return c.Send("The flow expired, start again.")
		}
		return c.Send(fmt.Sprintf(
			"Granting to %s. How many points? Negative amounts deduct.", target.DisplayName(),
		))

	case conversation.StepAmount:
		amount, err := decimal.NewFromString(text)
		if err != nil || amount.IsZero() {
			return c.Send("Send a non-zero number, e.g. 5 or -2.5, or /cancel.")
		}
		if err := b.conv.Advance(admin.ID, conversation.StepReason, func(s *conversation.State) {
			s.Amount = amount
		}); err != nil {
			return c.Send("The flow expired, start again.")
		}
		return c.Send("What's the reason? Send \"-\" to use the default.")

	case conversation.StepReason:
		reason := text
		if reason == "-" {
			reason = ""
		}
		b.conv.End(admin.ID)
		if err := b.ledger.Grant(st.TargetID, st.Amount, reason, admin.ID); err != nil {
			logger.Log.Error("granting points", logger.Error(err))
			return c.Send("Grant failed, please try again.")
		}
		bal, err := b.ledger.Compute(st.TargetID)
		if err != nil {
			return c.Send("Granted.")
		}
		if _, err := b.tb.Send(tele.ChatID(st.TargetID), fmt.Sprintf(
			"🎁 You received %s bonus point(s)! Balance: %d pts.",
			st.Amount.String(), bal.TotalPoints)); err != nil {
			logger.Log.Info("grant notification failed",
				logger.Int64("user", st.TargetID), logger.Error(err))
		}
		return c.Send(fmt.Sprintf(
			"Granted %s pts to id %d. New total: %d pts.",
			st.Amount.String(), st.TargetID, bal.TotalPoints,
		))
	}
	b.conv.End(admin.ID)
	return nil
}

// runBroadcast fans the text out to every user. Failed deliveries (blocked
// bot, deleted account) are counted and skipped, never aborting the run.
func (b *Bot) runBroadcast(c tele.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return c.Send("Empty broadcast discarded.")
	}
	users, err := b.ledger.AllUsers()
	if err != nil {
		logger.Log.Error("loading users for broadcast", logger.Error(err))
		return c.Send("Broadcast failed, please try again.")
	}

	runID := uuid.NewString()
	var sent, failed int
	for _, u := range users {
		if _, err := b.tb.Send(tele.ChatID(u.ID), text); err != nil {
			failed++
			observability.BroadcastMessages.WithLabelValues("failed").Inc()
			continue
		}
		sent++
		observability.BroadcastMessages.WithLabelValues("sent").Inc()
	}
	logger.Log.Info("broadcast finished",
		logger.String("run", runID),
		logger.Int("sent", sent), logger.Int("failed", failed))
	return c.Send(fmt.Sprintf("📣 Broadcast delivered to %d of %d users.", sent, len(users)))
}

func (b *Bot) runSearch(c tele.Context, query string) error {
	target, err := b.ledger.FindUser(strings.TrimSpace(query))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return c.Send("User not found.")
		}
		logger.Log.Error("searching user", logger.Error(err))
		return c.Send("Something went wrong, please try again.")
	}
	bal, err := b.ledger.Compute(target.ID)
	if err != nil {
		logger.Log.Error("computing balance", logger.Error(err))
		return c.Send("Something went wrong, please try again.")
	}
	grants, err := b.ledger.Grants(target.ID)
	if err != nil {
		logger.Log.Error("loading grants", logger.Error(err))
		return c.Send("Something went wrong, please try again.")
	}
	return c.Send(renderProfile(*target, bal, grants))
}

func (b *Bot) forwardComment(c tele.Context, targetID int64, comment string) error {
	if strings.TrimSpace(comment) == "" {
		return c.Send("Empty comment skipped.")
	}
	if _, err := b.tb.Send(tele.ChatID(targetID), "💬 Admin: "+comment); err != nil {
		logger.Log.Info("comment delivery failed",
			logger.Int64("user", targetID), logger.Error(err))
		return c.Send("Couldn't deliver the comment.")
	}
	return c.Send("Comment delivered.")
}

// ─── Rendering ──────────────────────────────────────────────────────────────

func renderPending(pending []domain.ServiceRequest) string {
	if len(pending) == 0 {
		return "📨 No pending requests."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📨 Pending requests: %d\n\n", len(pending))
	for i, r := range pending {
		fmt.Fprintf(&sb, "%d. id %d — %s (%d pts), %s\n",
			i+1, r.UserID, r.ServiceKey, r.Cost.IntPart(),
			r.CreatedAt.Format("2006-01-02 15:04"))
	}
	sb.WriteString("\nApprove the newest with /approve <id or @username>")
	return sb.String()
}

func renderProfile(u domain.User, bal domain.Balance, grants []domain.ManualGrant) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "👤 %s (id %s)\n", u.DisplayName(), strconv.FormatInt(u.ID, 10))
	fmt.Fprintf(&sb, "Joined: %s\n", u.CreatedAt.Format("2006-01-02"))
	fmt.Fprintf(&sb, "Last active: %s\n\n", u.LastActiveAt.Format("2006-01-02"))
	if u.ReferrerID != 0 {
		fmt.Fprintf(&sb, "Invited by: id %d\n", u.ReferrerID)
	} else {
		sb.WriteString("Joined organically\n")
	}
	fmt.Fprintf(&sb, "\nLevel 1: %d, level 2: %d (+%d)\n",
		bal.Level1Count, bal.Level2Raw, bal.Level2Bonus)
	fmt.Fprintf(&sb, "Manual: %+d\n", bal.ManualTotal)
	fmt.Fprintf(&sb, "Total: %d, reserved: %d, available: %d\n",
		bal.TotalPoints, bal.Reserved, bal.AvailablePoints)
	if len(grants) > 0 {
		sb.WriteString("\nRecent grants:\n")
		for i, g := range grants {
			if i == 5 {
				break
			}
			fmt.Fprintf(&sb, "%s pts — %s (%s)\n",
				g.Amount.String(), g.Reason, g.CreatedAt.Format("2006-01-02"))
		}
	}
	return sb.String()
}
