// Package bot is the Telegram transport: it maps chat commands, keyboard
// presses and callback queries onto the ledger and redemption services.
// All bookkeeping lives below it; the bot only parses input and renders
// replies.
package bot

import (
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/selloriy/selloriy/internal/app/conversation"
	"github.com/selloriy/selloriy/internal/app/ledger"
	"github.com/selloriy/selloriy/internal/app/redeem"
	"github.com/selloriy/selloriy/internal/config"
	"github.com/selloriy/selloriy/pkg/logger"
)

// Bot wires the Telegram API to the application services.
type Bot struct {
	tb     *tele.Bot
	cfg    *config.Config
	ledger *ledger.Service
	redeem *redeem.Service
	conv   *conversation.Manager

	stopSweep chan struct{}
}

// New connects to the Telegram API and registers all handlers.
func New(cfg *config.Config, led *ledger.Service, red *redeem.Service) (*Bot, error) {
	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: &tele.LongPoller{Timeout: time.Duration(cfg.Bot.PollTimeoutSeconds) * time.Second},
	})
	if err != nil {
		return nil, err
	}

	b := &Bot{
		tb:        tb,
		cfg:       cfg,
		ledger:    led,
		redeem:    red,
		conv:      conversation.NewManager(cfg.ConversationTTL()),
		stopSweep: make(chan struct{}),
	}
	b.route()
	return b, nil
}

func (b *Bot) route() {
	b.tb.Handle("/start", b.onStart)
	b.tb.Handle("/help", b.onHelp)
	b.tb.Handle("/cancel", b.onCancel)
	b.tb.Handle("/givepoint", b.onGivePoint)
	b.tb.Handle("/approve", b.onApproveCommand)

	b.tb.Handle(&btnCheckSub, b.onCheckSubscription)
	b.tb.Handle(&btnService, b.onServicePick)
	b.tb.Handle(&btnAdminStats, b.onAdminStats)
	b.tb.Handle(&btnAdminPending, b.onAdminPending)
	b.tb.Handle(&btnAdminTop, b.onAdminTop)
	b.tb.Handle(&btnAdminExport, b.onAdminExport)
	b.tb.Handle(&btnAdminBroadcast, b.onAdminBroadcast)
	b.tb.Handle(&btnAdminSearch, b.onAdminSearch)
	b.tb.Handle(&btnAdminGrant, b.onAdminGrant)

	b.tb.Handle(tele.OnText, b.onText)
}

// Start begins long polling. Blocks until Stop is called.
func (b *Bot) Start() {
	go b.sweepLoop()
	logger.Log.Info("bot polling started")
	b.tb.Start()
}

// Stop terminates polling and the conversation sweeper.
func (b *Bot) Stop() {
	close(b.stopSweep)
	b.tb.Stop()
}

func (b *Bot) sweepLoop() {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if n := b.conv.Sweep(); n > 0 {
				logger.Log.Info("dropped stale conversations", logger.Int("count", n))
			}
		case <-b.stopSweep:
			return
		}
	}
}

func (b *Bot) isAdmin(id int64) bool { return b.cfg.IsAdmin(id) }

// onText dispatches free-form messages: admin conversation steps first,
// then the reply-keyboard buttons.
func (b *Bot) onText(c tele.Context) error {
	sender := c.Sender()
	if err := b.ledger.Touch(sender.ID); err != nil {
		logger.Log.Error("touch activity", logger.Error(err))
	}

	if b.isAdmin(sender.ID) {
		handled, err := b.continueConversation(c)
		if handled {
			return err
		}
	}

	switch c.Text() {
	case btnTextBalance:
		return b.onBalance(c)
	case btnTextNetwork:
		return b.onNetwork(c)
	case btnTextRetention:
		return b.onRetention(c)
	case btnTextTop:
		return b.onTop(c)
	case btnTextServices:
		return b.onServices(c)
	case btnTextHelp:
		return b.onHelp(c)
	case btnTextAdmin:
		return b.onAdminPanel(c)
	}
	return nil
}

// parseStartPayload extracts the inviter id from a ref_<id> deep link.
// Anything malformed is treated as an organic join.
func parseStartPayload(payload string) int64 {
	const prefix = "ref_"
	if !strings.HasPrefix(payload, prefix) {
		return 0
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(payload, prefix), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

// referralLink builds the deep link a user shares to invite others.
func referralLink(botUsername string, userID int64) string {
	return "https://t.me/" + botUsername + "?start=ref_" + strconv.FormatInt(userID, 10)
}
