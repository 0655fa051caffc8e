package bot

import (
	"fmt"

	tele "gopkg.in/telebot.v3"

	"github.com/selloriy/selloriy/internal/config"
	"github.com/selloriy/selloriy/internal/domain"
)

// Reply-keyboard button labels. onText matches messages against these.
const (
	btnTextBalance   = "💰 My balance"
	btnTextNetwork   = "👥 My network"
	btnTextRetention = "📈 Retention"
	btnTextTop       = "🏆 Top"
	btnTextServices  = "🎁 Services"
	btnTextHelp      = "ℹ️ Help"
	btnTextAdmin     = "🛠 Admin panel"
)

// Callback buttons. The unique names route callbacks back to handlers.
var (
	btnCheckSub = tele.Btn{Unique: "checksub", Text: "✅ I've subscribed"}
	btnService  = tele.Btn{Unique: "service"}

	btnAdminStats     = tele.Btn{Unique: "adm_stats", Text: "📊 Stats"}
	btnAdminPending   = tele.Btn{Unique: "adm_pending", Text: "📨 Pending requests"}
	btnAdminTop       = tele.Btn{Unique: "adm_top", Text: "🏆 Leaderboard"}
	btnAdminExport    = tele.Btn{Unique: "adm_export", Text: "📥 Export users"}
	btnAdminBroadcast = tele.Btn{Unique: "adm_broadcast", Text: "📣 Broadcast"}
	btnAdminSearch    = tele.Btn{Unique: "adm_search", Text: "🔎 Find user"}
	btnAdminGrant     = tele.Btn{Unique: "adm_grant", Text: "➕ Give points"}
)

// mainMenu is the persistent reply keyboard. Admins get one extra row.
func mainMenu(admin bool) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{ResizeKeyboard: true}
	rows := []tele.Row{
		menu.Row(menu.Text(btnTextBalance), menu.Text(btnTextNetwork)),
		menu.Row(menu.Text(btnTextRetention), menu.Text(btnTextTop)),
		menu.Row(menu.Text(btnTextServices), menu.Text(btnTextHelp)),
	}
	if admin {
		rows = append(rows, menu.Row(menu.Text(btnTextAdmin)))
	}
	menu.Reply(rows...)
	return menu
}

// servicesMenu lists the redeemable catalog as inline buttons carrying the
// service key as callback data.
func servicesMenu(catalog []domain.CatalogEntry) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(catalog))
	for _, svc := range catalog {
		label := fmt.Sprintf("%s %s — %d pts", svc.Icon, svc.Name, svc.Cost)
		rows = append(rows, menu.Row(menu.Data(label, btnService.Unique, svc.Key)))
	}
	menu.Inline(rows...)
	return menu
}

// adminMenu is the admin panel inline keyboard.
func adminMenu() *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	menu.Inline(
		menu.Row(menu.Data(btnAdminStats.Text, btnAdminStats.Unique)),
		menu.Row(menu.Data(btnAdminPending.Text, btnAdminPending.Unique)),
		menu.Row(menu.Data(btnAdminTop.Text, btnAdminTop.Unique)),
		menu.Row(menu.Data(btnAdminGrant.Text, btnAdminGrant.Unique)),
		menu.Row(menu.Data(btnAdminSearch.Text, btnAdminSearch.Unique)),
		menu.Row(menu.Data(btnAdminBroadcast.Text, btnAdminBroadcast.Unique)),
		menu.Row(menu.Data(btnAdminExport.Text, btnAdminExport.Unique)),
	)
	return menu
}

// channelsMenu lists the gate channels as link buttons plus the
// re-check button.
func channelsMenu(channels []config.ChannelConfig) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	rows := make([]tele.Row, 0, len(channels)+1)
	for _, ch := range channels {
		rows = append(rows, menu.Row(menu.URL(ch.Title, ch.URL)))
	}
	rows = append(rows, menu.Row(menu.Data(btnCheckSub.Text, btnCheckSub.Unique)))
	menu.Inline(rows...)
	return menu
}
