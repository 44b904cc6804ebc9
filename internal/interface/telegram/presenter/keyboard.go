// Package presenter formats bot replies for Telegram.
// Texts use Telegram HTML markup; user-supplied values are escaped.
package presenter

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data carried by inline buttons.
const (
	CallbackLinkAccount = "link_account"
	CallbackHelp        = "help"
)

// StartKeyboard is attached to every /start reply, linked or not.
func (p *Presenter) StartKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔗 Связать аккаунт", CallbackLinkAccount),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("🌐 Открыть сайт", p.siteURL),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❓ Помощь", CallbackHelp),
		),
	)
	return &kb
}
