package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"newsbuzz/internal/storage"
)

const (
	cmdRun    = "run"
	cmdLatest = "latest"

	// Telegram rejects callback data longer than this.
	maxCallbackData = 64
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	action, arg, ok := strings.Cut(cb.Data, ":")
	if !ok {
		return
	}

	var userID int64
	var username string
	if cb.From != nil {
		userID, username = cb.From.ID, cb.From.UserName
	}
	b.log.Info("callback",
		"action", action,
		"arg", arg,
		"chat_id", chatID,
		"user_id", userID,
		"username", username,
	)

	switch action {
	case cmdLatest:
		// callback data carries a category name verbatim, never a count
		b.sendLatest(ctx, chatID, LatestArgs{Category: arg, Limit: DefaultLatest})
	case cmdRun:
		b.handleRun(ctx, chatID)
	}
}

func categoryKeyboard(cats []storage.CategoryCount) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, c := range cats {
		data := cmdLatest + ":" + c.Category
		if len(data) > maxCallbackData {
			continue
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(c.Category, data))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Fetch now", cmdRun+":now"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
