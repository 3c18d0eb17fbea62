package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"newsbuzz/internal/scheduler"
	"newsbuzz/internal/storage"
)

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to NewsBuzz!

I collect the latest stories from Nigerian and African news feeds.

Quick start:
1. /latest — newest stories
2. /latest football — newest stories in one category
3. /run — fetch fresh stories now

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Commands:
/latest [category] [n] — newest stories (default 5, max 20)
/stats — stored stories per category
/run — run an ingestion pass now`)
}

func (b *Bot) handleRun(ctx context.Context, chatID int64) {
	b.reply(chatID, "Fetching fresh stories...")

	report, err := b.trigger.RunOnce(ctx)
	switch {
	case errors.Is(err, scheduler.ErrRunInProgress):
		b.reply(chatID, "A run is already in progress. Try again in a moment.")
		return
	case err != nil:
		b.log.Error("ingestion run", "chat_id", chatID, "error", err)
		msg := "Run aborted: the store is unavailable."
		if report != nil {
			msg += "\n\n" + FormatReport(report)
		}
		b.reply(chatID, msg)
		return
	}

	b.reply(chatID, FormatReport(report))
}

func (b *Bot) handleLatest(ctx context.Context, chatID int64, args string) {
	la, err := ParseLatestArgs(args)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Usage: /latest [category] [n]\n%v", err))
		return
	}
	b.sendLatest(ctx, chatID, la)
}

func (b *Bot) sendLatest(ctx context.Context, chatID int64, la LatestArgs) {
	items, err := b.store.Query(ctx, storage.Query{Category: la.Category, Limit: la.Limit})
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	text := FormatItems(items, la.Category)
	if la.Category != "" {
		b.reply(chatID, text)
		return
	}

	cats, err := b.store.Categories(ctx)
	if err != nil || len(cats) == 0 {
		b.reply(chatID, text)
		return
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	msg.ReplyMarkup = categoryKeyboard(cats)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send latest", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) {
	cats, err := b.store.Categories(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	total, err := b.store.Count(ctx, "")
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatStats(cats, total))
}
