// Package bot is the Telegram front end: it triggers ingestion passes on
// request, browses stored items and posts scheduled run reports.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"newsbuzz/internal/config"
	"newsbuzz/internal/model"
	"newsbuzz/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Trigger runs one ingestion pass.
type Trigger interface {
	RunOnce(ctx context.Context) (*model.Report, error)
}

// Reader is the query side of the item store.
type Reader interface {
	Query(ctx context.Context, q storage.Query) ([]model.Item, error)
	Count(ctx context.Context, category string) (int, error)
	Categories(ctx context.Context) ([]storage.CategoryCount, error)
}

// Bot is the Telegram bot that handles user commands and sends run reports.
type Bot struct {
	api     telegramAPI
	trigger Trigger
	store   Reader
	cfg     *config.Config
	log     *slog.Logger
}

// New creates a Bot with the given Telegram token, trigger, store, and config.
func New(token string, trigger Trigger, store Reader, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:     api,
		trigger: trigger,
		store:   store,
		cfg:     cfg,
		log:     log,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if cb := update.CallbackQuery; cb != nil {
		if cb.Message == nil || cb.From == nil {
			return
		}
		if !b.cfg.IsUserAllowed(cb.From.ID) {
			b.reply(cb.Message.Chat.ID, "Access denied.")
			return
		}
		b.handleCallback(ctx, cb)
		return
	}
	if update.Message == nil || !update.Message.IsCommand() || update.Message.From == nil {
		return
	}
	if !b.cfg.IsUserAllowed(update.Message.From.ID) {
		b.reply(update.Message.Chat.ID, "Access denied.")
		return
	}
	b.handleCommand(ctx, update.Message)
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

// NotifyReport posts the summary of a scheduled pass to the report chat.
// Passes that added nothing and had no failures are not reported.
func (b *Bot) NotifyReport(report *model.Report) {
	if b.cfg.TelegramReportChat == 0 || report == nil {
		return
	}
	if report.Added == 0 && len(report.Errors) == 0 {
		return
	}
	b.SendMessage(b.cfg.TelegramReportChat, FormatReport(report))
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case cmdRun:
		b.handleRun(ctx, chatID)
	case cmdLatest:
		b.handleLatest(ctx, chatID, args)
	case "stats":
		b.handleStats(ctx, chatID)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
