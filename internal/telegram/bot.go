// Package telegram adapts the Telegram Bot API to chat events and replies.
package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"liquidityPilot/internal/chat"
)

const notModified = "message is not modified"

// Bot long-polls for updates and implements chat.Sender.
type Bot struct {
	api         *tgbotapi.BotAPI
	pollTimeout int
	logger      *zap.Logger
}

func New(token string, pollTimeout int, logger *zap.Logger) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollTimeout <= 0 {
		pollTimeout = 60
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}
	logger.Info("telegram connected", zap.String("bot", api.Self.UserName))
	return &Bot{api: api, pollTimeout: pollTimeout, logger: logger}, nil
}

// Send posts a new message or edits reply.Edit in place. An edit that
// leaves the message unchanged is not an error.
func (b *Bot) Send(_ context.Context, chatID int64, reply chat.Reply) (chat.MessageRef, error) {
	if reply.Edit != nil {
		edit := tgbotapi.NewEditMessageText(reply.Edit.ChatID, reply.Edit.MessageID, reply.Text)
		edit.ParseMode = tgbotapi.ModeHTML
		edit.DisableWebPagePreview = true
		if len(reply.Choices) > 0 {
			markup := keyboard(reply.Choices)
			edit.ReplyMarkup = &markup
		}
		if _, err := b.api.Send(edit); err != nil {
			if strings.Contains(err.Error(), notModified) {
				return *reply.Edit, nil
			}
			return chat.MessageRef{}, fmt.Errorf("edit message: %w", err)
		}
		return *reply.Edit, nil
	}

	msg := tgbotapi.NewMessage(chatID, reply.Text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if len(reply.Choices) > 0 {
		msg.ReplyMarkup = keyboard(reply.Choices)
	}
	sent, err := b.api.Send(msg)
	if err != nil {
		return chat.MessageRef{}, fmt.Errorf("send message: %w", err)
	}
	return chat.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// Run delivers updates to handle until ctx is cancelled. Callback queries
// are acknowledged before handle runs.
func (b *Bot) Run(ctx context.Context, handle func(chat.Event)) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(cfg)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if q := update.CallbackQuery; q != nil {
				if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
					b.logger.Debug("callback ack failed", zap.Error(err))
				}
			}
			ev, ok := toEvent(update)
			if !ok {
				continue
			}
			handle(ev)
		}
	}
}

func toEvent(update tgbotapi.Update) (chat.Event, bool) {
	if q := update.CallbackQuery; q != nil {
		if q.From == nil || q.Message == nil || q.Message.Chat == nil {
			return chat.Event{}, false
		}
		return chat.Event{
			Kind:      chat.EventCallback,
			UserID:    q.From.ID,
			ChatID:    q.Message.Chat.ID,
			MessageID: q.Message.MessageID,
			Username:  q.From.UserName,
			Data:      q.Data,
		}, true
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return chat.Event{}, false
	}
	ev := chat.Event{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Username:  msg.From.UserName,
	}
	if msg.IsCommand() {
		ev.Kind = chat.EventCommand
		ev.Command = strings.ToLower(msg.Command())
		ev.Args = strings.Fields(msg.CommandArguments())
		return ev, true
	}
	if msg.Text == "" {
		return chat.Event{}, false
	}
	ev.Kind = chat.EventText
	ev.Text = msg.Text
	return ev, true
}

func keyboard(choices [][]chat.Choice) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(choices))
	for _, row := range choices {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, c := range row {
			if c.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(c.Label, c.URL))
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(c.Label, c.Data))
		}
		if len(buttons) > 0 {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
		}
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
