package telegram

import (
	"reflect"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"liquidityPilot/internal/chat"
)

func TestToEventCommand(t *testing.T) {
	update := tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 3,
		From:      &tgbotapi.User{ID: 7, UserName: "alice"},
		Chat:      &tgbotapi.Chat{ID: 70},
		Text:      "/Close@PilotBot 2 extra",
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 15}},
	}}

	ev, ok := toEvent(update)
	if !ok {
		t.Fatalf("expected event")
	}
	want := chat.Event{
		Kind:      chat.EventCommand,
		UserID:    7,
		ChatID:    70,
		MessageID: 3,
		Username:  "alice",
		Command:   "close",
		Args:      []string{"2", "extra"},
	}
	if !reflect.DeepEqual(ev, want) {
		t.Fatalf("event mismatch: %+v", ev)
	}
}

func TestToEventText(t *testing.T) {
	update := tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 4,
		From:      &tgbotapi.User{ID: 7},
		Chat:      &tgbotapi.Chat{ID: 70},
		Text:      "12.5",
	}}
	ev, ok := toEvent(update)
	if !ok || ev.Kind != chat.EventText || ev.Text != "12.5" {
		t.Fatalf("unexpected event: %+v", ev)
	}

	update.Message.Text = ""
	if _, ok := toEvent(update); ok {
		t.Fatalf("messages without text are skipped")
	}
}

func TestToEventCallback(t *testing.T) {
	update := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: 7},
		Message: &tgbotapi.Message{MessageID: 9, Chat: &tgbotapi.Chat{ID: 70}},
		Data:    "close:1",
	}}
	ev, ok := toEvent(update)
	if !ok {
		t.Fatalf("expected event")
	}
	if ev.Kind != chat.EventCallback || ev.Data != "close:1" || ev.MessageID != 9 || ev.ChatID != 70 {
		t.Fatalf("unexpected event: %+v", ev)
	}

	if _, ok := toEvent(tgbotapi.Update{}); ok {
		t.Fatalf("empty update must be skipped")
	}
}

func TestKeyboard(t *testing.T) {
	markup := keyboard([][]chat.Choice{
		{{Label: "Confirm", Data: "confirm"}, {Label: "Cancel", Data: "cancel"}},
		{},
		{{Label: "Explorer", URL: "https://bscscan.com"}},
	})
	if len(markup.InlineKeyboard) != 2 {
		t.Fatalf("empty rows are dropped, got %d rows", len(markup.InlineKeyboard))
	}
	first := markup.InlineKeyboard[0]
	if len(first) != 2 || first[0].CallbackData == nil || *first[0].CallbackData != "confirm" {
		t.Fatalf("unexpected first row: %+v", first)
	}
	link := markup.InlineKeyboard[1][0]
	if link.URL == nil || *link.URL != "https://bscscan.com" || link.CallbackData != nil {
		t.Fatalf("unexpected url button: %+v", link)
	}
}
