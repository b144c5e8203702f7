// Package chat defines the transport-neutral message shapes exchanged with
// the chat platform.
package chat

import (
	"context"
	"html"
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Choice is an inline button. URL buttons open a link instead of sending
// Data back.
type Choice struct {
	Label string
	Data  string
	URL   string
}

// MessageRef identifies a sent message.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Reply is an outgoing message. When Edit is set the referenced message is
// rewritten instead of sending a new one.
type Reply struct {
	Text    string
	Choices [][]Choice
	Edit    *MessageRef
}

// Sender delivers replies.
type Sender interface {
	Send(ctx context.Context, chatID int64, reply Reply) (MessageRef, error)
}

type EventKind int

const (
	EventCommand EventKind = iota + 1
	EventText
	EventCallback
)

// Event is one inbound update from a user.
type Event struct {
	Kind      EventKind
	UserID    int64
	ChatID    int64
	MessageID int
	Username  string
	Command   string
	Args      []string
	Text      string
	Data      string
}

// Row builds a single row of choices.
func Row(choices ...Choice) []Choice {
	return choices
}

// PlainText renders HTML reply text the way the client displays it: tags
// removed and entities decoded.
func PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(s, "")))
}
