// Package chat defines the chat transport seen by the dispatcher and the pollers.
package chat

import (
	"context"

	"marketbot/media"
)

// Message is one outbound chat message with an optional photo.
// When Photo is set, Text is sent as its caption.
type Message struct {
	Text  string
	Photo *media.Photo
}

// Inbound is one received text message.
type Inbound struct {
	Chat   string // where replies go (user or group JID)
	Sender string // who wrote it; the session key
	Text   string
	FromMe bool
}

// Sender delivers outbound messages.
type Sender interface {
	Send(ctx context.Context, to string, msg Message) error
}
