package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"marketbot/api"
	"marketbot/chat"
	"marketbot/media"
	"marketbot/pkg/market"
	"marketbot/session"
)

// Backend is the marketplace API surface used by chat commands.
type Backend interface {
	Login(ctx context.Context, creds market.Credentials) (*market.Auth, error)
	Profile(ctx context.Context, token string) (*market.Profile, error)
	ListAds(ctx context.Context, token string) ([]*market.Advertisement, error)
	Ad(ctx context.Context, id market.ID, token string) (*market.Advertisement, error)
	AddComment(ctx context.Context, nc market.NewComment, token string) (*market.Comment, error)
	AdComments(ctx context.Context, adID market.ID, token string) ([]*market.Comment, error)
	AllComments(ctx context.Context, token string) ([]*market.Comment, error)
}

// PhotoLoader fetches the first usable photo of an ad, or nil.
type PhotoLoader interface {
	First(ctx context.Context, urls []string) *media.Photo
}

type handler func(ctx context.Context, in chat.Inbound, args []string) (chat.Message, error)

// Dispatcher routes inbound chat messages to command handlers and sends one reply per command.
type Dispatcher struct {
	backend  Backend
	sessions session.Store
	sender   chat.Sender
	photos   PhotoLoader
	prefix   string
	logger   *slog.Logger
	handlers map[string]handler
}

// New creates a dispatcher. An empty prefix means DefaultPrefix.
func New(backend Backend, sessions session.Store, sender chat.Sender, photos PhotoLoader, prefix string, logger *slog.Logger) *Dispatcher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	d := &Dispatcher{
		backend:  backend,
		sessions: sessions,
		sender:   sender,
		photos:   photos,
		prefix:   prefix,
		logger:   logger,
	}
	d.handlers = map[string]handler{
		"help":          d.help,
		"login":         d.login,
		"logout":        d.logout,
		"profile":       d.profile,
		"all_ads":       d.allAds,
		"view_ad":       d.viewAd,
		"nearby":        d.nearby,
		"add_comment":   d.addComment,
		"view_comments": d.viewComments,
		"all_comments":  d.allComments,
	}
	return d
}

// Handle processes one inbound message. Text without the command prefix and
// the bot's own messages are ignored. It never panics.
func (d *Dispatcher) Handle(ctx context.Context, in chat.Inbound) {
	if in.FromMe {
		return
	}
	cmd, ok := Parse(d.prefix, in.Text)
	if !ok {
		return
	}

	start := time.Now()
	logger := d.logger.With("command", cmd.Name, "sender", in.Sender, "chat", in.Chat)

	reply := d.run(ctx, logger, cmd, in)
	if err := d.sender.Send(ctx, in.Chat, reply); err != nil {
		logger.Error("Failed to send reply", "error", err)
		return
	}
	logger.Info("Command handled", "duration_ms", time.Since(start).Milliseconds())
}

func (d *Dispatcher) run(ctx context.Context, logger *slog.Logger, cmd Command, in chat.Inbound) (reply chat.Message) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Command handler panicked", "panic", r)
			reply = chat.Message{Text: "❌ Something went wrong while handling your command. Please try again."}
		}
	}()

	h, ok := d.handlers[cmd.Name]
	if !ok {
		return chat.Message{Text: fmt.Sprintf("❓ Unknown command %s%s. Send %shelp to see what I can do.", d.prefix, cmd.Name, d.prefix)}
	}
	msg, err := h(ctx, in, cmd.Args)
	if err != nil {
		logger.Warn("Command failed", "error", err)
		return chat.Message{Text: d.errorText(err)}
	}
	return msg
}

// errorText renders a handler error for the user.
func (d *Dispatcher) errorText(err error) string {
	var (
		ve *ValidationError
		ce *api.ConnectivityError
		ae *api.APIError
		se *api.SchemaError
	)
	switch {
	case errors.As(err, &ve):
		if ve.Reason != "" {
			return fmt.Sprintf("⚠️ %s\nUsage: %s", ve.Reason, ve.Usage)
		}
		return "⚠️ Usage: " + ve.Usage
	case errors.Is(err, ErrAuthRequired):
		return fmt.Sprintf("🔒 You need to log in first.\nUsage: %s", usageLogin)
	case errors.Is(err, errNoLocation):
		return "❌ Profile error: your profile has no location. Log in again with a location to set one."
	case errors.As(err, &ce):
		return fmt.Sprintf("❌ Cannot reach the marketplace at %s. Please try again later.", ce.URL)
	case errors.As(err, &ae):
		return "❌ Request failed: " + ae.Message
	case errors.As(err, &se):
		if se.Err != nil {
			return "❌ The marketplace sent an unexpected response: " + se.Err.Error()
		}
		return "❌ The marketplace sent an unexpected response. Please try again later."
	}
	return "❌ Request failed: " + err.Error()
}

// token returns the sender's bearer token, or "" when not logged in.
func (d *Dispatcher) token(in chat.Inbound) string {
	s, ok := d.sessions.Get(in.Sender)
	if !ok {
		return ""
	}
	return s.Token
}

// requireSession returns the sender's session or ErrAuthRequired.
func (d *Dispatcher) requireSession(in chat.Inbound) (session.Session, error) {
	s, ok := d.sessions.Get(in.Sender)
	if !ok {
		return session.Session{}, ErrAuthRequired
	}
	return s, nil
}
