// Package whatsapp is the whatsmeow-backed chat transport.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"marketbot/chat"
)

// Client sends and receives WhatsApp messages for one linked device.
type Client struct {
	wc     *whatsmeow.Client
	logger *slog.Logger
	qrOut  io.Writer

	mu       sync.RWMutex
	handlers []func(context.Context, chat.Inbound)
	ctx      context.Context
}

// NewClient opens or creates the SQLite device store at dbPath.
func NewClient(ctx context.Context, dbPath, logLevel string, logger *slog.Logger) (*Client, error) {
	if logLevel == "" {
		logLevel = "WARN"
	}
	level := strings.ToUpper(logLevel)
	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", dbPath), waLog.Stdout("DB", level, true))
	if err != nil {
		return nil, fmt.Errorf("open device store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("load device: %w", err)
	}

	c := &Client{
		wc:     whatsmeow.NewClient(device, waLog.Stdout("WA", level, true)),
		logger: logger,
		qrOut:  os.Stdout,
		ctx:    context.WithoutCancel(ctx),
	}
	c.wc.AddEventHandler(c.handleEvent)
	return c, nil
}

// Connect links the device by QR code on first use, then opens the websocket.
func (c *Client) Connect(ctx context.Context) error {
	if c.wc.Store.ID != nil {
		if err := c.wc.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		c.logger.Info("WhatsApp connected", "jid", c.wc.Store.ID.String())
		return nil
	}

	qrChan, err := c.wc.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("qr channel: %w", err)
	}
	if err := c.wc.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			c.logger.Info("Scan the QR code with WhatsApp to link this device")
			qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, c.qrOut)
		case "success":
			c.logger.Info("WhatsApp device linked")
			return nil
		case "timeout":
			c.wc.Disconnect()
			return errors.New("qr pairing timed out")
		default:
			c.logger.Info("Pairing event", "event", evt.Event)
		}
	}
	return ctx.Err()
}

// Disconnect closes the websocket.
func (c *Client) Disconnect() {
	c.wc.Disconnect()
	c.logger.Info("WhatsApp disconnected")
}

// OnMessage registers fn for incoming text messages. Each message is
// delivered on its own goroutine.
func (c *Client) OnMessage(fn func(context.Context, chat.Inbound)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, fn)
}

func (c *Client) handleEvent(evt any) {
	switch v := evt.(type) {
	case *events.Message:
		in, ok := inbound(v)
		if !ok {
			return
		}
		c.mu.RLock()
		handlers := c.handlers
		c.mu.RUnlock()
		for _, h := range handlers {
			go h(c.ctx, in)
		}
	case *events.Connected:
		c.logger.Info("WhatsApp session ready")
	case *events.Disconnected:
		c.logger.Warn("WhatsApp connection lost")
	case *events.LoggedOut:
		c.logger.Error("WhatsApp device logged out, delete the session database and pair again")
	}
}

// inbound extracts a text message. Non-text messages report false.
func inbound(evt *events.Message) (chat.Inbound, bool) {
	msg := evt.Message
	var text string
	if msg.GetConversation() != "" {
		text = msg.GetConversation()
	} else if ext := msg.GetExtendedTextMessage(); ext != nil {
		text = ext.GetText()
	}
	if text == "" {
		return chat.Inbound{}, false
	}
	return chat.Inbound{
		Chat:   evt.Info.Chat.String(),
		Sender: evt.Info.Sender.ToNonAD().String(),
		Text:   text,
		FromMe: evt.Info.IsFromMe,
	}, true
}

// Send delivers msg to a JID, or to a bare phone number on the default user server.
// A photo is uploaded and sent with Text as its caption.
func (c *Client) Send(ctx context.Context, to string, msg chat.Message) error {
	jid, err := parseJID(to)
	if err != nil {
		return err
	}

	content := &waE2E.Message{Conversation: proto.String(msg.Text)}
	if msg.Photo != nil {
		up, err := c.wc.Upload(ctx, msg.Photo.Data, whatsmeow.MediaImage)
		if err != nil {
			// Degrade to text only.
			c.logger.Warn("Image upload failed, sending text only", "to", to, "error", err)
		} else {
			content = imageMessage(up, msg.Photo.MIME, msg.Text)
		}
	}

	resp, err := c.wc.SendMessage(ctx, jid, content)
	if err != nil {
		return fmt.Errorf("send to %s: %w", jid, err)
	}
	c.logger.Debug("Message sent", "to", jid.String(), "id", resp.ID, "photo", msg.Photo != nil)
	return nil
}

func imageMessage(up whatsmeow.UploadResponse, mime, caption string) *waE2E.Message {
	return &waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			Mimetype:      proto.String(mime),
			Caption:       proto.String(caption),
			FileLength:    proto.Uint64(up.FileLength),
			FileSHA256:    up.FileSHA256,
			FileEncSHA256: up.FileEncSHA256,
			MediaKey:      up.MediaKey,
		},
	}
}

func parseJID(to string) (types.JID, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return types.EmptyJID, errors.New("empty recipient")
	}
	if !strings.Contains(to, "@") {
		return types.NewJID(strings.TrimPrefix(to, "+"), types.DefaultUserServer), nil
	}
	jid, err := types.ParseJID(to)
	if err != nil {
		return types.EmptyJID, fmt.Errorf("parse recipient %q: %w", to, err)
	}
	return jid, nil
}
