package chat

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type countingSender struct {
	mu    sync.Mutex
	count int
}

func (c *countingSender) Send(ctx context.Context, to string, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return nil
}

func TestLimitedDelegates(t *testing.T) {
	inner := &countingSender{}
	l := NewLimited(inner, 0, 0)
	for range 5 {
		if err := l.Send(context.Background(), "x", Message{Text: "hi"}); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}
	if inner.count != 5 {
		t.Errorf("delegated %d sends, want 5", inner.count)
	}
}

func TestLimitedHonorsContext(t *testing.T) {
	inner := &countingSender{}
	l := NewLimited(inner, 0.001, 1)

	if err := l.Send(context.Background(), "x", Message{}); err != nil {
		t.Fatalf("first Send() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Send(ctx, "x", Message{})
	if err == nil {
		t.Fatal("second Send() succeeded, want rate limit error")
	}
	if inner.count != 1 {
		t.Errorf("delegated %d sends, want 1", inner.count)
	}
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := s.Send(context.Background(), "x", Message{Text: "hello"}); err != nil {
		t.Errorf("Send() error = %v", err)
	}
}
