package poll

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBackoff(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, BaseDelay: 5 * time.Second}
	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}
	for n, w := range want {
		if got := p.Backoff(uint(n)); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", n, got, w)
		}
	}
}

func TestBackoffSaturates(t *testing.T) {
	p := RetryPolicy{MaxRetries: 100, BaseDelay: 5 * time.Second}
	tests := []struct {
		n    uint
		want time.Duration
	}{
		{n: 30, want: 5 * time.Second << 30},
		{n: 31, want: time.Duration(math.MaxInt64)},
		{n: 40, want: time.Duration(math.MaxInt64)},
		{n: 63, want: time.Duration(math.MaxInt64)},
		{n: 100, want: time.Duration(math.MaxInt64)},
	}
	for _, tt := range tests {
		if got := p.Backoff(tt.n); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
	if got := (RetryPolicy{}).Backoff(5); got != 0 {
		t.Errorf("zero base Backoff(5) = %v, want 0", got)
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	var delays []time.Duration
	p := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}
	p.observe = func(d time.Duration) { delays = append(delays, d) }

	calls := 0
	got, err := Retry(context.Background(), p, discardLogger(), "test", func(context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("Retry() = %q, want ok", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(delays) != 2 {
		t.Fatalf("delays = %v, want 2 waits", delays)
	}
	if delays[0] != p.BaseDelay || delays[1] != 2*p.BaseDelay {
		t.Errorf("delays = %v, want [%v %v]", delays, p.BaseDelay, 2*p.BaseDelay)
	}
}

func TestRetryReturnsFinalError(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond}

	calls := 0
	err := RetryErr(context.Background(), p, discardLogger(), "test", func(context.Context) error {
		calls++
		if calls == 3 {
			return errors.New("final")
		}
		return errors.New("earlier")
	})
	if err == nil || err.Error() != "final" {
		t.Errorf("RetryErr() error = %v, want final", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want MaxRetries+1 = 3", calls)
	}
}

func TestRetryNoRetries(t *testing.T) {
	p := RetryPolicy{MaxRetries: 0, BaseDelay: time.Millisecond}
	calls := 0
	_ = RetryErr(context.Background(), p, discardLogger(), "test", func(context.Context) error {
		calls++
		return errors.New("boom")
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
