package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "marketbot version "+version) {
		t.Errorf("output = %q", out.String())
	}
}

func TestCheckRejectsUnknownEngine(t *testing.T) {
	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"check", "mailer"})

	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Error("check mailer error = nil, want invalid argument")
	}
}

func TestNewLogger(t *testing.T) {
	ctx := context.Background()
	if l := newLogger("debug"); !l.Enabled(ctx, -4) {
		t.Error("debug logger does not enable debug")
	}
	if l := newLogger("nonsense"); l.Enabled(ctx, -4) || !l.Enabled(ctx, 0) {
		t.Error("unknown level should fall back to info")
	}
}
