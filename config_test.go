package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("", env(map[string]string{
		"API_BASE_URL": "http://localhost:3000/",
		"NOTIFY_CHAT":  "120363025246125486@g.us",
	}))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:3000" {
		t.Errorf("APIBaseURL = %q, want trailing slash trimmed", cfg.APIBaseURL)
	}
	if cfg.BoostChat != cfg.NotifyChat {
		t.Errorf("BoostChat = %q, want NotifyChat", cfg.BoostChat)
	}
	if cfg.pollInterval() != time.Minute || cfg.requestTimeout() != 10*time.Second {
		t.Errorf("intervals = %v, %v", cfg.pollInterval(), cfg.requestTimeout())
	}
	p := cfg.retryPolicy()
	if p.MaxRetries != 3 || p.BaseDelay != 5*time.Second {
		t.Errorf("retryPolicy() = %+v", p)
	}
	if cfg.CommandPrefix != "!" || cfg.Port != "8080" {
		t.Errorf("prefix %q, port %q", cfg.CommandPrefix, cfg.Port)
	}
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketbot.yaml")
	yaml := "api_base_url: http://yaml:3000\nnotify_chat: yaml-group@g.us\npoll_interval_ms: 30000\nretry_count: 5\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path, env(map[string]string{
		"API_BASE_URL": "http://env:3000",
		"RETRY_COUNT":  "1",
		"BOOST_CHAT":   "boost@g.us",
		"MEDIA_ROOT":   "/srv/photos",
	}))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.APIBaseURL != "http://env:3000" {
		t.Errorf("APIBaseURL = %q, want env override", cfg.APIBaseURL)
	}
	if cfg.NotifyChat != "yaml-group@g.us" || cfg.PollIntervalMS != 30000 {
		t.Errorf("yaml values lost: %+v", cfg)
	}
	if cfg.RetryCount != 1 || cfg.BoostChat != "boost@g.us" || cfg.MediaRoot != "/srv/photos" {
		t.Errorf("env values lost: %+v", cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing url", map[string]string{"NOTIFY_CHAT": "g@g.us"}, "API_BASE_URL is required"},
		{"bad url", map[string]string{"API_BASE_URL": "localhost", "NOTIFY_CHAT": "g@g.us"}, "must be an http(s) URL"},
		{"missing chat", map[string]string{"API_BASE_URL": "http://x"}, "NOTIFY_CHAT is required"},
		{"bad int", map[string]string{"API_BASE_URL": "http://x", "NOTIFY_CHAT": "g", "RETRY_COUNT": "three"}, "RETRY_COUNT"},
		{"bad bool", map[string]string{"API_BASE_URL": "http://x", "MOCK_CHAT": "maybe"}, "MOCK_CHAT"},
		{"zero interval", map[string]string{"API_BASE_URL": "http://x", "NOTIFY_CHAT": "g", "POLL_INTERVAL_MS": "0"}, "intervals must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig("", env(tt.env))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("loadConfig() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfigMockChat(t *testing.T) {
	cfg, err := loadConfig("", env(map[string]string{"API_BASE_URL": "http://x", "MOCK_CHAT": "true"}))
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if !cfg.MockChat {
		t.Error("MockChat = false, want true")
	}
}
