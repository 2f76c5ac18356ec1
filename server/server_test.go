package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"marketbot/poll"
)

type fakeEngine struct {
	name  string
	state poll.State
	err   error
	runs  int
}

func (f *fakeEngine) Name() string      { return f.name }
func (f *fakeEngine) State() poll.State { return f.state }
func (f *fakeEngine) RunOnce(context.Context) error {
	f.runs++
	return f.err
}

func newTestServer(notifier, booster Engine, gatherer prometheus.Gatherer) http.Handler {
	return New(&Config{
		Notifier: notifier,
		Booster:  booster,
		Gatherer: gatherer,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}).Handler()
}

func TestHandleHealth(t *testing.T) {
	h := newTestServer(&fakeEngine{name: "notifier", state: poll.Idle}, &fakeEngine{name: "booster", state: poll.Polling}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Status  string            `json:"status"`
		Engines map[string]string `json:"engines"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "healthy" || body.Engines["notifier"] != "idle" || body.Engines["booster"] != "polling" {
		t.Errorf("body = %+v", body)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health status = %d, want 405", rec.Code)
	}
}

func TestHandleTrigger(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"completed", nil, http.StatusOK},
		{"busy", poll.ErrBusy, http.StatusConflict},
		{"failed", errors.New("fetch: backend down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &fakeEngine{name: "notifier", err: tt.err}
			booster := &fakeEngine{name: "booster"}
			h := newTestServer(notifier, booster, nil)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/pollz", nil))

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if notifier.runs != 1 || booster.runs != 0 {
				t.Errorf("runs = notifier %d, booster %d; want 1, 0", notifier.runs, booster.runs)
			}
		})
	}
}

func TestHandleTriggerRouting(t *testing.T) {
	notifier := &fakeEngine{name: "notifier"}
	booster := &fakeEngine{name: "booster"}
	h := newTestServer(notifier, booster, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/boostz", nil))
	if rec.Code != http.StatusOK || booster.runs != 1 || notifier.runs != 0 {
		t.Errorf("POST /boostz status = %d, runs = notifier %d, booster %d", rec.Code, notifier.runs, booster.runs)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boostz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /boostz status = %d, want 405", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	poll.NewMetrics(reg)
	h := newTestServer(&fakeEngine{name: "notifier"}, nil, reg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "marketbot_known_ads") {
		t.Errorf("metrics body missing marketbot_known_ads:\n%s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/boostz", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("POST /boostz without booster status = %d, want 404", rec.Code)
	}
}
