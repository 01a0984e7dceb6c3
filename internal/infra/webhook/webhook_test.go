package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"spawn_warning_bot/internal/domain/notification"
	"spawn_warning_bot/internal/domain/spawn"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func testMessage() notification.Message {
	at := time.Date(2025, 9, 19, 16, 32, 0, 0, time.UTC)
	return notification.Message{
		Key:        notification.NewKey(spawn.SourceField, "Ego", at),
		Occurrence: at,
		Text:       "Ego spawns in 5 min",
	}
}

func TestSendPostsContent(t *testing.T) {
	t.Parallel()
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("method %s content-type %q", r.Method, r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tr := New(srv.URL, 100, time.Second, testLogger())
	if err := tr.Send(context.Background(), testMessage()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Content != "Ego spawns in 5 min" {
		t.Fatalf("content = %q", got.Content)
	}
}

func TestSendMapsRateLimit(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		header string
		body   string
		want   time.Duration
	}{
		{name: "retry-after header", header: "3", want: 3 * time.Second},
		{name: "json retry_after", body: `{"message":"You are being rate limited.","retry_after":1.5}`, want: 1500 * time.Millisecond},
		{name: "no hint", want: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.header != "" {
					w.Header().Set("Retry-After", tt.header)
				}
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			err := New(srv.URL, 100, time.Second, testLogger()).Send(context.Background(), testMessage())
			var rl *notification.RateLimitError
			if !errors.As(err, &rl) {
				t.Fatalf("err = %v, want RateLimitError", err)
			}
			if rl.RetryAfter != tt.want {
				t.Fatalf("RetryAfter = %s, want %s", rl.RetryAfter, tt.want)
			}
		})
	}
}

func TestSendReportsServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New(srv.URL, 100, time.Second, testLogger()).Send(context.Background(), testMessage())
	if err == nil || !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "upstream exploded") {
		t.Fatalf("err = %v", err)
	}
	var rl *notification.RateLimitError
	if errors.As(err, &rl) {
		t.Fatal("server error must not be treated as a rate limit")
	}
}

func TestSendHonorsContext(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := New(srv.URL, 100, time.Second, testLogger()).Send(ctx, testMessage()); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestSendLogsTruncatedResponseBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("short"))
	}))
	defer srv.Close()

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	err := New(srv.URL, 100, time.Second, logrus.NewEntry(logger)).Send(context.Background(), testMessage())
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("err = %v", err)
	}

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.DebugLevel && e.Message == "Failed to read webhook response body" {
			found = true
		}
	}
	if !found {
		t.Fatal("body read failure was not logged")
	}
}
