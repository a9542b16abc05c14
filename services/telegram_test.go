package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"stockpulse/config"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTelegramTestService(t *testing.T, handler http.HandlerFunc) *TelegramService {
	t.Helper()
	resetBreakers(t)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewTelegramService(config.TelegramConfig{
		BotToken:      "123:abc",
		BaseURL:       server.URL + "/",
		DefaultChatID: "42",
	})
	if err != nil {
		t.Fatalf("NewTelegramService failed: %v", err)
	}
	svc.retry = fastRetry
	return svc
}

func TestNewTelegramService_RequiresToken(t *testing.T) {
	if _, err := NewTelegramService(config.TelegramConfig{}); err == nil {
		t.Error("expected error without a bot token")
	}
}

func TestTelegram_Send(t *testing.T) {
	m := withTestMetrics(t)

	var got telegramSendRequest
	var path string
	svc := newTelegramTestService(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("invalid body: %v", err)
		}
		_, _ = w.Write([]byte(`{"ok": true, "result": {"message_id": 7}}`))
	})

	if err := svc.Send(context.Background(), "", "AAPL crossed above 200.00"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if path != "/bot123:abc/sendMessage" {
		t.Errorf("unexpected path %s", path)
	}
	if got.ChatID != "42" {
		t.Errorf("expected default chat id, got %q", got.ChatID)
	}
	if got.Text != "AAPL crossed above 200.00" {
		t.Errorf("unexpected text %q", got.Text)
	}
	if v := testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("telegram", "sent")); v != 1 {
		t.Errorf("expected one sent notification, got %f", v)
	}
}

func TestTelegram_SendExplicitChat(t *testing.T) {
	var got telegramSendRequest
	svc := newTelegramTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok": true}`))
	})

	if err := svc.Send(context.Background(), "-100777", "hi"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got.ChatID != "-100777" {
		t.Errorf("explicit chat id should win, got %q", got.ChatID)
	}
}

func TestTelegram_NoChatID(t *testing.T) {
	svc := newTelegramTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	svc.defaultChatID = ""

	if err := svc.Send(context.Background(), "", "hi"); !errors.Is(err, ErrNoChatID) {
		t.Errorf("expected ErrNoChatID, got %v", err)
	}
}

func TestTelegram_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCalls int32
		wantMsg   string
	}{
		{"bad request", http.StatusBadRequest, `{"ok": false, "error_code": 400, "description": "Bad Request: chat not found"}`, 1, "chat not found"},
		{"rate limited", http.StatusTooManyRequests, `{"ok": false, "parameters": {"retry_after": 5}}`, 1, "rate limit"},
		{"server error retried", http.StatusBadGateway, ``, 3, "status 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := withTestMetrics(t)
			var calls int32
			svc := newTelegramTestService(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			err := svc.Send(context.Background(), "42", "hi")
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("expected %q error, got %v", tt.wantMsg, err)
			}
			if strings.Contains(err.Error(), "123:abc") {
				t.Error("error must not leak the bot token")
			}
			if calls != tt.wantCalls {
				t.Errorf("expected %d calls, got %d", tt.wantCalls, calls)
			}
			if v := testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("telegram", "failed")); v != 1 {
				t.Errorf("expected one failed notification, got %f", v)
			}
		})
	}
}

func TestTruncateMessage(t *testing.T) {
	if got := truncateMessage("short", 10); got != "short" {
		t.Errorf("unexpected %q", got)
	}
	long := strings.Repeat("é", 20)
	got := truncateMessage(long, 10)
	if utf8.RuneCountInString(got) != 10 || !strings.HasSuffix(got, "…") {
		t.Errorf("unexpected truncation %q", got)
	}
}
