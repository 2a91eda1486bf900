package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"dealwatch/internal/pricing"
	"dealwatch/internal/wishlist"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testNotification() Notification {
	target := int64(5000)
	return Notification{
		UserID:      "u1",
		ItemName:    "ANC Headphones",
		Store:       "alpha",
		TotalMinor:  4799,
		TargetTotal: &target,
		Verdict:     pricing.VerdictBuyNow,
		Priority:    wishlist.PriorityHigh,
		Channels:    []string{"telegram"},
		FiredAt:     time.Now(),
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testNotification()); err != nil {
		t.Fatalf("Notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("wrong chat_id: %#v", received)
	}
	text := received["text"]
	if !strings.Contains(text, "ANC Headphones") {
		t.Fatalf("message should name the item: %q", text)
	}
	if !strings.Contains(text, "47.99") {
		t.Fatalf("message should render the total in major units: %q", text)
	}
	if !strings.Contains(text, "buy_now") {
		t.Fatalf("message should carry the verdict: %q", text)
	}
}

func TestTelegramNotifierRejectsNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testNotification()); err == nil {
		t.Fatal("ok=false should be an error")
	}
}

func TestTelegramNotifierHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testNotification()); err == nil {
		t.Fatal("HTTP 502 should be an error")
	}
}

func TestRenderMessageFakeSaleWarning(t *testing.T) {
	note := testNotification()
	note.FakeSale = true
	text := renderMessage(note)
	if !strings.Contains(text, "not statistically meaningful") {
		t.Fatalf("fake-sale warning missing: %q", text)
	}
}
