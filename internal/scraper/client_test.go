package scraper

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestClient(baseURL string, maxOffers int) *Client {
	return NewClient(Options{
		BaseURL:   baseURL,
		APIKey:    "test-key",
		MaxOffers: maxOffers,
		Timeout:   time.Second,
		UserAgent: "test",
	}, noopLogger())
}

func TestSearchMissingBaseURL(t *testing.T) {
	c := NewClient(Options{}, noopLogger())
	if _, err := c.Search(context.Background(), "ssd"); err == nil {
		t.Fatal("missing base url should error")
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	c := newTestClient("http://localhost", 5)
	if _, err := c.Search(context.Background(), "  "); err == nil {
		t.Fatal("empty query should error")
	}
}

func TestSearchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "rate limited"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 5)
	if _, err := c.Search(context.Background(), "ssd"); err == nil {
		t.Fatal("HTTP 429 should surface as an error")
	}
}

func TestSearchPermissiveParsing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("expected bearer auth header, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"offers":[
			{"store":"alpha","price":19.99,"shipping":"4.50","tax_rate":0.0925,"in_stock":true,"rating":4.5,"review_count":120,"url":"https://alpha.example/p/1"},
			{"store":"beta","price":"24.00"},
			{"store":"gamma","price":"not-a-number"},
			{"store":"delta","price":-3.00},
			{"price":10.00,"in_stock":false}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 5)
	offers, err := c.Search(context.Background(), "usb-c hub")
	if err != nil {
		t.Fatalf("search should succeed: %v", err)
	}
	if len(offers) != 3 {
		t.Fatalf("expected 3 valid offers, got %d", len(offers))
	}

	first := offers[0]
	if first.PriceMinor != 1999 || first.ShippingMinor != 450 {
		t.Fatalf("minor-unit conversion wrong: %+v", first)
	}
	if first.Rating == nil || *first.Rating != 4.5 {
		t.Fatalf("rating not parsed: %+v", first)
	}
	if first.ReviewCount == nil || *first.ReviewCount != 120 {
		t.Fatalf("review count not parsed: %+v", first)
	}

	second := offers[1]
	if second.PriceMinor != 2400 || second.ShippingMinor != 0 || !second.TaxRate.IsZero() {
		t.Fatalf("defaults not applied: %+v", second)
	}
	if !second.InStock {
		t.Fatal("in_stock should default to true when absent")
	}
	if second.Rating != nil {
		t.Fatal("absent rating must stay nil, not zero")
	}

	third := offers[2]
	if third.Store != "unknown" || third.InStock {
		t.Fatalf("fallback store name or explicit stock flag wrong: %+v", third)
	}
}

func TestSearchCapsOffers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"offers":[
			{"store":"a","price":1.00},
			{"store":"b","price":2.00},
			{"store":"c","price":3.00}
		]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, 2)
	offers, err := c.Search(context.Background(), "cable")
	if err != nil {
		t.Fatalf("search should succeed: %v", err)
	}
	if len(offers) != 2 {
		t.Fatalf("expected cap of 2 offers, got %d", len(offers))
	}
}
