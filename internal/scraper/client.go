package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const searchPath = "/search"

var minorUnitsPerMajor = decimal.NewFromInt(100)

// Options parameterise the product-search client.
type Options struct {
	BaseURL   string
	APIKey    string
	MaxOffers int
	Timeout   time.Duration
	UserAgent string
}

// OfferSearcher retrieves current offers for a free-text product query.
type OfferSearcher interface {
	Search(ctx context.Context, query string) ([]Offer, error)
}

// Client talks to the hosted product-search API.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs a search client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if opts.MaxOffers <= 0 {
		opts.MaxOffers = 5
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "scraper").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Search queries the API and returns the validated offers, capped at
// MaxOffers. The upstream payload is treated as hostile: every field is
// optional, prices arrive as numbers or strings, and entries that cannot be
// turned into a sane Offer are skipped rather than failing the batch.
func (c *Client) Search(ctx context.Context, query string) ([]Offer, error) {
	if c.baseURL == "" {
		return nil, errors.New("scraper base url not configured")
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search query must not be empty")
	}

	body, err := json.Marshal(searchRequest{Query: query, Limit: c.opts.MaxOffers})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+searchPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	var res searchResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	capturedAt := time.Now().UTC()
	offers := make([]Offer, 0, len(res.Offers))
	for i, raw := range res.Offers {
		offer, ok := c.validate(raw, capturedAt)
		if !ok {
			c.logger.Warn().Int("index", i).Str("store", raw.Store).Msg("skipping malformed offer")
			continue
		}
		offers = append(offers, offer)
		if len(offers) >= c.opts.MaxOffers {
			break
		}
	}

	return offers, nil
}

func (c *Client) validate(raw rawOffer, capturedAt time.Time) (Offer, bool) {
	price, ok := raw.Price.get()
	if !ok || price.IsNegative() {
		return Offer{}, false
	}

	shipping := decimal.Zero
	if v, ok := raw.Shipping.get(); ok {
		if v.IsNegative() {
			return Offer{}, false
		}
		shipping = v
	}

	taxRate := decimal.Zero
	if v, ok := raw.TaxRate.get(); ok {
		if v.IsNegative() {
			return Offer{}, false
		}
		taxRate = v
	}

	store := strings.TrimSpace(raw.Store)
	if store == "" {
		store = "unknown"
	}

	inStock := true
	if raw.InStock != nil {
		inStock = *raw.InStock
	}

	offer := Offer{
		Store:         store,
		Seller:        strings.TrimSpace(raw.Seller),
		PriceMinor:    toMinor(price),
		ShippingMinor: toMinor(shipping),
		TaxRate:       taxRate,
		InStock:       inStock,
		URL:           strings.TrimSpace(raw.URL),
		CapturedAt:    capturedAt,
	}

	if v, ok := raw.Rating.get(); ok && !v.IsNegative() {
		rating, _ := v.Float64()
		offer.Rating = &rating
	}
	if raw.ReviewCount != nil && *raw.ReviewCount >= 0 {
		offer.ReviewCount = raw.ReviewCount
	}

	return offer, true
}

// toMinor converts a major-unit price (e.g. 19.99) to minor units, half-up.
func toMinor(major decimal.Decimal) int64 {
	return major.Mul(minorUnitsPerMajor).Round(0).IntPart()
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Offers []rawOffer `json:"offers"`
}

type rawOffer struct {
	Store       string      `json:"store"`
	Seller      string      `json:"seller"`
	Price       flexDecimal `json:"price"`
	Shipping    flexDecimal `json:"shipping"`
	TaxRate     flexDecimal `json:"tax_rate"`
	InStock     *bool       `json:"in_stock"`
	Rating      flexDecimal `json:"rating"`
	ReviewCount *int        `json:"review_count"`
	URL         string      `json:"url"`
}

// flexDecimal tolerates numbers arriving as JSON numbers or quoted strings.
// Values that do not parse are left unset instead of failing the payload.
type flexDecimal struct {
	value decimal.Decimal
	set   bool
}

func (f *flexDecimal) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	f.value = d
	f.set = true
	return nil
}

func (f flexDecimal) get() (decimal.Decimal, bool) {
	return f.value, f.set
}

type errorResponse struct {
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Description != "" {
			return fmt.Errorf("search api error (%d): %s", status, apiErr.Description)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("search api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.ErrorType != "" {
			return fmt.Errorf("search api error (%d): %s", status, apiErr.ErrorType)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("search api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("search api error (%d)", status)
}

var _ OfferSearcher = (*Client)(nil)
