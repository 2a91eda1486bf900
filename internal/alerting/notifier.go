package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dealwatch/internal/pricing"
	"dealwatch/internal/wishlist"
)

// Notification carries the context of one fired wishlist alert.
type Notification struct {
	UserID      string
	ItemName    string
	Store       string
	TotalMinor  int64
	TargetTotal *int64
	DropPercent *decimal.Decimal
	Verdict     pricing.Verdict
	FakeSale    bool
	Priority    wishlist.Priority
	Channels    []string
	FiredAt     time.Time
}

// Notifier delivers alert notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls the sendMessage API with the rendered alert text.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("user", note.UserID).
		Str("item", note.ItemName).
		Str("priority", string(note.Priority)).
		Str("channels", strings.Join(note.Channels, ",")).
		Msg("alert dispatched via telegram")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[Price Alert]\n")
	builder.WriteString(fmt.Sprintf("Item: %s\n", note.ItemName))
	if note.Store != "" {
		builder.WriteString(fmt.Sprintf("Store: %s\n", note.Store))
	}
	builder.WriteString(fmt.Sprintf("Current total: %s\n", formatMinor(note.TotalMinor)))
	if note.TargetTotal != nil {
		builder.WriteString(fmt.Sprintf("Target: %s\n", formatMinor(*note.TargetTotal)))
	}
	if note.DropPercent != nil {
		builder.WriteString(fmt.Sprintf("Drop target: %s%%\n", note.DropPercent.StringFixed(1)))
	}
	builder.WriteString(fmt.Sprintf("Verdict: %s\n", note.Verdict))
	if note.FakeSale {
		builder.WriteString("Warning: discount not statistically meaningful\n")
	}
	builder.WriteString(fmt.Sprintf("Priority: %s\n", note.Priority))
	builder.WriteString(fmt.Sprintf("Fired: %s UTC\n", note.FiredAt.UTC().Format(time.RFC3339)))
	return builder.String()
}

func formatMinor(minor int64) string {
	return decimal.NewFromInt(minor).Div(decimal.NewFromInt(100)).StringFixed(2)
}

var _ Notifier = (*TelegramNotifier)(nil)
