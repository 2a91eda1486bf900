package app

import (
	"context"
	"errors"
	"time"

	"dealwatch/internal/alerting"
	"dealwatch/internal/pricing"
	"dealwatch/internal/wishlist"
)

// SimulateAlert exercises the notification channel with a synthetic wishlist
// hit. Delivery configuration problems surface here instead of on the first
// real price dip.
func (a *App) SimulateAlert(ctx context.Context, currentMinor, targetMinor int64) error {
	if !a.Config.Alerts.Enabled {
		return errors.New("alerts are not enabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no notification channel configured")
	}

	entry := wishlist.Entry{
		UserID:      "simulated",
		ItemID:      "simulated",
		TargetTotal: &targetMinor,
		Priority:    wishlist.PriorityMedium,
	}
	decision := wishlist.Evaluate(entry, currentMinor, 0, a.Config.RearmPolicy())
	if !decision.Fire {
		return errors.New("current total does not meet the target; nothing to fire")
	}

	stats := pricing.Statistics{Mean: targetMinor, Min: targetMinor, Stdev: 0}
	assessment := pricing.Assess(currentMinor, stats, true, nil, a.Config.PricingParams())

	note := alerting.Notification{
		UserID:      entry.UserID,
		ItemName:    "simulated item",
		TotalMinor:  currentMinor,
		TargetTotal: &targetMinor,
		Verdict:     assessment.Verdict,
		FakeSale:    assessment.FakeSale,
		Priority:    entry.Priority,
		Channels:    a.Config.Alerts.Channels,
		FiredAt:     time.Now().UTC(),
	}
	return notifier.Notify(ctx, note)
}
