package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dealwatch/internal/alerting"
	"dealwatch/internal/cache"
	"dealwatch/internal/config"
	"dealwatch/internal/pricing"
	"dealwatch/internal/scraper"
	"dealwatch/internal/storage"
	"dealwatch/internal/wishlist"
)

type fakeSearcher struct {
	offers []scraper.Offer
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]scraper.Offer, error) {
	return f.offers, nil
}

type fakeSnapshotStore struct {
	offers []storage.OfferRecord
	snaps  []storage.SnapshotRecord
}

func (f *fakeSnapshotStore) InsertOffer(ctx context.Context, offer storage.OfferRecord) (int64, error) {
	f.offers = append(f.offers, offer)
	return int64(len(f.offers)), nil
}

func (f *fakeSnapshotStore) InsertSnapshot(ctx context.Context, snap storage.SnapshotRecord) (int64, error) {
	f.snaps = append(f.snaps, snap)
	return int64(len(f.snaps)), nil
}

func (f *fakeSnapshotStore) ListRecentTotals(ctx context.Context, itemID string, limit int) ([]int64, error) {
	totals := make([]int64, 0, len(f.snaps))
	for _, snap := range f.snaps {
		if snap.ItemID == itemID {
			totals = append(totals, snap.TotalMinor)
		}
	}
	if len(totals) > limit {
		totals = totals[len(totals)-limit:]
	}
	return totals, nil
}

func (f *fakeSnapshotStore) ListRecentSnapshots(ctx context.Context, itemID string, limit int) ([]storage.SnapshotRecord, error) {
	return nil, nil
}

func (f *fakeSnapshotStore) ListSnapshotsBetween(ctx context.Context, itemID string, from, to time.Time) ([]storage.SnapshotRecord, error) {
	return nil, nil
}

type fakeWishlistStore struct {
	entry   storage.WishlistRecord
	casDeny bool
	casLog  [][2]bool
}

func (f *fakeWishlistStore) EnsureWishlistEntry(ctx context.Context, entry storage.WishlistRecord) (storage.WishlistRecord, error) {
	return f.entry, nil
}

func (f *fakeWishlistStore) UpdateWishlistEntry(ctx context.Context, entry storage.WishlistRecord) error {
	return nil
}

func (f *fakeWishlistStore) ListWishlistForItem(ctx context.Context, itemID string) ([]storage.WishlistRecord, error) {
	return []storage.WishlistRecord{f.entry}, nil
}

func (f *fakeWishlistStore) DeleteWishlistEntry(ctx context.Context, userID, itemID string) error {
	return nil
}

func (f *fakeWishlistStore) SetNotified(ctx context.Context, userID, itemID string, expected, next bool) (bool, error) {
	f.casLog = append(f.casLog, [2]bool{expected, next})
	if f.casDeny {
		return false, nil
	}
	if f.entry.Notified != expected {
		return false, nil
	}
	f.entry.Notified = next
	return true, nil
}

type fakeAlertStore struct {
	alerts []storage.AlertRecord
}

func (f *fakeAlertStore) InsertAlert(ctx context.Context, alert storage.AlertRecord) (storage.AlertRecord, error) {
	f.alerts = append(f.alerts, alert)
	return alert, nil
}

func (f *fakeAlertStore) ListRecentAlerts(ctx context.Context, limit int) ([]storage.AlertRecord, error) {
	return f.alerts, nil
}

func (f *fakeAlertStore) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	return nil
}

type fakeCache struct {
	last *cache.CachedAssessment
}

func (f *fakeCache) PutAssessment(ctx context.Context, cached cache.CachedAssessment) error {
	f.last = &cached
	return nil
}

func (f *fakeCache) GetAssessment(ctx context.Context, itemID string) (cache.CachedAssessment, error) {
	if f.last == nil {
		return cache.CachedAssessment{}, cache.ErrCacheMiss
	}
	return *f.last, nil
}

type fakeNotifier struct {
	notes []alerting.Notification
}

func (f *fakeNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	f.notes = append(f.notes, note)
	return nil
}

func testConfig() *config.Config {
	defaults := pricing.DefaultParams()
	return &config.Config{
		Pricing: config.PricingConfig{
			WindowSize:        defaults.WindowSize,
			RarityBonus:       defaults.RarityBonus,
			SigmaBonus:        defaults.SigmaBonus,
			TrustWeight:       defaults.TrustWeight,
			InStockBonus:      defaults.InStockBonus,
			OutOfStockPenalty: defaults.OutOfStockPenalty,
			DefaultRating:     defaults.DefaultRating,
			BuyNowThreshold:   defaults.BuyNowThreshold,
			AverageThreshold:  defaults.AverageThreshold,
		},
		Alerts: config.AlertsConfig{
			Enabled:  true,
			Rearm:    string(wishlist.RearmAuto),
			Channels: []string{"telegram"},
		},
	}
}

func seedHistory(snaps *fakeSnapshotStore, itemID string, totals ...int64) {
	for _, total := range totals {
		snaps.snaps = append(snaps.snaps, storage.SnapshotRecord{ItemID: itemID, TotalMinor: total})
	}
}

func offerAt(store string, priceMinor int64) scraper.Offer {
	return scraper.Offer{
		Store:      store,
		PriceMinor: priceMinor,
		TaxRate:    decimal.Zero,
		InStock:    true,
		CapturedAt: time.Now().UTC(),
	}
}

func int64Ptr(v int64) *int64 { return &v }

func TestCheckItemPersistsAndAssesses(t *testing.T) {
	item := storage.Item{ID: "i1", Query: "anc headphones", Name: "ANC Headphones"}
	snaps := &fakeSnapshotStore{}
	seedHistory(snaps, item.ID, 1000, 1000, 1000)

	searcher := &fakeSearcher{offers: []scraper.Offer{
		offerAt("alpha", 700),
		offerAt("beta", 900),
	}}
	assessments := &fakeCache{}

	svc := New(testConfig(), Deps{
		Searcher:    searcher,
		Snapshots:   snaps,
		Assessments: assessments,
	}, zerolog.Nop())

	report, err := svc.CheckItem(context.Background(), item)
	if err != nil {
		t.Fatalf("check should succeed: %v", err)
	}

	if len(snaps.offers) != 2 || len(snaps.snaps) != 5 {
		t.Fatalf("expected 2 offers and 3+2 snapshots, got %d offers %d snapshots", len(snaps.offers), len(snaps.snaps))
	}
	if report.Best == nil || report.Best.TotalMinor != 700 || report.Best.Offer.Store != "alpha" {
		t.Fatalf("cheapest offer should win: %+v", report.Best)
	}
	if report.Stats.Min != 700 {
		t.Fatalf("stats should include the fresh captures: %+v", report.Stats)
	}
	if report.Assessment.Verdict != pricing.VerdictBuyNow {
		t.Fatalf("steep drop should be buy_now, got %s", report.Assessment.Verdict)
	}
	if assessments.last == nil || assessments.last.ItemID != "i1" || assessments.last.TotalMinor != 700 {
		t.Fatalf("assessment should be cached: %+v", assessments.last)
	}
}

func TestCheckItemFiresAlertExactlyOnce(t *testing.T) {
	item := storage.Item{ID: "i1", Query: "anc headphones"}
	snaps := &fakeSnapshotStore{}
	seedHistory(snaps, item.ID, 1000, 1000, 1000)

	wishlists := &fakeWishlistStore{entry: storage.WishlistRecord{
		UserID: "u1", ItemID: "i1", TargetTotal: int64Ptr(750), Priority: "high",
	}}
	alerts := &fakeAlertStore{}
	notifier := &fakeNotifier{}

	svc := New(testConfig(), Deps{
		Searcher:   &fakeSearcher{offers: []scraper.Offer{offerAt("alpha", 700)}},
		Snapshots:  snaps,
		Wishlists:  wishlists,
		AlertStore: alerts,
		Notifier:   notifier,
	}, zerolog.Nop())

	report, err := svc.CheckItem(context.Background(), item)
	if err != nil {
		t.Fatalf("check should succeed: %v", err)
	}
	if report.AlertsFired != 1 || len(notifier.notes) != 1 || len(alerts.alerts) != 1 {
		t.Fatalf("expected exactly one alert: fired=%d notes=%d records=%d", report.AlertsFired, len(notifier.notes), len(alerts.alerts))
	}
	if !wishlists.entry.Notified {
		t.Fatal("entry should transition to fired")
	}
	if notifier.notes[0].TargetTotal == nil || *notifier.notes[0].TargetTotal != 750 {
		t.Fatalf("notification should carry the target: %+v", notifier.notes[0])
	}

	// A second pass at a still-lower price must not re-notify.
	report, err = svc.CheckItem(context.Background(), item)
	if err != nil {
		t.Fatalf("second check should succeed: %v", err)
	}
	if report.AlertsFired != 0 || len(notifier.notes) != 1 {
		t.Fatalf("fired entry must not re-notify: fired=%d notes=%d", report.AlertsFired, len(notifier.notes))
	}
}

func TestCheckItemLosesNotifiedRace(t *testing.T) {
	item := storage.Item{ID: "i1", Query: "anc headphones"}
	snaps := &fakeSnapshotStore{}
	seedHistory(snaps, item.ID, 1000, 1000)

	wishlists := &fakeWishlistStore{
		entry:   storage.WishlistRecord{UserID: "u1", ItemID: "i1", TargetTotal: int64Ptr(750)},
		casDeny: true,
	}
	notifier := &fakeNotifier{}

	svc := New(testConfig(), Deps{
		Searcher:  &fakeSearcher{offers: []scraper.Offer{offerAt("alpha", 700)}},
		Snapshots: snaps,
		Wishlists: wishlists,
		Notifier:  notifier,
	}, zerolog.Nop())

	report, err := svc.CheckItem(context.Background(), item)
	if err != nil {
		t.Fatalf("check should succeed: %v", err)
	}
	if report.AlertsFired != 0 || len(notifier.notes) != 0 {
		t.Fatal("losing the compare-and-set must suppress the notification")
	}
	if len(wishlists.casLog) != 1 {
		t.Fatalf("exactly one transition attempt expected, got %d", len(wishlists.casLog))
	}
}

func TestCheckItemAutoRearms(t *testing.T) {
	item := storage.Item{ID: "i1", Query: "anc headphones"}
	snaps := &fakeSnapshotStore{}
	seedHistory(snaps, item.ID, 1000, 1000)

	wishlists := &fakeWishlistStore{entry: storage.WishlistRecord{
		UserID: "u1", ItemID: "i1", TargetTotal: int64Ptr(750), Notified: true,
	}}
	notifier := &fakeNotifier{}

	svc := New(testConfig(), Deps{
		Searcher:  &fakeSearcher{offers: []scraper.Offer{offerAt("alpha", 2000)}},
		Snapshots: snaps,
		Wishlists: wishlists,
		Notifier:  notifier,
	}, zerolog.Nop())

	report, err := svc.CheckItem(context.Background(), item)
	if err != nil {
		t.Fatalf("check should succeed: %v", err)
	}
	if report.AlertsFired != 0 || len(notifier.notes) != 0 {
		t.Fatal("re-arming must not notify")
	}
	if wishlists.entry.Notified {
		t.Fatal("price above target should re-arm the entry under auto policy")
	}
}

func TestCheckItemWithoutHistoryScoresZero(t *testing.T) {
	item := storage.Item{ID: "i1", Query: "anc headphones"}

	svc := New(testConfig(), Deps{
		Searcher: &fakeSearcher{offers: nil},
	}, zerolog.Nop())

	report, err := svc.CheckItem(context.Background(), item)
	if err != nil {
		t.Fatalf("check with no offers should not error: %v", err)
	}
	if report.Best != nil || report.AlertsFired != 0 {
		t.Fatalf("empty capture should produce an empty report: %+v", report)
	}
}
