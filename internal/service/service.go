package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"dealwatch/internal/alerting"
	"dealwatch/internal/cache"
	"dealwatch/internal/config"
	"dealwatch/internal/pricing"
	"dealwatch/internal/scheduler"
	"dealwatch/internal/scraper"
	"dealwatch/internal/storage"
	"dealwatch/internal/wishlist"
)

// NormalizedOffer pairs a captured offer with its comparable total.
type NormalizedOffer struct {
	Offer      scraper.Offer
	TotalMinor int64
}

// ItemReport is the outcome of one check pass for one item.
type ItemReport struct {
	Item        storage.Item
	Offers      []NormalizedOffer
	Best        *NormalizedOffer
	Stats       pricing.Statistics
	Assessment  pricing.Assessment
	AlertsFired int
}

// Service orchestrates offer capture, persistence, scoring, and alerting.
type Service struct {
	scheduler   *scheduler.Scheduler
	searcher    scraper.OfferSearcher
	items       storage.ItemStore
	snapshots   storage.SnapshotStore
	wishlists   storage.WishlistStore
	alertStore  storage.AlertStore
	assessments cache.AssessmentCache
	notifier    alerting.Notifier
	logger      zerolog.Logger

	params   pricing.Params
	rearm    wishlist.RearmPolicy
	channels []string
	alertsOn bool
	locker   storage.AdvisoryLocker
	lockKey  int64
}

// Deps bundles the service collaborators. Any store may be nil; the service
// degrades to a stateless check (no history, no alerts) rather than failing.
type Deps struct {
	Scheduler   *scheduler.Scheduler
	Searcher    scraper.OfferSearcher
	Items       storage.ItemStore
	Snapshots   storage.SnapshotStore
	Wishlists   storage.WishlistStore
	AlertStore  storage.AlertStore
	Assessments cache.AssessmentCache
	Notifier    alerting.Notifier
}

// New constructs the monitoring service.
func New(cfg *config.Config, deps Deps, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := deps.Snapshots.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler:   deps.Scheduler,
		searcher:    deps.Searcher,
		items:       deps.Items,
		snapshots:   deps.Snapshots,
		wishlists:   deps.Wishlists,
		alertStore:  deps.AlertStore,
		assessments: deps.Assessments,
		notifier:    deps.Notifier,
		logger:      logger.With().Str("component", "service").Logger(),
		params:      cfg.PricingParams(),
		rearm:       cfg.RearmPolicy(),
		channels:    cfg.Alerts.Channels,
		alertsOn:    cfg.Alerts.Enabled,
		lockKey:     cfg.Scheduler.AdvisoryLockKey,
		locker:      locker,
	}
}

// Run begins the aligned check loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.ProcessPass)
}

// ProcessPass runs one check pass over every tracked item. An advisory lock
// keeps a batch run and an on-demand check from racing on the same entries.
func (s *Service) ProcessPass(ctx context.Context, pass time.Time) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Time("pass", pass).Msg("skip pass because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	if s.items == nil {
		return errors.New("item store not configured")
	}

	items, err := s.items.ListItems(ctx)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}

	for _, item := range items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if _, err := s.CheckItem(ctx, item); err != nil {
			s.logger.Error().Err(err).Str("item", item.ID).Msg("item check failed")
		}
	}

	return nil
}

// CheckItem captures current offers for one item and runs the full pipeline:
// normalize, persist, recompute statistics, assess, cache, evaluate wishlists.
func (s *Service) CheckItem(ctx context.Context, item storage.Item) (*ItemReport, error) {
	offers, err := s.searcher.Search(ctx, item.Query)
	if err != nil {
		return nil, fmt.Errorf("search offers: %w", err)
	}

	report := &ItemReport{Item: item}
	if len(offers) == 0 {
		s.logger.Info().Str("item", item.ID).Msg("no offers collected")
		return report, nil
	}

	normalized := s.normalizeAndPersist(ctx, item, offers)
	if len(normalized) == 0 {
		return report, nil
	}
	report.Offers = normalized

	best := &normalized[0]
	for i := range normalized[1:] {
		if normalized[i+1].TotalMinor < best.TotalMinor {
			best = &normalized[i+1]
		}
	}
	report.Best = best

	report.Stats = s.computeStats(ctx, item, normalized)
	report.Assessment = pricing.Assess(best.TotalMinor, report.Stats, best.Offer.InStock, best.Offer.Rating, s.params)

	s.logger.Info().Str("item", item.ID).
		Str("store", best.Offer.Store).
		Int64("total_minor", best.TotalMinor).
		Float64("score", report.Assessment.Score).
		Str("verdict", string(report.Assessment.Verdict)).
		Bool("fake_sale", report.Assessment.FakeSale).
		Msg("item assessed")

	s.cacheAssessment(ctx, item, best, report)

	fired, err := s.evaluateWishlists(ctx, item, best, report)
	if err != nil {
		s.logger.Error().Err(err).Str("item", item.ID).Msg("wishlist evaluation failed")
	}
	report.AlertsFired = fired

	return report, nil
}

func (s *Service) normalizeAndPersist(ctx context.Context, item storage.Item, offers []scraper.Offer) []NormalizedOffer {
	normalized := make([]NormalizedOffer, 0, len(offers))
	for _, offer := range offers {
		total, err := pricing.NormalizeTotal(offer.PriceMinor, offer.ShippingMinor, offer.TaxRate)
		if err != nil {
			s.logger.Warn().Err(err).Str("item", item.ID).Str("store", offer.Store).Msg("dropping unnormalizable offer")
			continue
		}
		normalized = append(normalized, NormalizedOffer{Offer: offer, TotalMinor: total})

		if s.snapshots == nil {
			continue
		}
		record := storage.OfferRecord{
			ItemID:        item.ID,
			Store:         offer.Store,
			Seller:        offer.Seller,
			PriceMinor:    offer.PriceMinor,
			ShippingMinor: offer.ShippingMinor,
			TaxRate:       offer.TaxRate,
			TotalMinor:    total,
			InStock:       offer.InStock,
			Rating:        offer.Rating,
			ReviewCount:   offer.ReviewCount,
			URL:           offer.URL,
			CapturedAt:    offer.CapturedAt,
		}
		if _, err := s.snapshots.InsertOffer(ctx, record); err != nil {
			s.logger.Error().Err(err).Str("item", item.ID).Str("store", offer.Store).Msg("failed to persist offer")
		}
		snap := storage.SnapshotRecord{
			ItemID:     item.ID,
			Source:     offer.Store,
			PriceMinor: offer.PriceMinor,
			TotalMinor: total,
			CapturedAt: offer.CapturedAt,
		}
		if _, err := s.snapshots.InsertSnapshot(ctx, snap); err != nil {
			s.logger.Error().Err(err).Str("item", item.ID).Str("store", offer.Store).Msg("failed to append snapshot")
		}
	}
	return normalized
}

func (s *Service) computeStats(ctx context.Context, item storage.Item, normalized []NormalizedOffer) pricing.Statistics {
	if s.snapshots != nil {
		totals, err := s.snapshots.ListRecentTotals(ctx, item.ID, s.params.WindowSize)
		if err == nil {
			return pricing.ComputeStatistics(totals, s.params.WindowSize)
		}
		s.logger.Error().Err(err).Str("item", item.ID).Msg("failed to load history; falling back to current capture")
	}

	totals := make([]int64, 0, len(normalized))
	for _, n := range normalized {
		totals = append(totals, n.TotalMinor)
	}
	return pricing.ComputeStatistics(totals, s.params.WindowSize)
}

func (s *Service) cacheAssessment(ctx context.Context, item storage.Item, best *NormalizedOffer, report *ItemReport) {
	if s.assessments == nil {
		return
	}
	cached := cache.CachedAssessment{
		ItemID:     item.ID,
		Store:      best.Offer.Store,
		TotalMinor: best.TotalMinor,
		Stats:      report.Stats,
		Assessment: report.Assessment,
		ComputedAt: time.Now().UTC(),
	}
	if err := s.assessments.PutAssessment(ctx, cached); err != nil {
		s.logger.Warn().Err(err).Str("item", item.ID).Msg("failed to cache assessment")
	}
}

// evaluateWishlists runs the alert matcher for every entry watching the item.
// The notified-flag transition goes through the store's compare-and-set; a
// notification is only dispatched by the pass that won the transition.
func (s *Service) evaluateWishlists(ctx context.Context, item storage.Item, best *NormalizedOffer, report *ItemReport) (int, error) {
	if !s.alertsOn || s.wishlists == nil {
		return 0, nil
	}

	entries, err := s.wishlists.ListWishlistForItem(ctx, item.ID)
	if err != nil {
		return 0, fmt.Errorf("list wishlist entries: %w", err)
	}

	fired := 0
	for _, record := range entries {
		entry := wishlist.Entry{
			UserID:      record.UserID,
			ItemID:      record.ItemID,
			TargetTotal: record.TargetTotal,
			DropPercent: record.DropPercent,
			Priority:    wishlist.Priority(record.Priority),
			Notified:    record.Notified,
			CreatedAt:   record.CreatedAt,
		}

		decision := wishlist.Evaluate(entry, best.TotalMinor, report.Stats.Mean, s.rearm)
		if !decision.Transition {
			continue
		}

		won, err := s.wishlists.SetNotified(ctx, record.UserID, record.ItemID, record.Notified, decision.NextNotified)
		if err != nil {
			s.logger.Error().Err(err).Str("user", record.UserID).Str("item", item.ID).Msg("notified flag transition failed")
			continue
		}
		if !won {
			s.logger.Debug().Str("user", record.UserID).Str("item", item.ID).Msg("lost notified-flag race; skipping")
			continue
		}
		if !decision.Fire {
			continue
		}

		fired++
		s.recordAndNotify(ctx, item, best, report, record)
	}

	return fired, nil
}

func (s *Service) recordAndNotify(ctx context.Context, item storage.Item, best *NormalizedOffer, report *ItemReport, record storage.WishlistRecord) {
	if s.alertStore != nil {
		alert := storage.AlertRecord{
			UserID:      record.UserID,
			ItemID:      item.ID,
			TotalMinor:  best.TotalMinor,
			TargetTotal: record.TargetTotal,
			DropPercent: record.DropPercent,
			Verdict:     string(report.Assessment.Verdict),
			Channels:    s.channels,
		}
		if _, err := s.alertStore.InsertAlert(ctx, alert); err != nil {
			s.logger.Error().Err(err).Str("user", record.UserID).Str("item", item.ID).Msg("failed to persist alert record")
		}
	}

	if s.notifier == nil {
		return
	}
	note := alerting.Notification{
		UserID:      record.UserID,
		ItemName:    itemName(item),
		Store:       best.Offer.Store,
		TotalMinor:  best.TotalMinor,
		TargetTotal: record.TargetTotal,
		DropPercent: record.DropPercent,
		Verdict:     report.Assessment.Verdict,
		FakeSale:    report.Assessment.FakeSale,
		Priority:    wishlist.Priority(record.Priority),
		Channels:    s.channels,
		FiredAt:     time.Now().UTC(),
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("user", record.UserID).Str("item", item.ID).Msg("failed to dispatch alert")
	}
}

func itemName(item storage.Item) string {
	if item.Name != "" {
		return item.Name
	}
	return item.Query
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
