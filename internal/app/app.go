package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"dealwatch/internal/alerting"
	"dealwatch/internal/cache"
	"dealwatch/internal/config"
	"dealwatch/internal/scheduler"
	"dealwatch/internal/scraper"
	"dealwatch/internal/service"
	"dealwatch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newSearcher() *scraper.Client {
	return scraper.NewClient(scraper.Options{
		BaseURL:   a.Config.Scraper.BaseURL,
		APIKey:    a.Config.Scraper.APIKey,
		MaxOffers: a.Config.Scraper.MaxOffers,
		Timeout:   a.Config.Scraper.RequestTimeout,
		UserAgent: a.Config.Scraper.UserAgent,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerts.Telegram.Enabled {
		cfg := a.Config.Alerts.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) openCache() (cache.AssessmentCache, func()) {
	if !a.Config.Cache.Enabled {
		return nil, nil
	}
	redisCache, err := cache.NewRedis(a.Config.Cache, a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("assessment cache unavailable; continuing without it")
		return nil, nil
	}
	return redisCache, func() {
		_ = redisCache.Close()
	}
}

func (a *App) newService(sched *scheduler.Scheduler, store *storage.Store, assessments cache.AssessmentCache) *service.Service {
	deps := service.Deps{
		Scheduler:   sched,
		Searcher:    a.newSearcher(),
		Assessments: assessments,
		Notifier:    a.newNotifier(),
	}
	if store != nil {
		deps.Items = store
		deps.Snapshots = store
		deps.Wishlists = store
		deps.AlertStore = store
	}
	return service.New(a.Config, deps, a.Logger)
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	assessments, closeCache := a.openCache()
	if closeCache != nil {
		defer closeCache()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := a.newService(sched, store, assessments)

	a.Logger.Info().Msg("starting price monitoring service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("price monitoring service stopped")
	return nil
}

// CheckOptions configure a one-shot item check.
type CheckOptions struct {
	ItemID string
	Query  string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	ItemID string
	Limit  int
}

// ExportOptions hold parameters for exporting historical snapshots.
type ExportOptions struct {
	ItemID    string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// TrackOptions configure tracked-item management.
type TrackOptions struct {
	ItemID string
	Query  string
	Name   string
	Remove bool
}

// WishOptions configure wishlist entry management.
type WishOptions struct {
	UserID      string
	ItemID      string
	TargetTotal *int64
	DropPercent *decimal.Decimal
	Priority    string
	Remove      bool
}
