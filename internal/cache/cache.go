package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"dealwatch/internal/config"
	"dealwatch/internal/pricing"
)

// ErrCacheMiss indicates no cached assessment exists for the item.
var ErrCacheMiss = errors.New("cache: miss")

// CachedAssessment is the TTL'd copy of the latest deal assessment for an
// item. It is a convenience copy only; the engine recomputes identically from
// history, so eviction is always safe.
type CachedAssessment struct {
	ItemID     string             `json:"item_id"`
	Store      string             `json:"store"`
	TotalMinor int64              `json:"total_minor"`
	Stats      pricing.Statistics `json:"stats"`
	Assessment pricing.Assessment `json:"assessment"`
	ComputedAt time.Time          `json:"computed_at"`
}

// AssessmentCache stores the latest assessment per item.
type AssessmentCache interface {
	PutAssessment(ctx context.Context, cached CachedAssessment) error
	GetAssessment(ctx context.Context, itemID string) (CachedAssessment, error)
}

// Redis implements AssessmentCache on go-redis.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(cfg config.CacheConfig, logger zerolog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &Redis{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "cache").Logger(),
	}, nil
}

// Close releases the redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// PutAssessment stores the latest assessment for an item with TTL.
func (r *Redis) PutAssessment(ctx context.Context, cached CachedAssessment) error {
	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("marshal assessment: %w", err)
	}
	if err := r.client.Set(ctx, assessmentKey(cached.ItemID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache assessment: %w", err)
	}
	return nil
}

// GetAssessment fetches the latest assessment for an item.
func (r *Redis) GetAssessment(ctx context.Context, itemID string) (CachedAssessment, error) {
	data, err := r.client.Get(ctx, assessmentKey(itemID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return CachedAssessment{}, ErrCacheMiss
	}
	if err != nil {
		return CachedAssessment{}, fmt.Errorf("read cached assessment: %w", err)
	}

	var cached CachedAssessment
	if err := json.Unmarshal(data, &cached); err != nil {
		return CachedAssessment{}, fmt.Errorf("unmarshal cached assessment: %w", err)
	}
	return cached, nil
}

func assessmentKey(itemID string) string {
	return "assessment:" + itemID
}

var _ AssessmentCache = (*Redis)(nil)
