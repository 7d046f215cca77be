package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/techview-systems/leadpixel-stack/common/logging"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
	"github.com/techview-systems/leadpixel-stack/funnel/internal/secrets"
)

// Cached is a Redis read-through cache in front of a Repository. Writes go
// to the backing repository first and then drop the cached entry. Misses
// are cached too, for a shorter time.
type Cached struct {
	backing     Repository
	redis       *redis.Client
	sealer      secrets.Sealer
	ttl         time.Duration
	negativeTTL time.Duration
}

// CacheOptions tunes Cached.
type CacheOptions struct {
	TTL         time.Duration
	NegativeTTL time.Duration
	Sealer      secrets.Sealer
}

// NewCached wraps backing with a Redis cache.
func NewCached(backing Repository, client *redis.Client, opts CacheOptions) *Cached {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.NegativeTTL <= 0 {
		opts.NegativeTTL = 30 * time.Second
	}
	if opts.Sealer == nil {
		opts.Sealer = secrets.Passthrough{}
	}
	return &Cached{
		backing:     backing,
		redis:       client,
		sealer:      opts.Sealer,
		ttl:         opts.TTL,
		negativeTTL: opts.NegativeTTL,
	}
}

type cacheEntry struct {
	Missing     bool          `json:"missing,omitempty"`
	OperatorID  string        `json:"operator_id,omitempty"`
	PixelID     string        `json:"pixel_id,omitempty"`
	SealedToken string        `json:"sealed_token,omitempty"`
	UserName    string        `json:"user_name,omitempty"`
	Plans       []models.Plan `json:"plans,omitempty"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func cacheKey(operatorID string) string {
	return "leadpixel:tracking:" + operatorID
}

func (c *Cached) Get(ctx context.Context, operatorID string) (*models.TrackingConfiguration, error) {
	if cfg, hit, err := c.fromCache(ctx, operatorID); hit {
		return cfg, err
	}

	cfg, err := c.backing.Get(ctx, operatorID)
	switch {
	case errors.Is(err, ErrNotFound):
		c.store(ctx, operatorID, cacheEntry{Missing: true}, c.negativeTTL)
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}

	sealed := ""
	if cfg.AccessToken != "" {
		if sealed, err = c.sealer.Seal(cfg.AccessToken); err != nil {
			return cfg, nil
		}
	}
	c.store(ctx, operatorID, cacheEntry{
		OperatorID:  cfg.OperatorID,
		PixelID:     cfg.PixelID,
		SealedToken: sealed,
		UserName:    cfg.UserName,
		Plans:       cfg.Plans,
		UpdatedAt:   cfg.UpdatedAt,
	}, c.ttl)
	return cfg, nil
}

func (c *Cached) Put(ctx context.Context, cfg *models.TrackingConfiguration) error {
	if err := c.backing.Put(ctx, cfg); err != nil {
		return err
	}
	return c.Invalidate(ctx, cfg.OperatorID)
}

func (c *Cached) Delete(ctx context.Context, operatorID string) error {
	if err := c.backing.Delete(ctx, operatorID); err != nil {
		return err
	}
	return c.Invalidate(ctx, operatorID)
}

// Invalidate drops the cached entry for an operator.
func (c *Cached) Invalidate(ctx context.Context, operatorID string) error {
	if err := c.redis.Del(ctx, cacheKey(operatorID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate tracking cache: %w", err)
	}
	return nil
}

// fromCache reports hit=false when the caller must fall through to the
// backing repository. Redis failures degrade to a miss.
func (c *Cached) fromCache(ctx context.Context, operatorID string) (*models.TrackingConfiguration, bool, error) {
	data, err := c.redis.Get(ctx, cacheKey(operatorID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		slog.WarnContext(ctx, "Tracking cache read failed", logging.OperatorID(operatorID), logging.Error(err))
		return nil, false, nil
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, nil
	}
	if entry.Missing {
		return nil, true, ErrNotFound
	}
	token, err := c.sealer.Open(entry.SealedToken)
	if err != nil {
		return nil, false, nil
	}
	return &models.TrackingConfiguration{
		OperatorID:  entry.OperatorID,
		PixelID:     entry.PixelID,
		AccessToken: token,
		UserName:    entry.UserName,
		Plans:       entry.Plans,
		UpdatedAt:   entry.UpdatedAt,
	}, true, nil
}

func (c *Cached) store(ctx context.Context, operatorID string, entry cacheEntry, ttl time.Duration) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, cacheKey(operatorID), data, ttl).Err(); err != nil {
		slog.WarnContext(ctx, "Tracking cache write failed", logging.OperatorID(operatorID), logging.Error(err))
	}
}
