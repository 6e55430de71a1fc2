package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/astro-web3/teams-gate/internal/infra/cache"
	"github.com/astro-web3/teams-gate/internal/infra/directory"
	"github.com/astro-web3/teams-gate/pkg/logger"
	"github.com/astro-web3/teams-gate/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"
)

type CacheOption func(*MembershipCache)

// WithLookupTimeout bounds each directory call. Zero disables the bound.
func WithLookupTimeout(d time.Duration) CacheOption {
	return func(c *MembershipCache) {
		c.lookupTimeout = d
	}
}

// WithMeterProvider records cache counters on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) CacheOption {
	return func(c *MembershipCache) {
		c.meterProvider = mp
	}
}

func WithNow(now func() time.Time) CacheOption {
	return func(c *MembershipCache) {
		c.now = now
	}
}

// MembershipCache answers (team, user) membership from the store, falling
// back to the directory on a miss. Concurrent misses for one key share a
// single directory call.
type MembershipCache struct {
	store         cache.Store
	directory     directory.MembershipChecker
	ttl           time.Duration
	lookupTimeout time.Duration
	now           func() time.Time
	flights       singleflight.Group
	meterProvider metric.MeterProvider
	metrics       *gateMetrics
}

func NewMembershipCache(
	store cache.Store,
	checker directory.MembershipChecker,
	ttl time.Duration,
	opts ...CacheOption,
) (*MembershipCache, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("membership cache ttl must be positive, got %s", ttl)
	}
	if store == nil || checker == nil {
		return nil, errors.New("membership cache needs a store and a directory checker")
	}

	c := &MembershipCache{
		store:     store,
		directory: checker,
		ttl:       ttl,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.metrics = newGateMetrics(c.meterProvider)
	return c, nil
}

// GetOrCompute returns the cached decision for the pair or computes it.
// Directory failures are returned wrapped in ErrDirectoryLookup and are never
// cached. If ctx ends while waiting on a shared lookup, the caller gets
// ctx.Err() and the lookup carries on for the remaining waiters.
func (c *MembershipCache) GetOrCompute(ctx context.Context, teamID, userID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "domain.authz.GetOrCompute")
	defer span.End()

	key := cache.NewKey(teamID, userID)

	if entry, ok := c.live(ctx, key); ok {
		c.metrics.cacheHits.Add(ctx, 1)
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return entry.IsMember, nil
	}

	c.metrics.cacheMisses.Add(ctx, 1)
	span.SetAttributes(attribute.Bool("cache.hit", false))

	flight := c.flights.DoChan(key.String(), func() (any, error) {
		return c.compute(context.WithoutCancel(ctx), key)
	})

	select {
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return false, ctx.Err()
	case res := <-flight:
		span.SetAttributes(attribute.Bool("flight.shared", res.Shared))
		if res.Err != nil {
			span.RecordError(res.Err)
			return false, res.Err
		}
		isMember, _ := res.Val.(bool)
		return isMember, nil
	}
}

func (c *MembershipCache) compute(ctx context.Context, key cache.Key) (bool, error) {
	// A flight that finished between our miss and this one already stored it.
	if entry, ok := c.live(ctx, key); ok {
		return entry.IsMember, nil
	}

	lookupCtx := ctx
	if c.lookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, c.lookupTimeout)
		defer cancel()
	}

	c.metrics.lookups.Add(ctx, 1)
	isMember, err := c.directory.IsMember(lookupCtx, key.TeamID, key.UserID)
	if err != nil {
		c.metrics.lookupFailures.Add(ctx, 1)
		return false, fmt.Errorf("%w: %w", ErrDirectoryLookup, err)
	}

	entry := &cache.Entry{
		IsMember:  isMember,
		ExpiresAt: c.now().Add(c.ttl),
	}
	if err := c.store.Set(ctx, key, entry); err != nil {
		logger.WarnContext(ctx, "failed to store membership",
			slog.String("team_id", key.TeamID),
			slog.String("user_id", key.UserID),
			logger.Err(err),
		)
	}

	return isMember, nil
}

func (c *MembershipCache) live(ctx context.Context, key cache.Key) (*cache.Entry, bool) {
	entry, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.WarnContext(ctx, "failed to read membership cache, treating as miss", logger.Err(err))
		}
		return nil, false
	}
	if !entry.Live(c.now()) {
		return nil, false
	}
	return entry, true
}
