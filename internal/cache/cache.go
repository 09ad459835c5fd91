package cache

import (
	"context"
	"time"

	"mahalpos/internal/domain"
)

// ProductCache holds short-lived product lookups keyed by product id. Entries
// may be stale for up to one TTL after a catalog write; callers that need the
// committed quantity read the store directly.
type ProductCache interface {
	Get(ctx context.Context, id int64) (*domain.Product, bool, error)
	Set(ctx context.Context, id int64, value *domain.Product, ttl time.Duration) error
	Invalidate(ctx context.Context, ids ...int64) error
}

type NoopProductCache struct{}

func (NoopProductCache) Get(_ context.Context, _ int64) (*domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopProductCache) Set(_ context.Context, _ int64, _ *domain.Product, _ time.Duration) error {
	return nil
}

func (NoopProductCache) Invalidate(_ context.Context, _ ...int64) error {
	return nil
}
