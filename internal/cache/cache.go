package cache

import (
	"context"
	"time"

	"habibeat/backend/internal/domain"
)

// ClosingCache keeps resolved carry-over closings keyed by the period they were
// computed from.
type ClosingCache interface {
	Get(ctx context.Context, period domain.Period) (domain.Closing, bool, error)
	Set(ctx context.Context, period domain.Period, value domain.Closing, ttl time.Duration) error
}

type NoopClosingCache struct{}

func (NoopClosingCache) Get(_ context.Context, _ domain.Period) (domain.Closing, bool, error) {
	return nil, false, nil
}

func (NoopClosingCache) Set(_ context.Context, _ domain.Period, _ domain.Closing, _ time.Duration) error {
	return nil
}
