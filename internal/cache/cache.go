package cache

import (
	"context"
	"time"
)

// ReportCache holds serialized report payloads keyed per tenant. Reports are
// pure reads over historical rows, so a short TTL plus write-side
// invalidation keeps them correct.
type ReportCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	InvalidateTenant(ctx context.Context, tenantID string) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) ([]byte, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error {
	return nil
}

func (NoopReportCache) InvalidateTenant(_ context.Context, _ string) error {
	return nil
}
