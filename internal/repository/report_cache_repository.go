package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/sma-timetable/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

const reportKeyPrefix = "timetable:report:"

// ReportCacheRepository keeps generation reports in Redis keyed by input
// fingerprint. A nil client turns every read into a miss and every write
// into a no-op.
type ReportCacheRepository struct {
	client *redis.Client
}

// NewReportCacheRepository constructs a cache repository.
func NewReportCacheRepository(client *redis.Client) *ReportCacheRepository {
	return &ReportCacheRepository{client: client}
}

// Key returns the Redis key for a fingerprint.
func (r *ReportCacheRepository) Key(fingerprint string) string {
	return reportKeyPrefix + fingerprint
}

// Get returns the cached report or appErrors.ErrCacheMiss.
func (r *ReportCacheRepository) Get(ctx context.Context, fingerprint string) (*scheduler.Report, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}

	key := r.Key(fingerprint)
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var report scheduler.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("unmarshal cached report %s: %w", key, err)
	}
	return &report, nil
}

// Set stores the report with the given TTL.
func (r *ReportCacheRepository) Set(ctx context.Context, fingerprint string, report scheduler.Report, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report %s: %w", fingerprint, err)
	}

	key := r.Key(fingerprint)
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Purge removes every cached report.
func (r *ReportCacheRepository) Purge(ctx context.Context) error {
	if r.client == nil {
		return nil
	}

	iter := r.client.Scan(ctx, 0, reportKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis delete %s: %w", key, err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan reports: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable. A nil client is treated as healthy.
func (r *ReportCacheRepository) Ping(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Ping(ctx).Err()
}
