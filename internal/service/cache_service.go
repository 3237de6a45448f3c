package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
)

// ReportCacheRepository abstracts storage for cached generation reports.
type ReportCacheRepository interface {
	Get(ctx context.Context, fingerprint string) (*scheduler.Report, error)
	Set(ctx context.Context, fingerprint string, report scheduler.Report, ttl time.Duration) error
	Purge(ctx context.Context) error
}

// ReportCacheService wraps the report cache with metrics and logging.
// Failures are logged and reported as misses so generation never depends
// on Redis being up.
type ReportCacheService struct {
	repo    ReportCacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	writes  *jobs.Queue[cacheWrite]
}

type cacheWrite struct {
	fingerprint string
	report      scheduler.Report
}

// NewReportCacheService constructs a cache service. A nil repo disables caching.
func NewReportCacheService(repo ReportCacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *ReportCacheService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportCacheService{repo: repo, metrics: metrics, ttl: ttl, logger: logger}
}

// Enabled indicates whether caching is active.
func (s *ReportCacheService) Enabled() bool {
	return s != nil && s.repo != nil
}

// Lookup returns the cached report for the fingerprint, if any.
func (s *ReportCacheService) Lookup(ctx context.Context, fingerprint string) (scheduler.Report, bool) {
	if !s.Enabled() {
		return scheduler.Report{}, false
	}
	start := time.Now()
	report, err := s.repo.Get(ctx, fingerprint)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("report cache get failed", zap.String("fingerprint", fingerprint), zap.Error(err))
		}
		return scheduler.Report{}, false
	}
	return *report, true
}

// StartAsyncWrites moves cache writes onto a worker pool so Store returns
// without waiting for Redis. Call Close to flush pending writes.
func (s *ReportCacheService) StartAsyncWrites(ctx context.Context, cfg jobs.QueueConfig) {
	if !s.Enabled() || s.writes != nil {
		return
	}
	if cfg.Logger == nil {
		cfg.Logger = s.logger
	}
	s.writes = jobs.NewQueue[cacheWrite]("report-cache", func(ctx context.Context, w cacheWrite) error {
		return s.write(ctx, w.fingerprint, w.report)
	}, cfg)
	s.writes.Start(ctx)
}

// Close flushes queued writes.
func (s *ReportCacheService) Close() {
	if s != nil && s.writes != nil {
		s.writes.Stop()
	}
}

// Store caches the report. With async writes enabled the write is queued and
// falls back to a direct write when the queue is full.
func (s *ReportCacheService) Store(ctx context.Context, fingerprint string, report scheduler.Report) {
	if !s.Enabled() {
		return
	}
	if s.writes != nil {
		if err := s.writes.TryEnqueue(cacheWrite{fingerprint: fingerprint, report: report}); err == nil {
			return
		}
	}
	if err := s.write(ctx, fingerprint, report); err != nil {
		s.logger.Warn("report cache set failed", zap.String("fingerprint", fingerprint), zap.Error(err))
	}
}

func (s *ReportCacheService) write(ctx context.Context, fingerprint string, report scheduler.Report) error {
	start := time.Now()
	err := s.repo.Set(ctx, fingerprint, report, s.ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	return err
}

// Purge drops every cached report.
func (s *ReportCacheService) Purge(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.Purge(ctx); err != nil {
		s.logger.Warn("report cache purge failed", zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge report cache")
	}
	return nil
}
