package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
)

type reportCacheRepoStub struct {
	mu     sync.Mutex
	items  map[string]scheduler.Report
	ttls   map[string]time.Duration
	getErr error
	setErr error
	purged bool
}

func newReportCacheRepoStub() *reportCacheRepoStub {
	return &reportCacheRepoStub{items: make(map[string]scheduler.Report), ttls: make(map[string]time.Duration)}
}

func (r *reportCacheRepoStub) Get(ctx context.Context, fingerprint string) (*scheduler.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	report, ok := r.items[fingerprint]
	if !ok {
		return nil, appErrors.ErrCacheMiss
	}
	return &report, nil
}

func (r *reportCacheRepoStub) Set(ctx context.Context, fingerprint string, report scheduler.Report, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setErr != nil {
		return r.setErr
	}
	r.items[fingerprint] = report
	r.ttls[fingerprint] = ttl
	return nil
}

func (r *reportCacheRepoStub) Purge(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purged = true
	r.items = make(map[string]scheduler.Report)
	return nil
}

func TestReportCacheServiceRoundTrip(t *testing.T) {
	repo := newReportCacheRepoStub()
	metrics := NewMetricsService()
	svc := NewReportCacheService(repo, metrics, 0, nil)
	report := scheduler.Report{Assignments: []scheduler.SessionAssignment{}, Conflicts: []string{}, Warnings: []string{"w"}}

	_, ok := svc.Lookup(context.Background(), "fp")
	assert.False(t, ok)

	svc.Store(context.Background(), "fp", report)
	assert.Equal(t, 10*time.Minute, repo.ttls["fp"])

	cached, ok := svc.Lookup(context.Background(), "fp")
	require.True(t, ok)
	assert.Equal(t, report, cached)
	assert.InDelta(t, 0.5, metrics.Snapshot().CacheHitRatio, 0.001)

	require.NoError(t, svc.Purge(context.Background()))
	assert.True(t, repo.purged)
}

func TestReportCacheServiceTreatsFailuresAsMisses(t *testing.T) {
	repo := newReportCacheRepoStub()
	repo.getErr = errors.New("connection refused")
	repo.setErr = errors.New("connection refused")
	svc := NewReportCacheService(repo, nil, time.Minute, nil)

	svc.Store(context.Background(), "fp", scheduler.Report{})
	_, ok := svc.Lookup(context.Background(), "fp")
	assert.False(t, ok)
}

func TestReportCacheServiceDisabled(t *testing.T) {
	svc := NewReportCacheService(nil, nil, time.Minute, nil)
	assert.False(t, svc.Enabled())
	svc.Store(context.Background(), "fp", scheduler.Report{})
	_, ok := svc.Lookup(context.Background(), "fp")
	assert.False(t, ok)
	assert.NoError(t, svc.Purge(context.Background()))
	svc.Close()
}

func TestReportCacheServiceAsyncWritesFlushOnClose(t *testing.T) {
	repo := newReportCacheRepoStub()
	svc := NewReportCacheService(repo, nil, time.Minute, nil)
	svc.StartAsyncWrites(context.Background(), jobs.QueueConfig{Workers: 2, BufferSize: 16})

	for _, fp := range []string{"a", "b", "c"} {
		svc.Store(context.Background(), fp, scheduler.Report{Warnings: []string{fp}})
	}
	svc.Close()

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Len(t, repo.items, 3)
	assert.Equal(t, []string{"b"}, repo.items["b"].Warnings)
}
