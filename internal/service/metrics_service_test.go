package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/scheduler"
)

func TestGenerationOutcome(t *testing.T) {
	placed := []scheduler.SessionAssignment{{GroupID: "10a", SubjectID: "math", TeacherID: "t1"}}

	assert.Equal(t, OutcomeRejected, GenerationOutcome(scheduler.Report{
		Assignments: []scheduler.SessionAssignment{}, Conflicts: []string{"no teachers supplied"}, Warnings: []string{},
	}))
	assert.Equal(t, OutcomeConflicts, GenerationOutcome(scheduler.Report{Assignments: placed, Conflicts: []string{"double booking"}}))
	assert.Equal(t, OutcomeWarnings, GenerationOutcome(scheduler.Report{Assignments: placed, Warnings: []string{"no slot"}}))
	assert.Equal(t, OutcomeClean, GenerationOutcome(scheduler.Report{Assignments: placed}))
}

func TestMetricsServiceSnapshot(t *testing.T) {
	m := NewMetricsService()

	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/timetables/generate", http.StatusOK, 20*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/timetables", http.StatusOK, 10*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.ObserveCacheWrite(time.Millisecond)
	m.ObserveDBQuery("save_timetable", 5*time.Millisecond)
	m.ObserveGeneration(scheduler.Report{
		Assignments: []scheduler.SessionAssignment{{GroupID: "10a"}},
		Warnings:    []string{"a", "b"},
	}, time.Millisecond)
	m.ObserveGeneration(scheduler.Report{
		Assignments: []scheduler.SessionAssignment{}, Conflicts: []string{"no groups supplied"}, Warnings: []string{},
	}, time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.Requests)
	assert.InDelta(t, 15.0, snap.AvgRequestMillis, 0.001)
	assert.InDelta(t, 1.0/3.0, snap.CacheHitRatio, 0.001)
	assert.Equal(t, uint64(2), snap.Generations)
	assert.Equal(t, uint64(1), snap.Rejected)
	assert.Equal(t, uint64(2), snap.Warnings)
	assert.False(t, snap.GeneratedAt.IsZero())
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.ObserveGeneration(scheduler.Report{Assignments: []scheduler.SessionAssignment{{GroupID: "10a"}}}, time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `timetable_generations_total{outcome="clean"} 1`)
	assert.Contains(t, body, "timetable_generation_duration_seconds")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.ObserveGeneration(scheduler.Report{}, time.Millisecond)
	assert.Equal(t, uint64(0), m.Snapshot().Requests)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
