package models

import "time"

// MetricsSnapshot is the JSON view of service counters.
type MetricsSnapshot struct {
	Requests         uint64    `json:"requests"`
	AvgRequestMillis float64   `json:"avg_request_ms"`
	CacheHitRatio    float64   `json:"cache_hit_ratio"`
	Generations      uint64    `json:"generations"`
	Rejected         uint64    `json:"rejected"`
	Warnings         uint64    `json:"warnings"`
	Goroutines       int       `json:"goroutines"`
	GeneratedAt      time.Time `json:"generated_at"`
}
