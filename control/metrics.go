// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime counters and gauges for the message server.

package control

import (
	"sync"
	"time"
)

// MetricsRegistry holds counters and arbitrary gauge values.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]int64
	gauges   map[string]any
	updated  time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]int64),
		gauges:   make(map[string]any),
	}
}

// Add increments a counter by delta.
func (mr *MetricsRegistry) Add(key string, delta int64) {
	mr.mu.Lock()
	mr.counters[key] += delta
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Counter returns the current value of a counter.
func (mr *MetricsRegistry) Counter(key string) int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.counters[key]
}

// Set sets or updates a gauge.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.gauges[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Updated returns the time of the last change.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}

// GetSnapshot returns counters and gauges in one map.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.counters)+len(mr.gauges))
	for k, v := range mr.gauges {
		out[k] = v
	}
	for k, v := range mr.counters {
		out[k] = v
	}
	return out
}
