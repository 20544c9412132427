package observability

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// PerformanceMonitor tracks per-route request counts, errors and latency
type PerformanceMonitor struct {
	enabled atomic.Bool
	routes  sync.Map // route label -> *RouteMetrics
	total   atomic.Uint64

	// Thresholds used by Bottlenecks
	SlowThreshold  time.Duration
	ErrorThreshold float64
}

// RouteMetrics stores the counters of one route label
type RouteMetrics struct {
	Name          string
	Count         atomic.Uint64
	Errors        atomic.Uint64
	TotalDuration atomic.Uint64
	MinDuration   atomic.Uint64
	MaxDuration   atomic.Uint64
}

// Bottleneck is a route whose latency or error rate crossed a threshold
type Bottleneck struct {
	Type     string  `json:"type"`
	Location string  `json:"location"`
	Severity int     `json:"severity"`
	Impact   float64 `json:"impact"`
	Details  string  `json:"details"`
}

// RouteSnapshot is a point-in-time copy of RouteMetrics
type RouteSnapshot struct {
	Route       string        `json:"route"`
	Count       uint64        `json:"count"`
	Errors      uint64        `json:"errors"`
	AvgDuration time.Duration `json:"avg_duration_ns"`
	MinDuration time.Duration `json:"min_duration_ns"`
	MaxDuration time.Duration `json:"max_duration_ns"`
}

// NewPerformanceMonitor creates an enabled monitor
func NewPerformanceMonitor() *PerformanceMonitor {
	pm := &PerformanceMonitor{
		SlowThreshold:  100 * time.Millisecond,
		ErrorThreshold: 0.05,
	}
	pm.enabled.Store(true)
	return pm
}

// Enable turns recording on
func (pm *PerformanceMonitor) Enable() { pm.enabled.Store(true) }

// Disable turns recording off
func (pm *PerformanceMonitor) Disable() { pm.enabled.Store(false) }

// RecordRequest records one handled connection under a route label
func (pm *PerformanceMonitor) RecordRequest(route string, duration time.Duration, isError bool) {
	if !pm.enabled.Load() {
		return
	}

	val, _ := pm.routes.LoadOrStore(route, &RouteMetrics{Name: route})
	m := val.(*RouteMetrics)

	m.Count.Add(1)
	if isError {
		m.Errors.Add(1)
	}

	d := uint64(duration.Nanoseconds())
	m.TotalDuration.Add(d)
	updateMinMax(m, d)
	pm.total.Add(1)
}

func updateMinMax(m *RouteMetrics, d uint64) {
	for {
		min := m.MinDuration.Load()
		if min != 0 && d >= min {
			break
		}
		if m.MinDuration.CompareAndSwap(min, d) {
			break
		}
	}
	for {
		max := m.MaxDuration.Load()
		if d <= max {
			break
		}
		if m.MaxDuration.CompareAndSwap(max, d) {
			break
		}
	}
}

// Total returns the number of requests recorded across all routes
func (pm *PerformanceMonitor) Total() uint64 {
	return pm.total.Load()
}

// Snapshot returns the metrics of every route, sorted by route label
func (pm *PerformanceMonitor) Snapshot() []RouteSnapshot {
	var out []RouteSnapshot
	pm.routes.Range(func(_, value any) bool {
		m := value.(*RouteMetrics)
		count := m.Count.Load()
		s := RouteSnapshot{
			Route:       m.Name,
			Count:       count,
			Errors:      m.Errors.Load(),
			MinDuration: time.Duration(m.MinDuration.Load()),
			MaxDuration: time.Duration(m.MaxDuration.Load()),
		}
		if count > 0 {
			s.AvgDuration = time.Duration(m.TotalDuration.Load() / count)
		}
		out = append(out, s)
		return true
	})

	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}

// Bottlenecks reports routes that are slow on average or fail too often
func (pm *PerformanceMonitor) Bottlenecks() []Bottleneck {
	bottlenecks := make([]Bottleneck, 0)

	for _, s := range pm.Snapshot() {
		if s.Count == 0 {
			continue
		}

		if s.AvgDuration > pm.SlowThreshold {
			bottlenecks = append(bottlenecks, Bottleneck{
				Type:     "latency",
				Location: s.Route,
				Severity: 8,
				Impact:   100.0,
				Details:  fmt.Sprintf("High latency (%v avg)", s.AvgDuration),
			})
		}

		rate := float64(s.Errors) / float64(s.Count)
		if s.Errors > 0 && rate > pm.ErrorThreshold {
			bottlenecks = append(bottlenecks, Bottleneck{
				Type:     "errors",
				Location: s.Route,
				Severity: 10,
				Impact:   rate * 100,
				Details:  fmt.Sprintf("%.1f%% error rate", rate*100),
			})
		}
	}

	return bottlenecks
}
