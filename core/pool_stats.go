package core

import (
	"encoding/json"
	"fmt"

	"github.com/searchktools/pool-server/core/observability"
	"github.com/searchktools/pool-server/core/pools"
)

// Stats is a point-in-time view of the engine
type Stats struct {
	Pool        pools.WorkerPoolStats         `json:"pool"`
	Buffers     pools.BytePoolStats           `json:"buffers"`
	RouteCount  int                           `json:"route_count"`
	MatchPolicy string                        `json:"match_policy"`
	Requests    uint64                        `json:"requests"`
	Routes      []observability.RouteSnapshot `json:"routes"`
	Bottlenecks []observability.Bottleneck    `json:"bottlenecks"`
}

// Stats returns engine statistics. Pool figures are zero before Serve.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	pool := e.pool
	e.mu.Unlock()

	snapshot := e.routes.Load()
	stats := Stats{
		Buffers:     e.bytePool.Stats(),
		RouteCount:  snapshot.Len(),
		MatchPolicy: snapshot.Policy().String(),
		Requests:    e.monitor.Total(),
		Routes:      e.monitor.Snapshot(),
		Bottlenecks: e.monitor.Bottlenecks(),
	}
	if pool != nil {
		stats.Pool = pool.Stats()
	}
	return stats
}

// StatsJSON returns engine statistics as indented JSON
func (e *Engine) StatsJSON() string {
	data, _ := json.MarshalIndent(e.Stats(), "", "  ")
	return string(data)
}

// StatsText returns engine statistics as human-readable text
func (e *Engine) StatsText() string {
	s := e.Stats()
	return fmt.Sprintf(`Engine Statistics
=================

Worker Pool:
  Workers:   %d (%d active)
  Submitted: %d
  Completed: %d
  Panicked:  %d
  Rejected:  %d
  Pending:   %d

Routes: %d (%s match)
Requests: %d
`,
		s.Pool.NumWorkers, s.Pool.ActiveWorkers,
		s.Pool.JobsSubmitted, s.Pool.JobsCompleted, s.Pool.JobsPanicked,
		s.Pool.JobsRejected, s.Pool.JobsPending,
		s.RouteCount, s.MatchPolicy,
		s.Requests,
	)
}
