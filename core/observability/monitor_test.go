package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerformanceMonitor(t *testing.T) {
	pm := NewPerformanceMonitor()

	pm.RecordRequest("GET /hello", 10*time.Millisecond, false)
	pm.RecordRequest("GET /hello", 20*time.Millisecond, false)
	pm.RecordRequest("GET /hello", 30*time.Millisecond, false)

	snap := pm.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "GET /hello", snap[0].Route)
	assert.Equal(t, uint64(3), snap[0].Count)
	assert.Equal(t, 20*time.Millisecond, snap[0].AvgDuration)
	assert.Equal(t, 10*time.Millisecond, snap[0].MinDuration)
	assert.Equal(t, 30*time.Millisecond, snap[0].MaxDuration)
	assert.Equal(t, uint64(3), pm.Total())
}

func TestBottleneckDetection(t *testing.T) {
	pm := NewPerformanceMonitor()

	for i := 0; i < 100; i++ {
		pm.RecordRequest("GET /slow", 150*time.Millisecond, false)
		pm.RecordRequest("unmatched", time.Millisecond, i%10 == 0)
		pm.RecordRequest("GET /fast", time.Millisecond, false)
	}

	bottlenecks := pm.Bottlenecks()
	require.Len(t, bottlenecks, 2)

	byType := map[string]Bottleneck{}
	for _, b := range bottlenecks {
		byType[b.Type] = b
	}
	assert.Equal(t, "GET /slow", byType["latency"].Location)
	assert.Equal(t, "unmatched", byType["errors"].Location)
}

func TestPerformanceMonitorDisabled(t *testing.T) {
	pm := NewPerformanceMonitor()
	pm.Disable()
	pm.RecordRequest("GET /hello", time.Millisecond, false)
	assert.Empty(t, pm.Snapshot())

	pm.Enable()
	pm.RecordRequest("GET /hello", time.Millisecond, false)
	assert.Len(t, pm.Snapshot(), 1)
}

func BenchmarkRecordRequest(b *testing.B) {
	pm := NewPerformanceMonitor()
	duration := 10 * time.Millisecond

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pm.RecordRequest("GET /hello", duration, false)
	}
}
