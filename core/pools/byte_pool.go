package pools

import (
	"sync"
	"sync/atomic"
)

// BytePool is a multi-tiered byte slice pool for read buffers and response
// assembly
type BytePool struct {
	pools []*sync.Pool
	sizes []int

	gets   atomic.Uint64
	puts   atomic.Uint64
	misses atomic.Uint64
}

// Size classes for request-line reads and canned responses
var defaultSizes = []int{
	512,
	1024,
	4096,
	16384,
}

// NewBytePool creates a byte pool with the default size tiers
func NewBytePool() *BytePool {
	return NewBytePoolWithSizes(defaultSizes)
}

// NewBytePoolWithSizes creates a byte pool with custom ascending size tiers
func NewBytePoolWithSizes(sizes []int) *BytePool {
	bp := &BytePool{
		pools: make([]*sync.Pool, len(sizes)),
		sizes: sizes,
	}

	for i, size := range sizes {
		size := size
		bp.pools[i] = &sync.Pool{
			New: func() any {
				buf := make([]byte, size)
				return &buf
			},
		}
	}

	return bp
}

// Get returns a slice of length size. Requests above the largest tier are
// allocated directly.
func (bp *BytePool) Get(size int) []byte {
	bp.gets.Add(1)
	for i, poolSize := range bp.sizes {
		if size <= poolSize {
			buf := *bp.pools[i].Get().(*[]byte)
			return buf[:size]
		}
	}

	bp.misses.Add(1)
	return make([]byte, size)
}

// Put returns a slice obtained from Get. Slices whose capacity matches no
// tier are left to the GC.
func (bp *BytePool) Put(buf []byte) {
	capacity := cap(buf)
	for i, poolSize := range bp.sizes {
		if capacity == poolSize {
			buf = buf[:capacity]
			bp.pools[i].Put(&buf)
			bp.puts.Add(1)
			return
		}
	}
}

// Stats returns pool statistics
func (bp *BytePool) Stats() BytePoolStats {
	return BytePoolStats{
		Gets:   bp.gets.Load(),
		Puts:   bp.puts.Load(),
		Misses: bp.misses.Load(),
	}
}

// BytePoolStats contains byte pool statistics
type BytePoolStats struct {
	Gets   uint64 `json:"gets"`
	Puts   uint64 `json:"puts"`
	Misses uint64 `json:"misses"`
}
