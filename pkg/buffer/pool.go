package buffer

import (
	"sync"

	"go.uber.org/atomic"
)

const (
	// 超过此容量的缓冲区不放回池中
	maxPooledSize = 1 << 20
	numTiers      = 5
)

// 分级容量: 4KB, 16KB, 64KB, 256KB, 1MB
var tierSizes = [numTiers]int{
	1 << 12,
	1 << 14,
	1 << 16,
	1 << 18,
	1 << 20,
}

// Pool 分级的 Buffer 对象池
type Pool struct {
	tiers [numTiers]sync.Pool

	gets   atomic.Uint64
	puts   atomic.Uint64
	misses atomic.Uint64
}

// Stats 池统计信息
type Stats struct {
	Gets   uint64
	Puts   uint64
	Misses uint64
}

var defaultPool = NewPool()

// NewPool 创建分级缓冲池
func NewPool() *Pool {
	return &Pool{}
}

// Get 获取容量恰好为 capacity 的写模式缓冲区
func (p *Pool) Get(capacity int) *Buffer {
	p.gets.Inc()

	if capacity > maxPooledSize {
		p.misses.Inc()
		return New(capacity)
	}

	idx := tierFor(capacity)
	b, ok := p.tiers[idx].Get().(*Buffer)
	if !ok {
		p.misses.Inc()
		b = &Buffer{data: make([]byte, tierSizes[idx])}
	}

	b.data = b.data[:capacity]
	b.position = 0
	b.limit = capacity
	b.pool = p
	b.released = false
	return b
}

func (p *Pool) put(b *Buffer) {
	full := b.data[:cap(b.data)]
	if len(full) > maxPooledSize {
		return
	}
	idx := tierFor(len(full))
	// 只放回容量满足该级要求的缓冲区
	if len(full) < tierSizes[idx] {
		return
	}
	p.puts.Inc()
	b.data = full
	p.tiers[idx].Put(b)
}

// Stats 返回统计信息
func (p *Pool) Stats() Stats {
	return Stats{
		Gets:   p.gets.Load(),
		Puts:   p.puts.Load(),
		Misses: p.misses.Load(),
	}
}

func tierFor(capacity int) int {
	for i, size := range tierSizes {
		if capacity <= size {
			return i
		}
	}
	return numTiers - 1
}

// Get 从默认池获取缓冲区
func Get(capacity int) *Buffer {
	return defaultPool.Get(capacity)
}

// DefaultPool 返回全局默认池
func DefaultPool() *Pool {
	return defaultPool
}
