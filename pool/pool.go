package pool

import (
	"sync"
	"sync/atomic"
)

// Item is a pooled value with a reference count.
type Item[T any] struct {
	Value T

	pool *Pool[T]
	refs atomic.Int32
}

// RefCount returns the current number of references held on the item.
func (it *Item[T]) RefCount() int { return int(it.refs.Load()) }

// Retain adds a reference to an item that is already held.
func (it *Item[T]) Retain() { it.refs.Add(1) }

// Release drops one reference. See Pool.Free.
func (it *Item[T]) Release() bool { return it.pool.Free(it) }

// Option configures a Pool.
type Option[T any] func(*Pool[T])

// WithReset sets a function applied to a value before it is lent again.
func WithReset[T any](fn func(T)) Option[T] {
	return func(p *Pool[T]) { p.reset = fn }
}

// Pool is a bounded free stack of reference-counted values of one shape.
// It is safe for concurrent use.
type Pool[T any] struct {
	mu      sync.Mutex
	free    []*Item[T]
	maxFree int
	alloc   func() T
	reset   func(T)

	allocated atomic.Int64
	inUse     atomic.Int64
	maxPeak   atomic.Int64
}

// New creates a pool that keeps at most maxFree idle items and calls alloc
// when the free stack is empty.
func New[T any](maxFree int, alloc func() T, opts ...Option[T]) *Pool[T] {
	p := &Pool[T]{
		maxFree: maxFree,
		alloc:   alloc,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Obtain returns an item holding one reference, reusing an idle one when
// available.
func (p *Pool[T]) Obtain() *Item[T] {
	p.mu.Lock()
	var it *Item[T]
	if n := len(p.free); n > 0 {
		it = p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
	}
	p.mu.Unlock()

	if it == nil {
		it = &Item[T]{Value: p.alloc(), pool: p}
		p.allocated.Add(1)
	} else if p.reset != nil {
		p.reset(it.Value)
	}

	it.refs.Store(1)
	p.trackPeak(p.inUse.Add(1))
	return it
}

// Free drops one reference from it. It reports whether this call released
// the last reference. Freeing an item with no references is a no-op that
// returns false, so counts never go negative.
func (p *Pool[T]) Free(it *Item[T]) bool {
	if it == nil {
		return false
	}
	for {
		n := it.refs.Load()
		if n <= 0 {
			return false
		}
		if it.refs.CompareAndSwap(n, n-1) {
			if n > 1 {
				return false
			}
			break
		}
	}

	p.inUse.Add(-1)

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) < p.maxFree {
		p.free = append(p.free, it)
	} else {
		p.allocated.Add(-1)
	}
	return true
}

func (p *Pool[T]) trackPeak(n int64) {
	for {
		peak := p.maxPeak.Load()
		if n <= peak || p.maxPeak.CompareAndSwap(peak, n) {
			return
		}
	}
}

// Stats is a snapshot of pool usage.
type Stats struct {
	TotalFree int
	InUse     int
	Allocated int
	MaxPeak   int
}

// Stats returns current pool counters.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	free := len(p.free)
	p.mu.Unlock()

	return Stats{
		TotalFree: free,
		InUse:     int(p.inUse.Load()),
		Allocated: int(p.allocated.Load()),
		MaxPeak:   int(p.maxPeak.Load()),
	}
}

// TotalFree returns the number of idle items on the free stack.
func (p *Pool[T]) TotalFree() int { return p.Stats().TotalFree }

// MaxPeak returns the largest number of items ever lent at once.
func (p *Pool[T]) MaxPeak() int { return int(p.maxPeak.Load()) }
