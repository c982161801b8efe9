// ABOUTME: Thread-safe TTL and size bounded index of archived keys.
// ABOUTME: Used by the session store to evict old closed sessions oldest-first.

package retention

import (
	"container/list"
	"sync"
	"time"
)

// entry stores the tracking time and list element for a key.
type entry struct {
	trackedAt time.Time
	element   *list.Element
}

// Index tracks keys in insertion order and reports which ones should be
// dropped. A zero TTL disables age-based eviction; a zero maxSize disables
// count-based eviction.
type Index struct {
	mu       sync.Mutex
	entries  map[string]*entry
	order    *list.List // oldest at front
	ttl      time.Duration
	maxSize  int
	minAge   time.Duration
	now      func() time.Time
	interval time.Duration
	onExpire func(key string)
	done     chan struct{}
	closed   bool
}

// Option configures an Index.
type Option func(*Index)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(x *Index) { x.now = now }
}

// WithSweepInterval sets how often expired keys are swept. Zero disables
// the background sweep; Sweep can still be called directly.
func WithSweepInterval(d time.Duration) Option {
	return func(x *Index) { x.interval = d }
}

// WithMinAge shields keys tracked less than d ago from count-based
// eviction. The index may then hold more than maxSize keys until they age.
func WithMinAge(d time.Duration) Option {
	return func(x *Index) { x.minAge = d }
}

// New creates an index. onExpire is invoked (without the index lock held)
// for every key removed by a sweep.
func New(ttl time.Duration, maxSize int, onExpire func(key string), opts ...Option) *Index {
	x := &Index{
		entries:  make(map[string]*entry),
		order:    list.New(),
		ttl:      ttl,
		maxSize:  maxSize,
		now:      time.Now,
		interval: time.Minute,
		onExpire: onExpire,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.ttl > 0 && x.interval > 0 {
		go x.sweepLoop()
	}
	return x
}

// Track records key as archived now. If the index is over capacity the
// oldest keys are removed and returned so the caller can drop them from
// its own storage. onExpire is not called for these keys.
func (x *Index) Track(key string) []string {
	x.mu.Lock()
	defer x.mu.Unlock()

	if e, ok := x.entries[key]; ok {
		e.trackedAt = x.now()
		x.order.MoveToBack(e.element)
		return nil
	}

	now := x.now()
	var evicted []string
	for x.maxSize > 0 && len(x.entries) >= x.maxSize {
		key, ok := x.evictOldest(now)
		if !ok {
			break
		}
		evicted = append(evicted, key)
	}

	elem := x.order.PushBack(key)
	x.entries[key] = &entry{trackedAt: now, element: elem}
	return evicted
}

// contains reports whether key is tracked and not yet expired.
func (x *Index) contains(key string) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	e, ok := x.entries[key]
	if !ok {
		return false
	}
	return x.ttl <= 0 || x.now().Sub(e.trackedAt) <= x.ttl
}

// Len returns the number of tracked keys.
func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.entries)
}

// evictOldest removes the front of the order list unless it is younger
// than minAge. Must be called with mu held.
func (x *Index) evictOldest(now time.Time) (string, bool) {
	front := x.order.Front()
	if front == nil {
		return "", false
	}
	key, _ := front.Value.(string)
	if x.minAge > 0 && now.Sub(x.entries[key].trackedAt) < x.minAge {
		return "", false
	}
	x.order.Remove(front)
	delete(x.entries, key)
	return key, true
}

// Sweep removes every key older than the TTL, calls onExpire for each and
// returns them. Keys are tracked in time order, so the scan stops at the
// first key that is still fresh.
func (x *Index) Sweep() []string {
	if x.ttl <= 0 {
		return nil
	}

	x.mu.Lock()
	now := x.now()
	var expired []string
	for front := x.order.Front(); front != nil; front = x.order.Front() {
		key, _ := front.Value.(string)
		if now.Sub(x.entries[key].trackedAt) <= x.ttl {
			break
		}
		x.order.Remove(front)
		delete(x.entries, key)
		expired = append(expired, key)
	}
	x.mu.Unlock()

	if x.onExpire != nil {
		for _, key := range expired {
			x.onExpire(key)
		}
	}
	return expired
}

// sweepLoop runs in a background goroutine until Close.
func (x *Index) sweepLoop() {
	ticker := time.NewTicker(x.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			x.Sweep()
		case <-x.done:
			return
		}
	}
}

// Close stops the background sweep. It is safe to call multiple times.
func (x *Index) Close() {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.closed {
		close(x.done)
		x.closed = true
	}
}
