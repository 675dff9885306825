// Package dedupe remembers request idempotency keys so a retried request is
// answered with the first attempt's result instead of being run again.
package dedupe

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

const defaultMaxSize = 50000

// ErrAbandoned is returned to waiters when the first attempt for a key failed
// and released it.
var ErrAbandoned = errors.New("original request did not complete")

// Deduper records idempotency keys and the outcome stored against them.
type Deduper[V any] interface {
	// Claim atomically checks whether key was seen and records it if not.
	// It returns the key's claim and true if the key was already claimed.
	// The first claimant must call Complete or Unrecord.
	Claim(ctx context.Context, key string) (*Claim[V], bool)

	// Complete stores the outcome for key and wakes its waiters.
	Complete(ctx context.Context, key string, v V)

	// Unrecord forgets key so it can be retried, failing current waiters
	// with ErrAbandoned.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// Claim is the record of one key. Duplicates wait on it.
type Claim[V any] struct {
	done  chan struct{}
	value V
	err   error
	once  sync.Once
}

func newClaim[V any]() *Claim[V] { return &Claim[V]{done: make(chan struct{})} }

func (c *Claim[V]) settle(v V, err error) {
	c.once.Do(func() {
		c.value, c.err = v, err
		close(c.done)
	})
}

func (c *Claim[V]) settled() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the first attempt settles or ctx is done.
func (c *Claim[V]) Wait(ctx context.Context) (V, error) {
	select {
	case <-c.done:
		return c.value, c.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}

type entry[V any] struct {
	key   string
	claim *Claim[V]
}

// inMemoryDeduper keeps at most maxSize keys and evicts the oldest first.
// maxSize <= 0 keeps every key.
type inMemoryDeduper[V any] struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front is newest
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper[V any](opts ...Option) Deduper[V] {
	cfg := config{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &inMemoryDeduper[V]{
		seen:    make(map[string]*list.Element),
		order:   list.New(),
		maxSize: cfg.maxSize,
	}
}

// Claim records key if new.
func (d *inMemoryDeduper[V]) Claim(_ context.Context, key string) (*Claim[V], bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, exists := d.seen[key]; exists {
		return el.Value.(*entry[V]).claim, true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.evictOldest()
	}
	c := newClaim[V]()
	d.seen[key] = d.order.PushFront(&entry[V]{key: key, claim: c})
	d.size.Add(1)
	return c, false
}

// Complete stores v as the outcome for key.
func (d *inMemoryDeduper[V]) Complete(_ context.Context, key string, v V) {
	d.mu.Lock()
	el, exists := d.seen[key]
	d.mu.Unlock()
	if exists {
		el.Value.(*entry[V]).claim.settle(v, nil)
	}
}

// Unrecord forgets key.
func (d *inMemoryDeduper[V]) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	el, exists := d.seen[key]
	if exists {
		d.order.Remove(el)
		delete(d.seen, key)
		d.size.Add(-1)
	}
	d.mu.Unlock()

	if exists {
		var zero V
		el.Value.(*entry[V]).claim.settle(zero, ErrAbandoned)
	}
}

// evictOldest drops the oldest settled key. Keys still in flight are never
// evicted, so the map may briefly exceed maxSize. Must be called with d.mu held.
func (d *inMemoryDeduper[V]) evictOldest() {
	for el := d.order.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry[V])
		if !e.claim.settled() {
			continue
		}
		d.order.Remove(el)
		delete(d.seen, e.key)
		d.size.Add(-1)
		return
	}
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper[V]) Size() int64 {
	return d.size.Load()
}
