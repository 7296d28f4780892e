// Package cache provides a small generic in-process cache with TTL and an
// explicit invalidation hook, plus a background subscriber loop that
// invalidates entries on a pub/sub signal from peer instances.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kairos-dev/kairos/internal/kv"
)

// Cache is a generic, size-bounded, TTL-expiring map. Eviction is a simple
// bound-then-evict-oldest policy rather than a full LRU list, which is
// sufficient at the scale of a single process's working set of recently
// touched steps.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[K]entry[V]
	order    []K // insertion order, oldest first
}

type entry[V any] struct {
	value   V
	expires time.Time
}

// New returns a Cache bounded to capacity entries, each expiring after ttl
// (ttl <= 0 means no expiry).
func New[K comparable, V any](capacity int, ttl time.Duration) *Cache[K, V] {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Cache[K, V]{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[K]entry[V]),
	}
}

// Get returns the cached value for key, or false if absent or expired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(c.entries, key)
		for i, k := range c.order {
			if k == key {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, evicting the oldest entry if at capacity.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if c.ttl > 0 {
		expires = time.Now().Add(c.ttl)
	}

	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = entry[V]{value: value, expires: expires}
}

// Invalidate removes a single key.
func (c *Cache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Clear drops every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]entry[V])
	c.order = nil
}

// InvalidationChannel is the KV pub/sub channel peer instances publish a
// step uuid to after an update/delete/mint so every process's in-memory
// cache stays coherent.
const InvalidationChannel = "kairos:cache:invalidate"

// Subscriber runs a background loop that invalidates string-keyed caches
// when a peer publishes an invalidation message.
type Subscriber struct {
	store  kv.Store
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSubscriber creates a Subscriber over store. Call Start to begin
// listening; Stop to shut the background loop down.
func NewSubscriber(store kv.Store) *Subscriber {
	return &Subscriber{store: store, logger: slog.Default()}
}

// Start launches the subscription loop, invoking onInvalidate(key) for
// every message received on InvalidationChannel. Safe to call once; a
// second call is a no-op.
func (s *Subscriber) Start(ctx context.Context, onInvalidate func(string)) error {
	if s.cancel != nil {
		return nil
	}
	msgs, unsubscribe, err := s.store.Subscribe(ctx, InvalidationChannel)
	if err != nil {
		return err
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case key, ok := <-msgs:
				if !ok {
					return
				}
				onInvalidate(key)
			}
		}
	}()

	s.logger.Info("cache invalidation subscriber started", "channel", InvalidationChannel)
	return nil
}

// Stop signals the subscription loop to exit and waits for it to finish.
func (s *Subscriber) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Publish announces that key (a step uuid) has changed so peer instances
// invalidate their local caches.
func Publish(ctx context.Context, store kv.Store, key string) error {
	return store.Publish(ctx, InvalidationChannel, key)
}
