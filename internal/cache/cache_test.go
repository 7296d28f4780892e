package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kairos-dev/kairos/internal/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetSetInvalidate(t *testing.T) {
	c := New[string, int](10, 0)
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.Invalidate("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestCacheEvictsOldestAtCapacity(t *testing.T) {
	c := New[string, int](2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	c := New[string, int](10, 10*time.Millisecond)
	c.Set("a", 1)
	time.Sleep(30 * time.Millisecond)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestSubscriberInvalidatesOnPublish(t *testing.T) {
	store := kv.NewFake()
	sub := NewSubscriber(store)

	var mu sync.Mutex
	var invalidated []string
	done := make(chan struct{}, 1)

	err := sub.Start(context.Background(), func(key string) {
		mu.Lock()
		invalidated = append(invalidated, key)
		mu.Unlock()
		done <- struct{}{}
	})
	require.NoError(t, err)
	defer sub.Stop()

	require.NoError(t, Publish(context.Background(), store, "step-1"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for invalidation callback")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"step-1"}, invalidated)
}
