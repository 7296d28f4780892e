package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeSetGetDel(t *testing.T) {
	ctx := context.Background()
	f := NewFake()

	require.NoError(t, f.Set(ctx, "k", "v", 0))
	v, err := f.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	require.NoError(t, f.Del(ctx, "k"))
	_, err = f.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFakeExpiry(t *testing.T) {
	ctx := context.Background()
	f := NewFake()

	require.NoError(t, f.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	_, err := f.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFakeIncr(t *testing.T) {
	ctx := context.Background()
	f := NewFake()

	n, err := f.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = f.Incr(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestFakePubSub(t *testing.T) {
	ctx := context.Background()
	f := NewFake()

	ch, cancel, err := f.Subscribe(ctx, "invalidate")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, f.Publish(ctx, "invalidate", "step-1"))

	select {
	case msg := <-ch:
		assert.Equal(t, "step-1", msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pub/sub message")
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	f := NewFake()

	type payload struct {
		Name string `json:"name"`
	}

	require.NoError(t, SetJSON(ctx, f, "p", payload{Name: "step"}, 0))
	got, err := GetJSON[payload](ctx, f, "p")
	require.NoError(t, err)
	assert.Equal(t, "step", got.Name)
}
