// Package kv defines the narrow interface KAIROS uses for its key/value +
// pub/sub collaborator, with a
// go-redis-backed implementation and an in-memory fake for tests.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get when a key does not exist (or has expired).
var ErrNotFound = errors.New("kv: key not found")

// Store is the narrow KV collaborator interface: get/set/delete/incr with
// TTL, plus pub/sub for cache invalidation.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Publish(ctx context.Context, channel, message string) error
	Subscribe(ctx context.Context, channel string) (<-chan string, func(), error)
}

// SetJSON marshals v and stores it under key with the given TTL.
func SetJSON[T any](ctx context.Context, s Store, key string, v T, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: marshal %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data), ttl)
}

// GetJSON reads key and unmarshals it into a T. Returns ErrNotFound when
// the key is absent so callers can distinguish "no record" from a decode
// failure.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, error) {
	var zero T
	raw, err := s.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return zero, fmt.Errorf("kv: unmarshal %s: %w", key, err)
	}
	return v, nil
}
