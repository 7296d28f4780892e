// Package proofstore persists per-step proof-of-work state in the KV
// collaborator: the currently issued nonce, the last recorded proof, its
// canonical hash, and a retry counter, all with TTL.
package proofstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kairos-dev/kairos/internal/kv"
	"github.com/kairos-dev/kairos/internal/proof"
)

// ErrNoNonce is returned by GetNonce/ConsumeNonce when no nonce has been
// issued for a step (or it was already consumed).
var ErrNoNonce = errors.New("proofstore: no nonce issued for step")

// ErrNoResult is returned by GetResult when no proof has been recorded yet.
var ErrNoResult = errors.New("proofstore: no proof recorded for step")

// Store wraps a kv.Store with the key layout and TTL policy used for
// per-step nonce, proof result, hash, and retry-count tracking.
type Store struct {
	kv         kv.Store
	ttlSeconds int64
}

// New builds a Store. ttlSeconds is the TTL applied to every key, refreshed
// on each write.
func New(store kv.Store, ttlSeconds int64) *Store {
	return &Store{kv: store, ttlSeconds: ttlSeconds}
}

func nonceKey(id string) string     { return "nonce:" + id }
func resultKey(id string) string    { return "proof:" + id }
func hashKey(id string) string      { return "proof_hash:" + id }
func retryKey(id string) string     { return "retry:" + id }

// SetNonce issues and stores a fresh random nonce for step id, returning it.
func (s *Store) SetNonce(ctx context.Context, id string) (string, error) {
	nonce, err := newNonce()
	if err != nil {
		return "", err
	}
	if err := s.kv.Set(ctx, nonceKey(id), nonce, ttl(s.ttlSeconds)); err != nil {
		return "", err
	}
	return nonce, nil
}

// GetNonce returns the currently issued nonce for id without consuming it.
func (s *Store) GetNonce(ctx context.Context, id string) (string, error) {
	v, err := s.kv.Get(ctx, nonceKey(id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return "", ErrNoNonce
		}
		return "", err
	}
	return v, nil
}

// ConsumeNonce returns the nonce for id and deletes it, so a challenge's
// nonce can only ever be redeemed once.
func (s *Store) ConsumeNonce(ctx context.Context, id string) (string, error) {
	nonce, err := s.GetNonce(ctx, id)
	if err != nil {
		return "", err
	}
	if err := s.kv.Del(ctx, nonceKey(id)); err != nil {
		return "", err
	}
	return nonce, nil
}

// SaveResult persists a step's latest proof record.
func (s *Store) SaveResult(ctx context.Context, id string, record proof.Record) error {
	return kv.SetJSON(ctx, s.kv, resultKey(id), record, ttl(s.ttlSeconds))
}

// GetResult returns the last recorded proof for id.
func (s *Store) GetResult(ctx context.Context, id string) (proof.Record, error) {
	record, err := kv.GetJSON[proof.Record](ctx, s.kv, resultKey(id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return proof.Record{}, ErrNoResult
		}
		return proof.Record{}, err
	}
	return record, nil
}

// SetProofHash persists the canonical hash produced for id's latest proof.
func (s *Store) SetProofHash(ctx context.Context, id, hash string) error {
	return s.kv.Set(ctx, hashKey(id), hash, ttl(s.ttlSeconds))
}

// GetProofHash returns the stored hash for id, or proof.GenesisHash if none
// has been recorded yet (the predecessor hash for a fresh step 1).
func (s *Store) GetProofHash(ctx context.Context, id string) (string, error) {
	v, err := s.kv.Get(ctx, hashKey(id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return proof.GenesisHash, nil
		}
		return "", err
	}
	return v, nil
}

// IncrementRetry bumps id's retry counter and returns the new value.
func (s *Store) IncrementRetry(ctx context.Context, id string) (int64, error) {
	n, err := s.kv.Incr(ctx, retryKey(id))
	if err != nil {
		return 0, err
	}
	if err := s.kv.Expire(ctx, retryKey(id), ttl(s.ttlSeconds)); err != nil {
		return 0, err
	}
	return n, nil
}

// ResetRetry sets id's retry counter back to 0.
func (s *Store) ResetRetry(ctx context.Context, id string) error {
	return s.kv.Set(ctx, retryKey(id), "0", ttl(s.ttlSeconds))
}

// GetRetry returns id's current retry count (0 if never incremented).
func (s *Store) GetRetry(ctx context.Context, id string) (int64, error) {
	v, err := s.kv.Get(ctx, retryKey(id))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("proofstore: corrupt retry counter for %s: %w", id, err)
	}
	return n, nil
}

func ttl(seconds int64) time.Duration {
	return time.Duration(seconds) * time.Second
}

func newNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("proofstore: generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
