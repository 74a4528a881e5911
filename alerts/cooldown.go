// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// CooldownStore decides whether a triggered alert may fire again.
// TryAcquire returns true when the alert is clear to fire and records
// the firing; it returns false while a previous firing is still inside
// its window.
type CooldownStore interface {
	TryAcquire(ctx context.Context, alertID string, window time.Duration) (bool, error)
}

// NoopCooldownStore always allows firing, preserving the original
// re-fire-every-sweep behavior. This is the default.
type NoopCooldownStore struct{}

// TryAcquire always returns true
func (NoopCooldownStore) TryAcquire(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}

// RedisCooldownStore keys cooldowns by alert ID with the alert window
// as TTL, so suppression survives restarts and is shared across
// replicas
type RedisCooldownStore struct {
	client *redis.Client
}

// NewRedisCooldownStore creates a Redis-backed cooldown store
func NewRedisCooldownStore(client *redis.Client) *RedisCooldownStore {
	return &RedisCooldownStore{client: client}
}

// TryAcquire atomically claims the cooldown slot via SETNX with TTL
func (s *RedisCooldownStore) TryAcquire(ctx context.Context, alertID string, window time.Duration) (bool, error) {
	key := fmt.Sprintf("alert_cooldown:%s", alertID)
	acquired, err := s.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), window).Result()
	if err != nil {
		// Fail open: a dead cooldown store must not silence alerts
		return true, fmt.Errorf("cooldown check failed: %w", err)
	}
	return acquired, nil
}

// MemoryCooldownStore is a process-local cooldown store for
// single-replica deployments and tests
type MemoryCooldownStore struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time
}

// NewMemoryCooldownStore creates an in-memory cooldown store
func NewMemoryCooldownStore() *MemoryCooldownStore {
	return &MemoryCooldownStore{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

// TryAcquire claims the slot unless an unexpired firing exists
func (s *MemoryCooldownStore) TryAcquire(_ context.Context, alertID string, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if until, ok := s.expires[alertID]; ok && now.Before(until) {
		return false, nil
	}
	s.expires[alertID] = now.Add(window)
	return true, nil
}
