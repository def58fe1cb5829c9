// services/lock_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DrawLockLease bounds how long a crashed draw can hold its lock before
// Redis expires the key. Normal completion releases explicitly; the
// lease is only the safety net.
const DrawLockLease = 30 * time.Second

// DrawLockService provides per-giveaway mutual exclusion backed by
// Redis. It is the sole concurrency-control primitive across service
// instances: at most one close-and-select per giveaway can be in flight.
type DrawLockService struct {
	Client *redis.Client
}

func NewDrawLockService(client *redis.Client) *DrawLockService {
	return &DrawLockService{Client: client}
}

func drawLockKey(giveawayID string) string {
	return fmt.Sprintf("draw:lock:%s", giveawayID)
}

// Acquire attempts an atomic check-and-set of the lock key. It never
// blocks: false means another draw holds the lock and the caller should
// report "already in progress" rather than queue.
func (s *DrawLockService) Acquire(ctx context.Context, giveawayID string, lease time.Duration) (bool, error) {
	if lease <= 0 {
		lease = DrawLockLease
	}
	ok, err := s.Client.SetNX(ctx, drawLockKey(giveawayID), "1", lease).Result()
	if err != nil {
		return false, fmt.Errorf("draw lock acquire for giveaway %s: %w", giveawayID, err)
	}
	return ok, nil
}

// Release deletes the lock key. Releasing a lock that was never held or
// already expired is a no-op, not an error.
func (s *DrawLockService) Release(ctx context.Context, giveawayID string) error {
	if err := s.Client.Del(ctx, drawLockKey(giveawayID)).Err(); err != nil {
		return fmt.Errorf("draw lock release for giveaway %s: %w", giveawayID, err)
	}
	return nil
}

// IsLocked reports whether a live lock exists for the giveaway.
func (s *DrawLockService) IsLocked(ctx context.Context, giveawayID string) (bool, error) {
	n, err := s.Client.Exists(ctx, drawLockKey(giveawayID)).Result()
	if err != nil {
		return false, fmt.Errorf("draw lock check for giveaway %s: %w", giveawayID, err)
	}
	return n == 1, nil
}
