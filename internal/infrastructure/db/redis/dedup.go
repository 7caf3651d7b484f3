package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Stripe retries failed deliveries for up to three days.
const dedupTTL = 72 * time.Hour

// DedupChecker provides webhook idempotency checks backed by Redis.
// Key format: dedup:billing:<provider>:<event_id>
type DedupChecker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDedupChecker creates a DedupChecker wrapping the given Redis client.
func NewDedupChecker(client *redis.Client) *DedupChecker {
	return &DedupChecker{client: client, ttl: dedupTTL}
}

// IsDuplicate reports whether this provider event has already been handled.
func (d *DedupChecker) IsDuplicate(ctx context.Context, provider, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, key(provider, eventID)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	return n > 0, nil
}

// Mark records that this event has been handled (expires after the TTL).
func (d *DedupChecker) Mark(ctx context.Context, provider, eventID string) error {
	return d.client.Set(ctx, key(provider, eventID), "1", d.ttl).Err()
}

func key(provider, eventID string) string {
	return fmt.Sprintf("dedup:billing:%s:%s", provider, eventID)
}
