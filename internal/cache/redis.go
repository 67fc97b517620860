package cache

import (
	"context"
	"fmt"
	"time"

	"example.com/swiftcheck/config"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// CheckedInCache is an advisory Redis-backed view of consumed tickets, used
// to short-circuit obviously duplicate scans before the pipeline runs. It is
// never authoritative: the store's RecordCheckIn makes the admission
// decision, and a cache miss or a stale entry only costs a store lookup.
//
// Each event's consumed tickets live in one Redis set, so replacing the
// event invalidates with a single DEL.
type CheckedInCache struct {
	client  *redis.Client
	enabled bool
}

// NewCheckedInCache connects to Redis, or returns a disabled no-op cache
// when redis.enabled is false.
func NewCheckedInCache(cfg config.RedisConfig) (*CheckedInCache, error) {
	if !cfg.Enabled {
		return &CheckedInCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return &CheckedInCache{
		client:  client,
		enabled: true,
	}, nil
}

// Enabled reports whether the cache is live.
func (c *CheckedInCache) Enabled() bool {
	return c != nil && c.enabled
}

// MarkCheckedIn records a consumed ticket. Best effort.
func (c *CheckedInCache) MarkCheckedIn(ctx context.Context, eventID, ticketNumber int64) error {
	if !c.Enabled() {
		return nil
	}
	err := c.client.SAdd(ctx, eventKey(eventID), ticketNumber).Err()
	return errors.Wrap(err, "failed to mark ticket in cache")
}

// IsCheckedIn reports whether the ticket is known consumed. A false answer
// may be stale and must not be used to admit.
func (c *CheckedInCache) IsCheckedIn(ctx context.Context, eventID, ticketNumber int64) (bool, error) {
	if !c.Enabled() {
		return false, errors.New("cache is disabled")
	}
	used, err := c.client.SIsMember(ctx, eventKey(eventID), ticketNumber).Result()
	if err != nil {
		return false, errors.Wrap(err, "failed to read ticket status from cache")
	}
	return used, nil
}

// Reset drops the consumed set for an event, called when the event is
// replaced.
func (c *CheckedInCache) Reset(ctx context.Context, eventID int64) error {
	if !c.Enabled() {
		return nil
	}
	err := c.client.Del(ctx, eventKey(eventID)).Err()
	return errors.Wrap(err, "failed to reset cache")
}

// Close closes the Redis connection
func (c *CheckedInCache) Close() error {
	if !c.Enabled() || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func eventKey(eventID int64) string {
	return fmt.Sprintf("checkins:%d", eventID)
}
