// Package flagged maintains per-identity report counters and flags backed by
// Redis. The moderator service increments a counter for each report filed
// against a labeled identity; past a threshold the identity is flagged for
// human review. Counters and flags expire on their own:
//
//	Key:   reports:<label>   (counter, TTL ReportsTTL)
//	Key:   flag:<label>      (value = reason, TTL FlagTTL)
package flagged

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// ReportsPrefix is the Redis key prefix for report counters.
	ReportsPrefix = "reports:"

	// FlagPrefix is the Redis key prefix for review flags.
	FlagPrefix = "flag:"

	// ReportsTTL is how long a report counter lives without new reports.
	ReportsTTL = 24 * time.Hour

	// FlagTTL is how long a review flag persists.
	FlagTTL = 7 * 24 * time.Hour

	// FlagThreshold is the number of reports within ReportsTTL that flags
	// an identity for review.
	FlagThreshold = 3
)

// Store manages report counters and flags in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a Store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// RecordReport increments the report counter for an identity label and
// returns the new count within the current window.
func (s *Store) RecordReport(ctx context.Context, label string) (int64, error) {
	key := ReportsPrefix + label

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		// First report in the window defines the window boundary.
		if err := s.client.Expire(ctx, key, ReportsTTL).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

// Flag marks an identity for review with the given reason.
func (s *Store) Flag(ctx context.Context, label, reason string) error {
	return s.client.Set(ctx, FlagPrefix+label, reason, FlagTTL).Err()
}

// IsFlagged checks whether an identity is currently flagged. Returns the
// flag reason when set.
func (s *Store) IsFlagged(ctx context.Context, label string) (bool, string, error) {
	reason, err := s.client.Get(ctx, FlagPrefix+label).Result()
	if errors.Is(err, redis.Nil) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return true, reason, nil
}
