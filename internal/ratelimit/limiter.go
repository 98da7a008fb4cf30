// Package ratelimit provides Redis-backed rate limiting using the
// INCR + EXPIRE window algorithm, used to throttle per-connection intents
// (chat, seek, report) on the relay server.
package ratelimit

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule defines a rate limiting policy: the Redis key prefix, maximum number
// of requests allowed in the window, and the window duration.
type Rule struct {
	Key    string
	Limit  int
	Window time.Duration
}

// Standard rules for relay intents.
var (
	// RuleChat allows 20 chat messages per 10 seconds per connection.
	RuleChat = Rule{Key: "rl:chat:", Limit: 20, Window: 10 * time.Second}

	// RuleSeek allows 10 seek-partner requests per minute per connection.
	RuleSeek = Rule{Key: "rl:seek:", Limit: 10, Window: 1 * time.Minute}

	// RuleReport allows 3 report submissions per minute per connection.
	RuleReport = Rule{Key: "rl:report:", Limit: 3, Window: 1 * time.Minute}
)

// Limiter performs rate limiting checks against Redis.
type Limiter struct {
	client *redis.Client
}

// NewLimiter creates a Limiter backed by the given Redis client.
func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// Allow checks whether the given identifier is within the rate limit defined
// by rule. It increments the counter and sets the expiry on first access.
//
// Returns true if the request is allowed, false if rate limited. On Redis
// errors the method fails open so that a Redis outage does not block
// legitimate traffic.
func (l *Limiter) Allow(ctx context.Context, identifier string, rule Rule) (bool, error) {
	key := rule.Key + identifier

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		log.Printf("ratelimit: redis INCR error key=%s: %v (failing open)", key, err)
		return true, err
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, rule.Window).Err(); err != nil {
			log.Printf("ratelimit: redis EXPIRE error key=%s: %v (failing open)", key, err)
			// The key exists with no TTL and would block the identifier
			// forever; best effort delete.
			l.client.Del(ctx, key)
			return true, err
		}
	}

	return int(count) <= rule.Limit, nil
}
