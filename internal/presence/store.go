// Package presence mirrors connection lifecycle state into Redis for
// operational visibility (which server holds a connection, whether it is
// idle, waiting, or paired, and any attached identity label). The pairing
// engine never reads this state; all writes are best-effort.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix is the Redis key prefix for all presence hashes.
	KeyPrefix = "presence:"

	// TTL is the time-to-live for presence keys. Every status update
	// refreshes it; a crashed server's entries age out on their own.
	TTL = 1 * time.Hour
)

// Entry is a connection's presence state as stored in Redis.
type Entry struct {
	ID         string `redis:"id"`
	Status     string `redis:"status"` // idle | waiting | paired
	Identity   string `redis:"identity"`
	Server     string `redis:"server"`
	CreatedAt  int64  `redis:"created_at"`
	LastActive int64  `redis:"last_active"`
}

// Store manages presence entries in Redis.
type Store struct {
	client     *redis.Client
	serverName string
}

// NewStore connects to Redis and returns a presence store scoped to this
// server instance.
func NewStore(redisAddr, serverName string) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: redisAddr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("presence: redis connection failed: %w", err)
	}

	return &Store{client: client, serverName: serverName}, nil
}

// Create records a new connection with idle status.
func (s *Store) Create(ctx context.Context, connID, identity string) error {
	key := KeyPrefix + connID
	now := time.Now().Unix()

	entry := map[string]interface{}{
		"id":          connID,
		"status":      "idle",
		"identity":    identity,
		"server":      s.serverName,
		"created_at":  now,
		"last_active": now,
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, entry)
	pipe.Expire(ctx, key, TTL)
	_, err := pipe.Exec(ctx)
	return err
}

// SetStatus updates the connection's status and refreshes the TTL.
func (s *Store) SetStatus(ctx context.Context, connID, status string) error {
	key := KeyPrefix + connID
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "status", status, "last_active", time.Now().Unix())
	pipe.Expire(ctx, key, TTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Get retrieves a presence entry. Returns nil when not found.
func (s *Store) Get(ctx context.Context, connID string) (*Entry, error) {
	key := KeyPrefix + connID
	var entry Entry
	if err := s.client.HGetAll(ctx, key).Scan(&entry); err != nil {
		return nil, err
	}
	if entry.ID == "" {
		return nil, nil
	}
	return &entry, nil
}

// Delete removes a connection's presence entry.
func (s *Store) Delete(ctx context.Context, connID string) error {
	return s.client.Del(ctx, KeyPrefix+connID).Err()
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Client returns the underlying Redis client for use by other packages.
func (s *Store) Client() *redis.Client {
	return s.client
}
