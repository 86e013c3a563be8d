package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sentinel-zero/sentinel/store"
)

// RedisHistoryStore implements store.HistoryStore using one Redis list per
// session.
type RedisHistoryStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOptions configuration for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "sentinel:"
	TTL      time.Duration // Expiration for idle sessions, default 0 (no expiration)
}

// NewRedisHistoryStore creates a new Redis history store
func NewRedisHistoryStore(opts RedisOptions) *RedisHistoryStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "sentinel:"
	}

	return &RedisHistoryStore{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
	}
}

func (s *RedisHistoryStore) sessionKey(id string) string {
	return fmt.Sprintf("%ssession:%s:turns", s.prefix, id)
}

// Append pushes the turn and refreshes the session's expiry.
func (s *RedisHistoryStore) Append(ctx context.Context, turn *store.Turn) error {
	if err := store.Prepare(turn); err != nil {
		return err
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	key := s.sessionKey(turn.SessionID)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append turn to redis: %w", err)
	}
	return nil
}

// List returns the session's turns oldest first.
func (s *RedisHistoryStore) List(ctx context.Context, sessionID string) ([]*store.Turn, error) {
	items, err := s.client.LRange(ctx, s.sessionKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list turns for session %s: %w", sessionID, err)
	}

	turns := make([]*store.Turn, 0, len(items))
	for _, item := range items {
		var turn store.Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn: %w", err)
		}
		turns = append(turns, &turn)
	}
	return turns, nil
}

// Clear deletes the session list.
func (s *RedisHistoryStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisHistoryStore) Close() error {
	return s.client.Close()
}
