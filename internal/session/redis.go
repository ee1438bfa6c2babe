package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "valetgate:session:"
	chunksKeyPrefix  = "valetgate:chunks:"
)

// RedisConfig configures the Redis-backed Store.
type RedisConfig struct {
	Addr     string
	DB       int
	Password string

	// TTL bounds how long an abandoned session lingers. Zero means no expiry.
	TTL time.Duration
}

// Redis is a Store backed by a Redis instance. The chunk-result list relies
// on RPUSH, which appends atomically on the server side, so concurrent chunk
// uploads never lose entries regardless of how many gateway processes share
// the store.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ Store = (*Redis)(nil)

// NewRedis creates a Redis-backed Store.
func NewRedis(cfg RedisConfig) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})
	return &Redis{rdb: rdb, ttl: cfg.TTL}
}

// Ping verifies connectivity. Used for readiness checks at startup.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) SetSessionID(ctx context.Context, path string, sessionID string) error {
	if err := r.rdb.Set(ctx, sessionKeyPrefix+path, sessionID, r.ttl).Err(); err != nil {
		return fmt.Errorf("set session id: %w", err)
	}
	return nil
}

func (r *Redis) SessionID(ctx context.Context, path string) (string, error) {
	id, err := r.rdb.Get(ctx, sessionKeyPrefix+path).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get session id: %w", err)
	}
	return id, nil
}

func (r *Redis) AppendChunk(ctx context.Context, sessionID string, result ChunkResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode chunk result: %w", err)
	}

	key := chunksKeyPrefix + sessionID
	if err := r.rdb.RPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("append chunk result: %w", err)
	}
	if r.ttl > 0 {
		// Refresh expiry so the list outlives neither the session mapping
		// nor an in-progress upload.
		_ = r.rdb.Expire(ctx, key, r.ttl).Err()
	}
	return nil
}

func (r *Redis) ChunkResults(ctx context.Context, sessionID string) ([]ChunkResult, error) {
	entries, err := r.rdb.LRange(ctx, chunksKeyPrefix+sessionID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list chunk results: %w", err)
	}

	results := make([]ChunkResult, 0, len(entries))
	for _, e := range entries {
		var cr ChunkResult
		if err := json.Unmarshal([]byte(e), &cr); err != nil {
			return nil, fmt.Errorf("decode chunk result: %w", err)
		}
		results = append(results, cr)
	}
	return results, nil
}

func (r *Redis) Clear(ctx context.Context, path string, sessionID string) error {
	current, err := r.rdb.Get(ctx, sessionKeyPrefix+path).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("get session id: %w", err)
	}
	if current == sessionID {
		if err := r.rdb.Del(ctx, sessionKeyPrefix+path).Err(); err != nil {
			return fmt.Errorf("clear session mapping: %w", err)
		}
	}
	if err := r.rdb.Del(ctx, chunksKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("clear chunk results: %w", err)
	}
	return nil
}
