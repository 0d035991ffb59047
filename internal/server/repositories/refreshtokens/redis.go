package refreshtokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "authkeeper:refresh:"
	maxCreateAttempts  = 3
)

type redisRecord struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisRepository keeps one key per record. Expiry is delegated to Redis key
// TTLs, and DEL's reply count decides rotation races.
type RedisRepository struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisRepository(rdb redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisRepository{rdb: rdb, prefix: prefix, now: time.Now}
}

func (r *RedisRepository) key(id string) string { return r.prefix + id }

func (r *RedisRepository) Create(ctx context.Context, userID string, ttl time.Duration) (*models.RefreshToken, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("redis: ttl must be positive")
	}
	now := r.now()
	rec := redisRecord{UserID: userID, ExpiresAt: now.Add(ttl), CreatedAt: now}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("redis: encode record: %w", err)
	}

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		id := uuid.NewString()
		_, err := r.rdb.SetArgs(ctx, r.key(id), payload, redis.SetArgs{Mode: "NX", TTL: ttl}).Result()
		if errors.Is(err, redis.Nil) {
			// id collision, draw another
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis error: %w", err)
		}
		return &models.RefreshToken{ID: id, UserID: userID, ExpiresAt: rec.ExpiresAt, CreatedAt: rec.CreatedAt}, nil
	}
	return nil, fmt.Errorf("redis: could not allocate a unique record id")
}

func (r *RedisRepository) FindByID(ctx context.Context, id string) (*models.RefreshToken, error) {
	raw, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}
	var rec redisRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("redis: decode record %s: %w", id, err)
	}
	return &models.RefreshToken{ID: id, UserID: rec.UserID, ExpiresAt: rec.ExpiresAt, CreatedAt: rec.CreatedAt}, nil
}

func (r *RedisRepository) Delete(ctx context.Context, id string) (bool, error) {
	n, err := r.rdb.Del(ctx, r.key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return n > 0, nil
}

// DeleteExpired is a no-op: Redis evicts expired keys on its own.
func (r *RedisRepository) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}
