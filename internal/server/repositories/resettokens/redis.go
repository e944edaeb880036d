package resettokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/workflow/internal/common"
	"github.com/dmitrijs2005/workflow/internal/server/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "pwreset"

	// Keys outlive their deadline by this much so that an expired token is
	// still found, reported as expired and deleted, rather than silently
	// vanishing as "invalid".
	redisRetention = 24 * time.Hour
)

// RedisRepository keeps reset records in one hash per email:
// pwreset:<email> -> {token: json(record)}.
type RedisRepository struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisRepository(rdb redis.UniversalClient) *RedisRepository {
	return &RedisRepository{rdb: rdb, prefix: redisKeyPrefix}
}

func (r *RedisRepository) key(email string) string {
	return r.prefix + ":" + email
}

func (r *RedisRepository) Create(ctx context.Context, t *models.ResetToken) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode reset token: %w", err)
	}

	key := r.key(t.Email)
	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, t.Token, data)
		pipe.ExpireAt(ctx, key, t.ExpiresAt.Add(redisRetention))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}

	return nil
}

func (r *RedisRepository) Find(ctx context.Context, email, token string) (*models.ResetToken, error) {
	data, err := r.rdb.HGet(ctx, r.key(email), token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}

	t := &models.ResetToken{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("decode reset token: %w", err)
	}

	return t, nil
}

func (r *RedisRepository) Delete(ctx context.Context, t *models.ResetToken) error {
	if err := r.rdb.HDel(ctx, r.key(t.Email), t.Token).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) DeleteByEmail(ctx context.Context, email string) error {
	if err := r.rdb.Del(ctx, r.key(email)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

// DeleteExpired walks every reset hash and removes tokens past their
// deadline. Keys also carry a Redis TTL, so this only speeds things up.
func (r *RedisRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var removed int64

	iter := r.rdb.Scan(ctx, 0, r.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		entries, err := r.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return removed, fmt.Errorf("redis error: %w", err)
		}

		for field, raw := range entries {
			t := &models.ResetToken{}
			if err := json.Unmarshal([]byte(raw), t); err != nil || t.Expired(now) {
				n, err := r.rdb.HDel(ctx, key, field).Result()
				if err != nil {
					return removed, fmt.Errorf("redis error: %w", err)
				}
				removed += n
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis error: %w", err)
	}

	return removed, nil
}
