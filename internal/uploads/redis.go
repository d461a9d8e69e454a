package uploads

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "childgen:upload:"

// RedisStore keeps each image in a Redis hash, optionally expiring it.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStore wraps client. A zero ttl keeps images until they are replaced.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, key Key, img Image) error {
	rk, err := redisKey(key)
	if err != nil {
		return err
	}
	img = prepare(img)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, rk)
		pipe.HSet(ctx, rk,
			"data", img.Data,
			"mime_type", img.MIMEType,
			"filename", img.Filename,
			"stored_at", img.StoredAt.Format(time.RFC3339Nano),
		)
		if s.ttl > 0 {
			pipe.Expire(ctx, rk, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("uploads: redis put: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key Key) (*Image, error) {
	rk, err := redisKey(key)
	if err != nil {
		return nil, err
	}
	fields, err := s.client.HGetAll(ctx, rk).Result()
	if err != nil {
		return nil, fmt.Errorf("uploads: redis get: %w", err)
	}
	data, ok := fields["data"]
	if !ok {
		return nil, ErrNotFound
	}
	img := &Image{
		Data:     []byte(data),
		MIMEType: fields["mime_type"],
		Filename: fields["filename"],
	}
	if ts, err := time.Parse(time.RFC3339Nano, fields["stored_at"]); err == nil {
		img.StoredAt = ts
	}
	return img, nil
}

func redisKey(key Key) (string, error) {
	p, err := key.Path()
	if err != nil {
		return "", err
	}
	return redisKeyPrefix + p, nil
}
