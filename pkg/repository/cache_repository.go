package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	svcerror "github.com/vaishnaviprints/printlogic/pkg/error"
)

// RedisCache keeps entities as JSON values under prefix-qualified keys.
type RedisCache[T any] struct {
	Client *redis.Client
	Prefix string
	IDFn   IDExtractor[T]
	TTL    time.Duration
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

func NewRedisCache[T any](ctx context.Context, redisConf RedisConfig, prefix string, ttl time.Duration, idFn IDExtractor[T]) (RedisCache[T], error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisConf.Address,
		Password: redisConf.Password,
		DB:       redisConf.DB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return RedisCache[T]{}, fmt.Errorf("Error connecting to Redis Client: %w", err)
	}

	return RedisCache[T]{
		Client: client,
		Prefix: prefix,
		TTL:    ttl,
		IDFn:   idFn,
	}, nil
}

func (r RedisCache[T]) key(id string) string {
	return r.Prefix + ":" + id
}

func (r RedisCache[T]) Load(ctx context.Context, id string) (T, error) {
	var zero, value T
	raw, err := r.Client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, svcerror.New(
			svcerror.ErrNotFound,
			svcerror.WithOp("Repository.Cache.Load"),
			svcerror.WithMsg(fmt.Sprintf("resource with id %s not found", id)),
		)
	}
	if err != nil {
		return zero, fmt.Errorf("Error loading resource: %w", err)
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return zero, fmt.Errorf("Error decoding resource: %w", err)
	}
	return value, nil
}

func (r RedisCache[T]) Save(ctx context.Context, entity T) error {
	raw, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("Error encoding resource: %w", err)
	}
	if err := r.Client.Set(ctx, r.key(r.IDFn(entity)), raw, r.TTL).Err(); err != nil {
		return fmt.Errorf("Error saving resource: %w", err)
	}
	return nil
}

func (r RedisCache[T]) Delete(ctx context.Context, id string) error {
	if _, err := r.Client.Del(ctx, r.key(id)).Result(); err != nil {
		return fmt.Errorf("Failed to delete resource with key %s: %w", id, err)
	}
	return nil
}

func (r RedisCache[T]) List(ctx context.Context) ([]T, error) {
	var (
		items  []T
		cursor uint64
	)
	for {
		keys, next, err := r.Client.Scan(ctx, cursor, r.Prefix+":*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("Error listing resources: %w", err)
		}
		for _, key := range keys {
			raw, err := r.Client.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				// expired between scan and get
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("Error listing resources: %w", err)
			}
			var value T
			if err := json.Unmarshal(raw, &value); err != nil {
				return nil, fmt.Errorf("Error decoding resource: %w", err)
			}
			items = append(items, value)
		}
		cursor = next
		if cursor == 0 {
			return items, nil
		}
	}
}
