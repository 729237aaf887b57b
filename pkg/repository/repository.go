package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/vaishnaviprints/printlogic/pkg/utils"
)

type IDExtractor[T any] func(T) string

type Repository[T any] interface {
	Load(ctx context.Context, id string) (T, error)
	Save(ctx context.Context, entity T) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]T, error)
}

type RepositoryType string

const (
	RepositoryMemory RepositoryType = "memory"
	RepositoryRedis  RepositoryType = "cache"
)

// NewRepository builds a keyed store for T; prefix namespaces the keys so
// several entity kinds can share one redis instance.
func NewRepository[T any](ctx context.Context, repoType RepositoryType, prefix string, idExtractor IDExtractor[T]) (Repository[T], error) {
	switch repoType {
	case RepositoryMemory:
		return NewMemoryRepo(idExtractor), nil
	case RepositoryRedis:
		redisConf := RedisConfig{
			Address:  utils.GetEnv("REDIS_CLIENT_ADDRESS", "redis:6379"),
			Password: utils.GetEnv("REDIS_CLIENT_PASSWORD", ""),
			DB:       0,
		}
		ttl, _ := time.ParseDuration(utils.GetEnv("REDIS_CLIENT_TTL", "0"))
		return NewRedisCache(ctx, redisConf, prefix, ttl, idExtractor)
	default:
		return nil, fmt.Errorf("Failed to create Repository Handler: Unsupported Repository Type")
	}
}
