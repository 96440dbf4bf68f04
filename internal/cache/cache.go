package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// BlacklistCache — минимальный контракт кэша отпечатков из blacklist.
//
// Кэш только ускоряет отрицательный ответ на повторный обмен токена:
// источником истины всегда остаётся уникальный индекс в PostgreSQL.
// Ошибки кэша не должны прерывать ротацию — вызывающая сторона
// обязана деградировать до запроса в БД.
type BlacklistCache interface {
	// Seen сообщает, встречался ли отпечаток в кэше.
	Seen(ctx context.Context, fingerprint string) (bool, error)
	// MarkBlacklisted запоминает отпечаток с TTL (обычно exp-now токена).
	MarkBlacklisted(ctx context.Context, fingerprint string, ttl time.Duration) error
	// Close закрывает клиент Redis.
	Close() error
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "auth:bl:".
func NewRedisCache(redisURL, prefix string) (BlacklistCache, error) {
	if prefix == "" {
		prefix = "auth:bl:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &redisCache{rdb: rdb, prefix: prefix}, nil
}

func (c *redisCache) key(fingerprint string) string { return c.prefix + fingerprint }

func (c *redisCache) Seen(ctx context.Context, fingerprint string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.key(fingerprint)).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (c *redisCache) MarkBlacklisted(ctx context.Context, fingerprint string, ttl time.Duration) error {
	if ttl <= 0 {
		// Токен уже истёк — кэшировать нечего.
		return nil
	}

	return c.rdb.Set(ctx, c.key(fingerprint), "1", ttl).Err()
}

func (c *redisCache) Close() error { return c.rdb.Close() }
