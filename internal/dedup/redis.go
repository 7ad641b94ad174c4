package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const defaultKeyPrefix = "engagement:dedup:"

// RedisCache 基于 SET NX EX 实现的分布式去重缓存，多实例共享。
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisClient 解析 Redis URL 并测试连接。
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second
	opts.PoolTimeout = 2 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// NewRedisCache 包装已有客户端。prefix 为空时使用默认前缀。
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisCache{client: client, prefix: prefix}
}

// ShouldRecord 以原子 SETNX 标记键，键已存在时返回 false。
func (c *RedisCache) ShouldRecord(ctx context.Context, key string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}

	ok, err := c.client.SetNX(ctx, c.prefix+key, 1, window).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// Ping 检查 Redis 连通性。
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close 关闭底层连接。
func (c *RedisCache) Close() error {
	return c.client.Close()
}
