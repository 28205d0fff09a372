// Package cache 提供基于 Redis 的求解结果缓存
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/paiban/residency/internal/config"
	"github.com/paiban/residency/internal/metrics"
	"github.com/paiban/residency/pkg/logger"
	"github.com/paiban/residency/pkg/scheduler"
)

// DefaultPrefix 缓存键前缀
const DefaultPrefix = "residency:outcome:"

// Options 缓存选项
type Options struct {
	Prefix           string
	TTL              time.Duration // 0 表示不过期
	FailureThreshold uint32        // 连续失败多少次后熔断
	OpenTimeout      time.Duration // 熔断后多久进入半开状态
}

// DefaultOptions 返回默认选项
func DefaultOptions() Options {
	return Options{
		Prefix:           DefaultPrefix,
		TTL:              24 * time.Hour,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// RedisCache 实现 scheduler.Cache，Redis 不可用时熔断，求解照常进行
type RedisCache struct {
	client  *redis.Client
	opts    Options
	breaker *gobreaker.CircuitBreaker[[]byte]
}

var _ scheduler.Cache = (*RedisCache)(nil)

// NewClient 按配置连接 Redis
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("Redis连接测试失败: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr()).Msg("Redis连接成功")
	return client, nil
}

// New 创建缓存
func New(client *redis.Client, opts Options) *RedisCache {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = DefaultOptions().FailureThreshold
	}

	settings := gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		// 未命中不算失败
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("缓存熔断器状态变化")
		},
	}

	return &RedisCache{
		client:  client,
		opts:    opts,
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

// key 生成完整缓存键
func (c *RedisCache) key(k string) string {
	return c.opts.Prefix + k
}

// Get 读取缓存，未命中返回 nil, nil
func (c *RedisCache) Get(ctx context.Context, key string) (*scheduler.Outcome, error) {
	data, err := c.breaker.Execute(func() ([]byte, error) {
		return c.client.Get(ctx, c.key(key)).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		metrics.RecordCache(false)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取缓存失败: %w", err)
	}

	var outcome scheduler.Outcome
	if err := json.Unmarshal(data, &outcome); err != nil {
		return nil, fmt.Errorf("解析缓存失败: %w", err)
	}
	metrics.RecordCache(true)
	return &outcome, nil
}

// Set 写入缓存
func (c *RedisCache) Set(ctx context.Context, key string, outcome *scheduler.Outcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("序列化缓存失败: %w", err)
	}

	_, err = c.breaker.Execute(func() ([]byte, error) {
		return nil, c.client.Set(ctx, c.key(key), data, c.opts.TTL).Err()
	})
	if err != nil {
		return fmt.Errorf("写入缓存失败: %w", err)
	}
	return nil
}

// State 返回熔断器状态
func (c *RedisCache) State() gobreaker.State {
	return c.breaker.State()
}
