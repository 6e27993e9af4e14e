package redisclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"video-assembly-service/pkg/config"
)

const (
	defaultDialTimeout = 5 * time.Second
	defaultIOTimeout   = 3 * time.Second
)

// Client go-redis 的薄封装：统一 key 前缀，提供状态镜像需要的读写
type Client struct {
	rdb    *redis.Client
	prefix string
}

// New 创建客户端并 PING 一次，连接失败直接返回错误
func New(cfg config.RedisConfig) (*Client, error) {
	opts := buildOptions(cfg)
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return &Client{rdb: rdb, prefix: cfg.KeyPrefix}, nil
}

func buildOptions(cfg config.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  orDefault(cfg.DialTimeout, defaultDialTimeout),
		ReadTimeout:  orDefault(cfg.ReadTimeout, defaultIOTimeout),
		WriteTimeout: orDefault(cfg.WriteTimeout, defaultIOTimeout),
	}
	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// Key 拼接带前缀的 key，例如 "video-assembly:job:<id>"
func (c *Client) Key(parts ...string) string {
	return JoinKey(c.prefix, parts...)
}

// Set ttl <= 0 时不过期
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Get key 不存在时返回 redis.Nil
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	return c.rdb.Get(ctx, key).Bytes()
}

func (c *Client) Publish(ctx context.Context, channel string, payload []byte) error {
	return c.rdb.Publish(ctx, channel, payload).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// JoinKey 用冒号连接，忽略空段
func JoinKey(prefix string, parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	for _, part := range append([]string{prefix}, parts...) {
		if part = strings.Trim(part, ":"); part != "" {
			all = append(all, part)
		}
	}
	return strings.Join(all, ":")
}

func orDefault(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}
