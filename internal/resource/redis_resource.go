package resource

import (
	"video-assembly-service/pkg/config"
	"video-assembly-service/pkg/redisclient"
)

// RedisResource manages the lifecycle of the shared Redis client.
type RedisResource struct {
	cfg    config.RedisConfig
	client *redisclient.Client
}

func NewRedisResource(cfg config.RedisConfig) *RedisResource {
	return &RedisResource{cfg: cfg}
}

// Name identifies the resource.
func (r *RedisResource) Name() string {
	return "redis"
}

// MustOpen establishes the Redis connection.
func (r *RedisResource) MustOpen() {
	if r.client != nil {
		return
	}
	client, err := redisclient.New(r.cfg)
	if err != nil {
		panic("failed to connect redis: " + err.Error())
	}
	r.client = client
}

// Close tidy ups the underlying Redis client.
func (r *RedisResource) Close() {
	if r.client != nil {
		_ = r.client.Close()
		r.client = nil
	}
}

// Client exposes the wrapped client.
func (r *RedisResource) Client() *redisclient.Client {
	return r.client
}
