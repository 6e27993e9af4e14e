package progress

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"video-assembly-service/ddd/domain/entity"
	"video-assembly-service/ddd/domain/port"
)

// RedisWriter RedisStatusSink 依赖的最小 redis 能力，由 redisclient.Client 实现
type RedisWriter interface {
	Key(parts ...string) string
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Publish(ctx context.Context, channel string, payload []byte) error
}

var _ port.StatusSink = (*RedisStatusSink)(nil)

// RedisStatusSink 每次状态写入同步一份快照到 redis，并在任务频道上广播
type RedisStatusSink struct {
	client RedisWriter
	ttl    time.Duration
}

func NewRedisStatusSink(client RedisWriter, ttl time.Duration) *RedisStatusSink {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStatusSink{client: client, ttl: ttl}
}

func (s *RedisStatusSink) Name() string { return "redis" }

func (s *RedisStatusSink) Publish(ctx context.Context, job *entity.AssemblyJob) error {
	if s.client == nil || job == nil {
		return nil
	}
	payload, err := json.Marshal(newJobEvent(job))
	if err != nil {
		return err
	}
	setErr := s.client.Set(ctx, SnapshotKey(s.client, job.ID), payload, s.ttl)
	pubErr := s.client.Publish(ctx, EventChannel(s.client, job.ID), payload)
	return errors.Join(setErr, pubErr)
}

// SnapshotKey 任务快照 key：<prefix>:job:<id>
func SnapshotKey(c RedisWriter, jobID string) string {
	return c.Key("job", jobID)
}

// EventChannel 任务事件频道：<prefix>:job:<id>:events
func EventChannel(c RedisWriter, jobID string) string {
	return c.Key("job", jobID, "events")
}
