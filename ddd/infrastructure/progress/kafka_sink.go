package progress

import (
	"context"
	"encoding/json"

	"video-assembly-service/ddd/domain/entity"
	"video-assembly-service/ddd/domain/port"
)

// Producer 由 kafka.Client 实现
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

var _ port.StatusSink = (*KafkaEventSink)(nil)

// KafkaEventSink 只发布终态事件，消息 key 为 job id
type KafkaEventSink struct {
	producer Producer
	topic    string
}

func NewKafkaEventSink(producer Producer, topic string) *KafkaEventSink {
	return &KafkaEventSink{producer: producer, topic: topic}
}

func (s *KafkaEventSink) Name() string { return "kafka" }

func (s *KafkaEventSink) Publish(ctx context.Context, job *entity.AssemblyJob) error {
	if s.producer == nil || job == nil || !job.IsTerminal() {
		return nil
	}
	payload, err := json.Marshal(newJobEvent(job))
	if err != nil {
		return err
	}
	return s.producer.Produce(ctx, s.topic, []byte(job.ID), payload)
}
