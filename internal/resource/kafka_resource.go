package resource

import (
	"context"
	"time"

	"video-assembly-service/pkg/config"
	"video-assembly-service/pkg/kafka"
	"video-assembly-service/pkg/logger"
)

// KafkaResource 请求消费与事件发布共用的 kafka 客户端
type KafkaResource struct {
	cfg    config.KafkaConfig
	client *kafka.Client
}

func NewKafkaResource(cfg config.KafkaConfig) *KafkaResource {
	return &KafkaResource{cfg: cfg}
}

func (r *KafkaResource) Name() string { return "kafka" }

func (r *KafkaResource) MustOpen() {
	r.client = kafka.New(r.cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := r.client.EnsureTopics(ctx, r.cfg.Topics.AssembleRequests, r.cfg.Topics.JobEvents); err != nil {
		// topic 也可能由运维预先创建，这里只告警
		logger.Warnf("ensure kafka topics failed error=%v", err)
	}
}

func (r *KafkaResource) Close() {
	if r.client == nil {
		return
	}
	if err := r.client.Close(); err != nil {
		logger.Warnf("close kafka client error=%v", err)
	}
}

func (r *KafkaResource) Client() *kafka.Client { return r.client }
