package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"video-assembly-service/pkg/config"
	"video-assembly-service/pkg/logger"
)

const dialTimeout = 10 * time.Second

// Client 共享 broker 配置；writer 按 topic 复用，reader 每个消费者独立
type Client struct {
	brokers  []string
	clientID string
	dialer   *kafka.Dialer

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

func New(cfg config.KafkaConfig) *Client {
	logger.Infof("kafka client created brokers=%v client_id=%s", cfg.BootstrapServers, cfg.ClientID)
	return &Client{
		brokers:  cfg.BootstrapServers,
		clientID: cfg.ClientID,
		dialer:   &kafka.Dialer{Timeout: dialTimeout, ClientID: cfg.ClientID},
		writers:  make(map[string]*kafka.Writer),
	}
}

func (c *Client) writer(topic string) *kafka.Writer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w, ok := c.writers[topic]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(c.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Transport:    &kafka.Transport{ClientID: c.clientID, DialTimeout: dialTimeout},
	}
	c.writers[topic] = w
	return w
}

// Produce 按 key 分区，同一任务的事件保持顺序
func (c *Client) Produce(ctx context.Context, topic string, key, value []byte) error {
	return c.writer(topic).WriteMessages(ctx, kafka.Message{
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: []kafka.Header{{Key: "content-type", Value: []byte("application/json")}},
	})
}

func (c *Client) Reader(topic, groupID string) *kafka.Reader {
	logger.Infof("kafka reader created topic=%s group=%s", topic, groupID)
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.brokers,
		GroupID:        groupID,
		Topic:          topic,
		Dialer:         c.dialer,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		CommitInterval: 0,
	})
}

// EnsureTopics 通过 controller 创建 topic，已存在的 topic 不算错误
func (c *Client) EnsureTopics(ctx context.Context, topics ...string) error {
	if len(c.brokers) == 0 || len(topics) == 0 {
		return nil
	}
	conn, err := c.dialer.DialContext(ctx, "tcp", c.brokers[0])
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	controller, err := conn.Controller()
	_ = conn.Close()
	if err != nil {
		return fmt.Errorf("lookup controller: %w", err)
	}

	cc, err := c.dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer cc.Close()

	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, t := range topics {
		if t != "" {
			configs = append(configs, kafka.TopicConfig{Topic: t, NumPartitions: 1, ReplicationFactor: 1})
		}
	}
	if err := cc.CreateTopics(configs...); err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return err
	}
	return nil
}

// Close 关闭所有 writer
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for topic, w := range c.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer %s: %w", topic, err))
		}
	}
	c.writers = make(map[string]*kafka.Writer)
	return errors.Join(errs...)
}
