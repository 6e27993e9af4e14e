package component

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	appsvc "video-assembly-service/ddd/application/app"
	"video-assembly-service/ddd/application/cqe"
	"video-assembly-service/pkg/logger"
	"video-assembly-service/pkg/task"
)

const readRetryDelay = time.Second

// MessageReader *kafka.Reader 的消费能力
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerOptions 消费者配置
type ConsumerOptions struct {
	Topic               string
	GroupID             string
	CommitOnDecodeError bool
}

var _ task.BackgroundTask = (*AssembleRequestConsumer)(nil)

// AssembleRequestConsumer 从 kafka 读取合成请求并交给 AssemblyApp
type AssembleRequestConsumer struct {
	app       appsvc.AssemblyApp
	newReader func() MessageReader
	opts      ConsumerOptions

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewAssembleRequestConsumer(app appsvc.AssemblyApp, newReader func() MessageReader, opts ConsumerOptions) *AssembleRequestConsumer {
	return &AssembleRequestConsumer{app: app, newReader: newReader, opts: opts}
}

func (c *AssembleRequestConsumer) Name() string { return "assembleRequestConsumer" }

func (c *AssembleRequestConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return nil
	}
	if c.app == nil || c.newReader == nil {
		return errors.New("assemble request consumer not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	reader := c.newReader()
	go c.loop(runCtx, reader)
	return nil
}

func (c *AssembleRequestConsumer) Stop() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (c *AssembleRequestConsumer) loop(ctx context.Context, reader MessageReader) {
	defer close(c.done)
	defer reader.Close()
	logger.Infof("Kafka consumer started topic=%s group=%s", c.opts.Topic, c.opts.GroupID)
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				logger.Debug("Kafka reader EOF")
			} else {
				logger.Warnf("Kafka read error error=%s", err.Error())
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}
		if c.handle(ctx, msg) {
			if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				logger.Warnf("Kafka commit failed offset=%d error=%v", msg.Offset, err)
			}
		}
	}
}

// handle 返回是否提交 offset
func (c *AssembleRequestConsumer) handle(ctx context.Context, msg kafka.Message) bool {
	var req cqe.AssembleReq
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		logger.Warnf("Kafka message unmarshal error offset=%d error=%s", msg.Offset, err.Error())
		return c.opts.CommitOnDecodeError
	}
	res, err := c.app.Assemble(context.WithoutCancel(ctx), &req)
	if err != nil {
		// 业务错误不会因重试而成功，直接提交
		logger.Warnf("Assemble request rejected script_id=%s offset=%d error=%v", req.ScriptID, msg.Offset, err)
		return true
	}
	logger.Infof("Kafka assemble request accepted job_id=%s script_id=%s", res.JobID, req.ScriptID)
	return true
}
