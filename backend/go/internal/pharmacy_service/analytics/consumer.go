package analytics

import (
	"PharmaChat/backend/go/internal/config"
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageReader 是 kafka.Reader 的最小接口，便于测试替换。
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewQueryReader 为查询事件主题创建一个消费者组 reader。
func NewQueryReader(cfg config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.QueryTopic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})
}

// KafkaConsumer consumes query events from Kafka and saves them to an EventStore.
type KafkaConsumer struct {
	reader  MessageReader
	store   EventStore
	logger  *logger.Logger
	backoff time.Duration
}

// NewKafkaConsumer creates a new KafkaConsumer.
func NewKafkaConsumer(reader MessageReader, store EventStore, logger *logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{reader: reader, store: store, logger: logger, backoff: time.Second}
}

// Run blocks until ctx is cancelled. Undecodable messages are committed and
// dropped; a failed save is retried until it succeeds before the offset is committed.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to fetch message")
			if !c.sleep(ctx) {
				return nil
			}
			continue
		}

		var event models.QueryEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.WithError(models.ErrorInfo{Message: err.Error()}).
				WithPayload(map[string]interface{}{"offset": msg.Offset, "partition": msg.Partition}).
				Error("failed to unmarshal message")
			c.commit(ctx, msg)
			continue
		}

		for {
			err := c.store.Save(ctx, &event)
			if err == nil {
				break
			}
			c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to save query event")
			if !c.sleep(ctx) {
				return nil
			}
		}
		c.commit(ctx, msg)
	}
}

func (c *KafkaConsumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.WithError(models.ErrorInfo{Message: err.Error()}).Error("failed to commit message")
	}
}

func (c *KafkaConsumer) sleep(ctx context.Context) bool {
	t := time.NewTimer(c.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
