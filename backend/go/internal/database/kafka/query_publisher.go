package kafka

import (
	"PharmaChat/backend/go/internal/models"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter 是 kafka.Writer 的最小接口，便于测试替换。
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// QueryPublisher 把每次搜索的结果摘要写入 Kafka。
type QueryPublisher struct {
	writer MessageWriter
}

// NewQueryPublisher 为查询事件主题创建 writer。
func NewQueryPublisher(client *KafkaClient) *QueryPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(client.Config.Brokers...),
		Topic:        client.Config.QueryTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
		Async:        true,
	}
	return &QueryPublisher{writer: writer}
}

// NewQueryPublisherWithWriter 使用自定义 writer 创建发布者。
func NewQueryPublisherWithWriter(w MessageWriter) *QueryPublisher {
	return &QueryPublisher{writer: w}
}

// PublishQuery 将 QueryEvent 序列化为 JSON 并发送，按会话 ID 分区以保持顺序。
func (p *QueryPublisher) PublishQuery(ctx context.Context, event *models.QueryEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal query event: %w", err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.ConversationID),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

// Close 关闭底层的 writer 连接。
func (p *QueryPublisher) Close() error {
	return p.writer.Close()
}
