package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/mutusfa/Neurodeck/backend/go/internal/models"
)

// CardEventPublisher 封装了向 Kafka 发布卡片生命周期事件的逻辑。
// nil 接收者是安全的：事件发布未启用时所有方法都是空操作。
type CardEventPublisher struct {
	writer *kafka.Writer
}

// NewCardEventPublisher 创建一个新的 CardEventPublisher 实例。
func NewCardEventPublisher(client *KafkaClient) *CardEventPublisher {
	// 为事件主题创建一个新的 writer 实例配置
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      client.Config.Brokers,
		Topic:        CardEventTopic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	})
	return &CardEventPublisher{writer: writer}
}

// Publish 将 CardEvent 序列化为 JSON 并写入主题。
// 消息键是事件的 Context，保证同一文档的事件落在同一分区内有序。
func (p *CardEventPublisher) Publish(ctx context.Context, event *models.CardEvent) error {
	if p == nil {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	jsonData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal card event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Context),
		Value: jsonData,
	})
	if err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close 关闭底层的 writer 连接。
func (p *CardEventPublisher) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
