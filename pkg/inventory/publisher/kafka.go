// Package publisher delivers inventory events to Kafka.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiStockLedger/pkg/inventory"
)

// Event types carried in the event_type header
const (
	EventTypeStockChanged      = "inventory.stock_changed"
	EventTypeAlertRaised       = "inventory.alert_raised"
	EventTypeTransferCompleted = "inventory.transfer_completed"
)

// Envelope wraps every event payload
// イベントの共通エンベロープ
type Envelope struct {
	EventID   string      `json:"event_id"`
	EventType string      `json:"event_type"`
	Payload   interface{} `json:"payload"`
}

// KafkaPublisher implements inventory.EventPublisher on a sarama SyncProducer
// Kafkaを使用したEventPublisherの実装
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

var _ inventory.EventPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher connects a producer to brokers
// 新しいKafkaパブリッシャーを作成
func NewKafkaPublisher(brokers []string, topic, clientID string, logger *zap.Logger) (*KafkaPublisher, error) {
	config := sarama.NewConfig()
	config.ClientID = clientID
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = 3
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.MaxMessageBytes = 1000000

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("Kafkaプロデューサー作成に失敗しました: %w", err)
	}

	logger.Info("Kafkaパブリッシャー初期化完了",
		zap.Strings("brokers", brokers),
		zap.String("topic", topic),
	)
	return NewKafkaPublisherWithProducer(producer, topic, logger), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

// PublishStockChanged publishes a stock change keyed by product and location
// 在庫変更イベントを発行
func (p *KafkaPublisher) PublishStockChanged(ctx context.Context, event inventory.StockChangedEvent) error {
	return p.publish(ctx, EventTypeStockChanged, itemKey(event.ProductID, event.LocationID), event)
}

// PublishAlertRaised publishes a new alert keyed by product and location
// アラート発生イベントを発行
func (p *KafkaPublisher) PublishAlertRaised(ctx context.Context, event inventory.AlertRaisedEvent) error {
	return p.publish(ctx, EventTypeAlertRaised, itemKey(event.ProductID, event.LocationID), event)
}

// PublishTransferCompleted publishes a completed transfer keyed by transfer id
// 在庫移動完了イベントを発行
func (p *KafkaPublisher) PublishTransferCompleted(ctx context.Context, event inventory.TransferCompletedEvent) error {
	return p.publish(ctx, EventTypeTransferCompleted, fmt.Sprintf("transfer:%d", event.TransferID), event)
}

// Close closes the producer
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

func (p *KafkaPublisher) publish(ctx context.Context, eventType, key string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	envelope := Envelope{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Payload:   payload,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("イベントのシリアライズに失敗しました: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(eventType)},
			{Key: []byte("event_id"), Value: []byte(envelope.EventID)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("Kafkaへのイベント送信に失敗しました: %w", err)
	}

	p.logger.Debug("イベント発行完了",
		zap.String("event_id", envelope.EventID),
		zap.String("event_type", eventType),
		zap.String("topic", p.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func itemKey(productID, locationID int64) string {
	return fmt.Sprintf("%d:%d", productID, locationID)
}
