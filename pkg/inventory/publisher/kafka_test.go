package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiStockLedger/pkg/inventory"
)

const testTopic = "inventory-events"

// expectEvent registers a successful send whose key, headers and envelope are checked
func expectEvent(t *testing.T, producer *mocks.SyncProducer, eventType, key string, check func(payload json.RawMessage)) {
	t.Helper()
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != testTopic {
			return fmt.Errorf("unexpected topic %q", msg.Topic)
		}
		gotKey, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(gotKey) != key {
			return fmt.Errorf("unexpected key %q", gotKey)
		}

		headers := map[string]string{}
		for _, h := range msg.Headers {
			headers[string(h.Key)] = string(h.Value)
		}
		if headers["event_type"] != eventType {
			return fmt.Errorf("unexpected event_type header %q", headers["event_type"])
		}

		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var envelope struct {
			EventID   string          `json:"event_id"`
			EventType string          `json:"event_type"`
			Payload   json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(value, &envelope); err != nil {
			return err
		}
		if envelope.EventID == "" || envelope.EventID != headers["event_id"] {
			return fmt.Errorf("event id mismatch: %q vs %q", envelope.EventID, headers["event_id"])
		}
		if envelope.EventType != eventType {
			return fmt.Errorf("unexpected envelope type %q", envelope.EventType)
		}
		check(envelope.Payload)
		return nil
	})
}

func TestKafkaPublisher_PublishStockChanged(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	publisher := NewKafkaPublisherWithProducer(producer, testTopic, zap.NewNop())

	expectEvent(t, producer, EventTypeStockChanged, "100:2", func(payload json.RawMessage) {
		var event inventory.StockChangedEvent
		require.NoError(t, json.Unmarshal(payload, &event))
		assert.Equal(t, int64(75), event.StockAfter)
		assert.Equal(t, inventory.MovementTypeIn, event.MovementType)
	})

	err := publisher.PublishStockChanged(context.Background(), inventory.StockChangedEvent{
		MovementID:   1,
		ProductID:    100,
		LocationID:   2,
		MovementType: inventory.MovementTypeIn,
		StockBefore:  50,
		StockAfter:   75,
		StockStatus:  inventory.StockStatusInStock,
		PerformedBy:  7,
		Timestamp:    time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, publisher.Close())
}

func TestKafkaPublisher_PublishAlertAndTransfer(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	publisher := NewKafkaPublisherWithProducer(producer, testTopic, nil)

	expectEvent(t, producer, EventTypeAlertRaised, "100:1", func(payload json.RawMessage) {
		var event inventory.AlertRaisedEvent
		require.NoError(t, json.Unmarshal(payload, &event))
		assert.Equal(t, inventory.AlertTypeLowStock, event.AlertType)
	})
	expectEvent(t, producer, EventTypeTransferCompleted, "transfer:9", func(payload json.RawMessage) {
		var event inventory.TransferCompletedEvent
		require.NoError(t, json.Unmarshal(payload, &event))
		require.Len(t, event.Items, 1)
		assert.Equal(t, int64(10), event.Items[0].Quantity)
	})

	ctx := context.Background()
	require.NoError(t, publisher.PublishAlertRaised(ctx, inventory.AlertRaisedEvent{
		AlertID: 1, ProductID: 100, LocationID: 1, AlertType: inventory.AlertTypeLowStock, CurrentStock: 3, Threshold: 5,
	}))
	require.NoError(t, publisher.PublishTransferCompleted(ctx, inventory.TransferCompletedEvent{
		TransferID:            9,
		SourceLocationID:      1,
		DestinationLocationID: 2,
		Items:                 []inventory.TransferItem{{TransferID: 9, ProductID: 100, Quantity: 10}},
		CompletedBy:           7,
	}))
	require.NoError(t, publisher.Close())
}

func TestKafkaPublisher_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	publisher := NewKafkaPublisherWithProducer(producer, testTopic, zap.NewNop())

	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := publisher.PublishStockChanged(context.Background(), inventory.StockChangedEvent{ProductID: 1, LocationID: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sarama.ErrOutOfBrokers))
	require.NoError(t, publisher.Close())
}

func TestKafkaPublisher_CancelledContext(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	publisher := NewKafkaPublisherWithProducer(producer, testTopic, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// 送信前に中断されるため期待値は登録しない
	err := publisher.PublishStockChanged(ctx, inventory.StockChangedEvent{ProductID: 1, LocationID: 1})
	assert.ErrorIs(t, err, context.Canceled)
	require.NoError(t, publisher.Close())
}
