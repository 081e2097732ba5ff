package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisherSendsEnvelope(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got envelope
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.EventType != EventTypeStatusChanged || got.Data.Status != "success" || got.Data.PreviousStatus != "pending" {
			return errors.New("unexpected event payload")
		}
		return nil
	})

	p := NewKafkaPublisherWithProducer(producer, "payments")
	err := p.PublishStatusChanged(context.Background(), StatusChanged{
		OrderID:        "order-1",
		PreviousStatus: "pending",
		Status:         "success",
		OccurredAt:     time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}

func TestKafkaPublisherReturnsSendError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewKafkaPublisherWithProducer(producer, "")
	err := p.PublishStatusChanged(context.Background(), StatusChanged{OrderID: "order-1"})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	assert.Equal(t, EventTypeStatusChanged, p.topic)
	require.NoError(t, p.Close())
}

func TestNewPublisherWithoutBrokersIsNoop(t *testing.T) {
	p := NewPublisher(config.KafkaConfig{})
	_, ok := p.(NoopPublisher)
	assert.True(t, ok)
	assert.NoError(t, p.PublishStatusChanged(context.Background(), StatusChanged{}))
	assert.NoError(t, p.Close())
}
