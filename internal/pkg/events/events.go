// Package events publishes payment status changes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"github.com/ManuelReschke/SchoolPay/internal/pkg/config"
	"github.com/gofiber/fiber/v2/log"
)

const EventTypeStatusChanged = "payment.status.changed"

const (
	connectRetries    = 3
	connectRetryDelay = 2 * time.Second
)

// StatusChanged is emitted after a reconciliation changed an order's status.
type StatusChanged struct {
	OrderID           string    `json:"order_id"`
	CustomOrderID     string    `json:"custom_order_id"`
	CollectRequestID  string    `json:"collect_request_id"`
	SchoolID          string    `json:"school_id"`
	PreviousStatus    string    `json:"previous_status"`
	Status            string    `json:"status"`
	Amount            string    `json:"amount"`
	TransactionAmount string    `json:"transaction_amount"`
	Source            string    `json:"source"`
	OccurredAt        time.Time `json:"occurred_at"`
}

type envelope struct {
	EventType string        `json:"event_type"`
	Data      StatusChanged `json:"data"`
}

// Publisher delivers status change events. Implementations must not block
// reconciliation on delivery failures for longer than a single send.
type Publisher interface {
	PublishStatusChanged(ctx context.Context, ev StatusChanged) error
	Close() error
}

type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaPublisher connects a synchronous producer to the configured brokers.
func NewKafkaPublisher(cfg config.KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 3

	var producer sarama.SyncProducer
	var err error
	for i := 1; i <= connectRetries; i++ {
		producer, err = sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
		if err == nil {
			log.Infof("[Events] kafka producer connected to %v", cfg.Brokers)
			return NewKafkaPublisherWithProducer(producer, cfg.Topic), nil
		}
		log.Warnf("[Events] waiting for kafka (%d/%d): %v", i, connectRetries, err)
		if i < connectRetries {
			time.Sleep(connectRetryDelay)
		}
	}
	return nil, err
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	if topic == "" {
		topic = EventTypeStatusChanged
	}
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishStatusChanged(ctx context.Context, ev StatusChanged) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(envelope{EventType: EventTypeStatusChanged, Data: ev})
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.OrderID),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return err
	}
	log.Debugf("[Events] published %s for order %s (%s -> %s)", EventTypeStatusChanged, ev.OrderID, ev.PreviousStatus, ev.Status)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher discards events; used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishStatusChanged(context.Context, StatusChanged) error { return nil }
func (NoopPublisher) Close() error                                             { return nil }

// NewPublisher returns a Kafka publisher, or a NoopPublisher when Kafka is not
// configured or unreachable.
func NewPublisher(cfg config.KafkaConfig) Publisher {
	if len(cfg.Brokers) == 0 {
		log.Infof("[Events] KAFKA_BROKERS not set, status events disabled")
		return NoopPublisher{}
	}
	p, err := NewKafkaPublisher(cfg)
	if err != nil {
		log.Errorf("[Events] kafka unavailable, status events disabled: %v", err)
		return NoopPublisher{}
	}
	return p
}
