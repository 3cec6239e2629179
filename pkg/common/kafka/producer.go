package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sentinel-health/copd-monitor/pkg/common/logger"
	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

const (
	headerEventType = "event-type"
	headerSource    = "source"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	topic  string
	writer messageWriter
}

// NewProducer writes to topic on brokers. Messages are small and latency
// matters more than throughput, so batches flush after one message.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Compression:            kafka.Snappy,
		BatchSize:              1,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
	}

	return &Producer{topic: topic, writer: writer}
}

// PublishEvent wraps data in an Event envelope and writes it.
func (p *Producer) PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	message, err := encodeEvent(event)
	if err != nil {
		return err
	}

	fields := map[string]interface{}{
		"event_id":   event.ID,
		"event_type": eventType,
		"topic":      p.topic,
	}
	if err := p.writer.WriteMessages(ctx, message); err != nil {
		logger.Log.WithError(err).WithFields(fields).Error("Failed to publish event")
		return err
	}

	logger.Log.WithFields(fields).Debug("Event published")
	return nil
}

// encodeEvent keys the message by patient_id when present so one patient's
// updates stay ordered on a single partition.
func encodeEvent(event models.Event) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	key := event.ID
	if pid, ok := event.Data["patient_id"].(string); ok && pid != "" {
		key = pid
	}

	return kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(event.Type)},
			{Key: headerSource, Value: []byte(event.Source)},
		},
	}, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
