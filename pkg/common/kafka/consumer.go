package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sentinel-health/copd-monitor/pkg/common/logger"
	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader     messageReader
	retryDelay time.Duration
}

type EventHandler func(ctx context.Context, event models.Event) error

func NewConsumer(brokers []string, topic string, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    1e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.LastOffset,
	})

	return &Consumer{reader: reader, retryDelay: time.Second}
}

// Consume blocks until ctx is cancelled. Undecodable messages are committed and
// skipped; handler failures leave the offset uncommitted for redelivery.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			logger.Log.WithError(err).Error("Failed to fetch message")
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		event, err := decodeEvent(message)
		if err != nil {
			logger.Log.WithError(err).WithField("offset", message.Offset).Warn("Dropping undecodable event")
			c.commit(ctx, message)
			continue
		}

		if err := handler(ctx, event); err != nil {
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"event_id":   event.ID,
				"event_type": event.Type,
			}).Error("Failed to process event")
			continue
		}

		c.commit(ctx, message)
	}
}

// decodeEvent reads the envelope. Producers that only set the event-type
// header still route correctly.
func decodeEvent(message kafka.Message) (models.Event, error) {
	var event models.Event
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return models.Event{}, err
	}
	if event.Type == "" {
		for _, h := range message.Headers {
			if h.Key == headerEventType {
				event.Type = string(h.Value)
			}
		}
	}
	return event, nil
}

func (c *Consumer) commit(ctx context.Context, message kafka.Message) {
	if err := c.reader.CommitMessages(ctx, message); err != nil {
		logger.Log.WithError(err).Error("Failed to commit message")
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
