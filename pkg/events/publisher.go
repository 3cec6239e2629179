// Package events bridges the prediction coordinator and Kafka: published
// predictions go out on one topic, device measurements come in on another.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sentinel-health/copd-monitor/pkg/common/logger"
	"github.com/sentinel-health/copd-monitor/pkg/common/models"
	"github.com/sentinel-health/copd-monitor/pkg/observability/metrics"
)

const (
	PredictionUpdated = "prediction.updated"
	MeasurementEvent  = "measurement"

	source         = "copd-monitor"
	publishTimeout = 5 * time.Second
)

type EventProducer interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Publisher forwards predictions to Kafka off the coordinator's goroutine.
// When the queue is full the prediction is dropped.
type Publisher struct {
	producer EventProducer
	queue    chan models.CompletePrediction
}

func NewPublisher(producer EventProducer, queueSize int) *Publisher {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Publisher{
		producer: producer,
		queue:    make(chan models.CompletePrediction, queueSize),
	}
}

// Enqueue has the coordinator subscriber signature and never blocks.
func (p *Publisher) Enqueue(pred models.CompletePrediction) {
	select {
	case p.queue <- pred:
	default:
		metrics.IncEventsDropped()
		logger.ForPatient(pred.PatientID).Warn("Prediction event queue full, dropping")
	}
}

// Run drains the queue until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pred := <-p.queue:
			if err := p.publish(ctx, pred); err != nil {
				metrics.IncEventsDropped()
				logger.ForPatient(pred.PatientID).WithError(err).Error("Failed to publish prediction")
				continue
			}
			metrics.IncEventsPublished()
		}
	}
}

func (p *Publisher) publish(ctx context.Context, pred models.CompletePrediction) error {
	data, err := predictionData(pred)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return p.producer.PublishEvent(ctx, PredictionUpdated, source, data)
}

func predictionData(pred models.CompletePrediction) (map[string]interface{}, error) {
	raw, err := json.Marshal(pred)
	if err != nil {
		return nil, fmt.Errorf("marshal prediction: %w", err)
	}
	data := make(map[string]interface{})
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal prediction: %w", err)
	}
	data["patient_id"] = pred.PatientID
	return data, nil
}
