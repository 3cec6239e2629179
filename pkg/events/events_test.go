package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-health/copd-monitor/pkg/common/logger"
	"github.com/sentinel-health/copd-monitor/pkg/common/models"
	"github.com/sentinel-health/copd-monitor/pkg/observability/metrics"
	"github.com/sentinel-health/copd-monitor/pkg/patient"
	"github.com/sentinel-health/copd-monitor/pkg/risk"
)

func init() {
	logger.Silence()
}

type publishedEvent struct {
	eventType string
	source    string
	data      map[string]interface{}
}

type fakeProducer struct {
	mu     sync.Mutex
	events []publishedEvent
	fail   bool
	sent   chan struct{}
}

func newFakeProducer() *fakeProducer {
	return &fakeProducer{sent: make(chan struct{}, 16)}
}

func (f *fakeProducer) PublishEvent(_ context.Context, eventType, source string, data map[string]interface{}) error {
	defer func() { f.sent <- struct{}{} }()
	if f.fail {
		return errors.New("broker unavailable")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{eventType, source, data})
	return nil
}

func (f *fakeProducer) published() []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedEvent(nil), f.events...)
}

func waitSent(t *testing.T, f *fakeProducer) {
	t.Helper()
	select {
	case <-f.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not published")
	}
}

func TestPublisherForwardsPredictions(t *testing.T) {
	producer := newFakeProducer()
	pub := NewPublisher(producer, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- pub.Run(ctx) }()

	before := metrics.Current().EventsPublished
	pub.Enqueue(models.CompletePrediction{PatientID: "p-1", RiskScore: 72, RiskLevel: models.RiskHigh})
	waitSent(t, producer)

	events := producer.published()
	require.Len(t, events, 1)
	assert.Equal(t, PredictionUpdated, events[0].eventType)
	assert.Equal(t, "copd-monitor", events[0].source)
	assert.Equal(t, "p-1", events[0].data["patient_id"])
	assert.Equal(t, "p-1", events[0].data["patientId"])
	assert.Equal(t, float64(72), events[0].data["riskScore"])
	assert.Equal(t, "High", events[0].data["riskLevel"])

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.GreaterOrEqual(t, metrics.Current().EventsPublished, before+1)
}

func TestPublisherDropsWhenQueueFull(t *testing.T) {
	pub := NewPublisher(newFakeProducer(), 1)
	before := metrics.Current().EventsDropped

	pub.Enqueue(models.CompletePrediction{PatientID: "p-1"})
	pub.Enqueue(models.CompletePrediction{PatientID: "p-1"})

	assert.Len(t, pub.queue, 1)
	assert.GreaterOrEqual(t, metrics.Current().EventsDropped, before+1)
}

func TestPublisherSurvivesBrokerFailure(t *testing.T) {
	producer := newFakeProducer()
	producer.fail = true
	pub := NewPublisher(producer, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pub.Run(ctx) }()

	pub.Enqueue(models.CompletePrediction{PatientID: "p-1"})
	pub.Enqueue(models.CompletePrediction{PatientID: "p-2"})
	waitSent(t, producer)
	waitSent(t, producer)

	assert.Empty(t, producer.published())
}

type fakeRefresher struct {
	active    string
	refreshes int
	err       error
}

func (f *fakeRefresher) ActivePatient() (string, bool) {
	return f.active, f.active != ""
}

func (f *fakeRefresher) Refresh(context.Context) error {
	f.refreshes++
	return f.err
}

type failingRecorder struct{}

func (failingRecorder) RecordMeasurement(context.Context, string, models.Measurement) error {
	return errors.New("connection reset")
}

func newIngestTarget() (*patient.Service, *patient.MemoryRepository) {
	repo := patient.NewMemoryRepository(
		&models.PatientSnapshot{ID: "p-1", Name: "Jean Dupont", Age: 68},
		&models.PatientSnapshot{ID: "p-2", Name: "Amina Haddad", Age: 71},
	)
	return patient.NewService(repo, risk.NewScorer()), repo
}

func measurementEvent(patientID string, spo2 float64) models.Event {
	return models.Event{
		ID:   "evt-1",
		Type: MeasurementEvent,
		Data: map[string]interface{}{
			"patient_id": patientID,
			"spo2":       spo2,
			"heart_rate": 92.0,
			"timestamp":  time.Now().Add(-time.Minute).UTC().Format(time.RFC3339),
		},
	}
}

func TestIngestorStoresAndRefreshesActivePatient(t *testing.T) {
	svc, repo := newIngestTarget()
	refresher := &fakeRefresher{active: "p-1"}
	ing := NewMeasurementIngestor(svc, refresher)

	require.NoError(t, ing.Handle(context.Background(), measurementEvent("p-1", 88)))

	p, err := repo.GetSnapshot(context.Background(), "p-1")
	require.NoError(t, err)
	latest, ok := p.LatestMeasurement()
	require.True(t, ok)
	assert.Equal(t, 88.0, latest.SpO2)
	assert.Equal(t, 92.0, latest.HeartRate)
	assert.Equal(t, 1, refresher.refreshes)
}

func TestIngestorSkipsRefreshForOtherPatients(t *testing.T) {
	svc, _ := newIngestTarget()
	refresher := &fakeRefresher{active: "p-1"}
	ing := NewMeasurementIngestor(svc, refresher)

	require.NoError(t, ing.Handle(context.Background(), measurementEvent("p-2", 95)))
	assert.Zero(t, refresher.refreshes)

	refresher.active = ""
	require.NoError(t, ing.Handle(context.Background(), measurementEvent("p-1", 95)))
	assert.Zero(t, refresher.refreshes)
}

func TestIngestorAcknowledgesBadEvents(t *testing.T) {
	svc, repo := newIngestTarget()
	refresher := &fakeRefresher{active: "p-1"}
	ing := NewMeasurementIngestor(svc, refresher)
	ctx := context.Background()

	assert.NoError(t, ing.Handle(ctx, measurementEvent("p-1", 140)))
	assert.NoError(t, ing.Handle(ctx, measurementEvent("ghost", 95)))
	assert.NoError(t, ing.Handle(ctx, models.Event{Type: MeasurementEvent, Data: map[string]interface{}{"spo2": "high"}}))
	assert.NoError(t, ing.Handle(ctx, models.Event{Type: "device.paired"}))

	p, err := repo.GetSnapshot(ctx, "p-1")
	require.NoError(t, err)
	assert.Empty(t, p.Measurements)
	assert.Zero(t, refresher.refreshes)
}

func TestIngestorReturnsStorageErrors(t *testing.T) {
	ing := NewMeasurementIngestor(failingRecorder{}, &fakeRefresher{})

	err := ing.Handle(context.Background(), measurementEvent("p-1", 95))
	assert.Error(t, err)
}
