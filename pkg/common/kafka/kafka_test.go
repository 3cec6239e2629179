package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-health/copd-monitor/pkg/common/logger"
	"github.com/sentinel-health/copd-monitor/pkg/common/models"
)

func init() {
	logger.Silence()
}

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// fakeReader serves queued messages, then blocks until the context ends.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestPublishEventKeysByPatient(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{topic: "copd.predictions", writer: w}

	require.NoError(t, p.PublishEvent(context.Background(), "prediction.updated", "copd-monitor", map[string]interface{}{"patient_id": "p-1", "riskScore": 70}))
	require.NoError(t, p.PublishEvent(context.Background(), "heartbeat", "copd-monitor", map[string]interface{}{}))
	require.Len(t, w.messages, 2)

	first := w.messages[0]
	assert.Equal(t, "p-1", string(first.Key))
	assert.Equal(t, kafka.Header{Key: headerEventType, Value: []byte("prediction.updated")}, first.Headers[0])

	var event models.Event
	require.NoError(t, json.Unmarshal(first.Value, &event))
	assert.Equal(t, "prediction.updated", event.Type)
	assert.Equal(t, "copd-monitor", event.Source)
	assert.NotEmpty(t, event.ID)

	second := w.messages[1]
	var other models.Event
	require.NoError(t, json.Unmarshal(second.Value, &other))
	assert.Equal(t, other.ID, string(second.Key))
}

func TestPublishEventPropagatesWriterError(t *testing.T) {
	p := &Producer{topic: "t", writer: &fakeWriter{err: errors.New("broker down")}}
	assert.Error(t, p.PublishEvent(context.Background(), "x", "y", nil))
}

func TestConsumeCommitsHandledAndPoisonMessages(t *testing.T) {
	good, err := json.Marshal(models.Event{ID: "e-1", Type: "measurement"})
	require.NoError(t, err)
	headerOnly, err := json.Marshal(models.Event{ID: "e-3"})
	require.NoError(t, err)

	reader := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Value: good},
		{Offset: 2, Value: []byte("{not json")},
		{Offset: 3, Value: headerOnly, Headers: []kafka.Header{{Key: headerEventType, Value: []byte("measurement")}}},
		{Offset: 4, Value: good},
	}}
	c := &Consumer{reader: reader, retryDelay: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	var seen []string
	handled := 0
	done := make(chan error, 1)
	go func() {
		done <- c.Consume(ctx, func(_ context.Context, e models.Event) error {
			mu.Lock()
			defer mu.Unlock()
			handled++
			seen = append(seen, e.Type)
			if handled == 3 {
				cancel()
				return errors.New("transient")
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}

	reader.mu.Lock()
	defer reader.mu.Unlock()
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
	assert.Equal(t, []string{"measurement", "measurement", "measurement"}, seen)
}
