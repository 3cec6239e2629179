package httpclient

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return &StatusError{Code: 503}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetrySkipsPermanentErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return &StatusError{Code: 404, Body: "not found"}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryGivesUp(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return &StatusError{Code: 500}
	})
	var statusErr *StatusError
	assert.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 3, calls)
}

func TestRetryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, 3, time.Millisecond, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetriable(t *testing.T) {
	assert.True(t, IsRetriable(&StatusError{Code: 429}))
	assert.True(t, IsRetriable(&StatusError{Code: 502}))
	assert.False(t, IsRetriable(&StatusError{Code: 401}))
	assert.True(t, IsRetriable(context.DeadlineExceeded))
	assert.False(t, IsRetriable(errors.New("boom")))
}

func TestRetryHonoursShortRetryAfter(t *testing.T) {
	calls := 0
	start := time.Now()
	err := Retry(context.Background(), 2, time.Millisecond, func() error {
		calls++
		if calls == 1 {
			return &StatusError{Code: 429, RetryAfter: 20 * time.Millisecond}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestRetryStopsOnLongRetryAfter(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return &StatusError{Code: 429, RetryAfter: time.Minute}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 3*time.Second, ParseRetryAfter("3", now))
	assert.Equal(t, 90*time.Second, ParseRetryAfter(now.Add(90*time.Second).Format(http.TimeFormat), now))
	assert.Zero(t, ParseRetryAfter("", now))
	assert.Zero(t, ParseRetryAfter("-1", now))
	assert.Zero(t, ParseRetryAfter("soon", now))
	assert.Zero(t, ParseRetryAfter(now.Add(-time.Hour).Format(http.TimeFormat), now))
}
