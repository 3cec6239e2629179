package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const maxBackoff = 2 * time.Second

// New creates an HTTP client tuned for calls to third party APIs.
func New(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// StatusError is returned when an upstream answers with a non-2xx status.
// RetryAfter carries the upstream's Retry-After hint when it sent one.
type StatusError struct {
	Code       int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.Code, e.Body)
}

// Retry executes fn with exponential backoff, stopping early on errors that
// IsRetriable rejects. A Retry-After hint longer than the backoff cap ends the
// loop instead of stalling the caller.
func Retry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts <= 1 {
		return fn()
	}

	var err error
	delay := baseDelay
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil || !IsRetriable(err) {
			return err
		}

		if i == attempts-1 {
			break
		}

		wait := delay
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
			if statusErr.RetryAfter > maxBackoff {
				return err
			}
			if statusErr.RetryAfter > wait {
				wait = statusErr.RetryAfter
			}
		}

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay *= 2
		if delay > maxBackoff {
			delay = maxBackoff
		}
	}

	return err
}

// IsRetriable reports network timeouts, 429 and 5xx answers.
func IsRetriable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// ParseRetryAfter reads a Retry-After header given as seconds or an HTTP date.
// It returns zero for a missing or unparseable value.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
