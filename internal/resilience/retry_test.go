package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(maxAttempts int, retryable bool) RetryConfig {
	return RetryConfig{
		MaxAttempts:   maxAttempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
		JitterEnabled: false,
		RetryableErrors: func(error) bool {
			return retryable
		},
	}
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	attempts := 0

	err := RetryWithConfig(context.Background(), fastRetryConfig(3, true), func() error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryRecoversAfterTransientFailures(t *testing.T) {
	attempts := 0

	err := RetryWithConfig(context.Background(), fastRetryConfig(3, true), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	failure := errors.New("still broken")

	err := RetryWithConfig(context.Background(), fastRetryConfig(3, true), func() error {
		attempts++
		return failure
	})

	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 3, attempts)
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	failure := errors.New("permanent")

	err := RetryWithConfig(context.Background(), fastRetryConfig(3, false), func() error {
		attempts++
		return failure
	})

	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 1, attempts)
}

func TestRetryHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := RetryWithConfig(ctx, fastRetryConfig(3, true), func() error {
		attempts++
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, attempts)
}

func TestRetryHTTPRecoversFromServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	client := server.Client()
	resp, err := RetryHTTP(context.Background(), fastRetryConfig(3, true), func() (*http.Response, error) {
		return client.Get(server.URL)
	})

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, attempts)
}

func TestRetryHTTPReturnsNonRetryableStatusImmediately(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := server.Client()
	resp, err := RetryHTTP(context.Background(), fastRetryConfig(3, true), func() (*http.Response, error) {
		return client.Get(server.URL)
	})

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 1, attempts)
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	retryable := []int{408, 429, 500, 502, 503, 504}
	for _, status := range retryable {
		assert.True(t, isRetryableHTTPStatus(status), "status %d should be retryable", status)
	}

	final := []int{200, 201, 301, 400, 401, 403, 404, 422}
	for _, status := range final {
		assert.False(t, isRetryableHTTPStatus(status), "status %d should not be retryable", status)
	}
}

func TestCalculateDelayBackoffAndCap(t *testing.T) {
	config := RetryConfig{
		InitialDelay:  10 * time.Millisecond,
		MaxDelay:      25 * time.Millisecond,
		BackoffFactor: 2.0,
		JitterEnabled: false,
	}

	assert.Equal(t, 10*time.Millisecond, calculateDelay(config, 0))
	assert.Equal(t, 20*time.Millisecond, calculateDelay(config, 1))
	assert.Equal(t, 25*time.Millisecond, calculateDelay(config, 2))
}
