package resilience

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  time.Hour,
		SuccessThreshold: 2,
	})

	failure := errors.New("backend down")
	for i := 0; i < 3; i++ {
		err := cb.Call(func() error { return failure })
		assert.ErrorIs(t, err, failure)
	}

	assert.Equal(t, StateOpen, cb.State())

	// Open circuit rejects without invoking the function
	invoked := false
	err := cb.Call(func() error {
		invoked = true
		return nil
	})

	var cbErr *CircuitBreakerError
	require.ErrorAs(t, err, &cbErr)
	assert.False(t, invoked)
}

func TestCircuitBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  10 * time.Millisecond,
		SuccessThreshold: 2,
	})

	require.Error(t, cb.Call(func() error { return errors.New("boom") }))
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Hour})

	require.Error(t, cb.Call(func() error { return errors.New("boom") }))
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	require.Error(t, cb.Call(func() error { return errors.New("boom") }))
	require.Error(t, cb.Call(func() error { return errors.New("boom") }))
	require.NoError(t, cb.Call(func() error { return nil }))

	assert.Equal(t, 0, cb.Failures())
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "unknown", CircuitBreakerState(99).String())
}

func TestCircuitBreakerGetStats(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	stats := cb.GetStats()
	assert.Equal(t, "closed", stats["state"])
	assert.Equal(t, 0, stats["failures"])
}

func TestConnectionPoolExhaustion(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	pool := NewConnectionPool(2, 3, time.Minute, cb)
	defer pool.Close()

	var clients []*http.Client
	for i := 0; i < 3; i++ {
		client, err := pool.GetClient()
		require.NoError(t, err)
		clients = append(clients, client)
	}

	_, err := pool.GetClient()
	assert.Error(t, err)

	pool.ReturnClient(clients[0])

	stats := pool.GetStats()
	assert.Equal(t, 3, stats["active_connections"])
	assert.Equal(t, 1, stats["idle_connections"])
	assert.Equal(t, "closed", stats["circuit_breaker_state"])
}

func TestConnectionPoolDoRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	pool := NewConnectionPool(2, 3, time.Minute, cb)
	defer pool.Close()

	resp, err := pool.DoRequest(context.Background(), http.MethodGet, server.URL, map[string]string{
		"User-Agent": "test-agent",
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
