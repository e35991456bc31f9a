package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
)

// TestGuardOpensAfterConsecutiveFailures проверяет быстрый отказ после серии ошибок.
func TestGuardOpensAfterConsecutiveFailures(t *testing.T) {
	upstream := &fakeUpstream{name: "openrouter", configured: true, err: errors.New("connection reset")}
	guard := WithBreaker[string](upstream, BreakerSettings{MaxFailures: 2, OpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := guard.Call(context.Background(), "x")
		require.Error(t, err)
	}
	require.Equal(t, gobreaker.StateOpen, guard.State())

	_, err := guard.Call(context.Background(), "x")
	var upstreamErr *UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.Equal(t, 2, upstream.calls)
}

// TestGuardIgnoresCancellation проверяет, что отмена клиентом не открывает breaker.
func TestGuardIgnoresCancellation(t *testing.T) {
	upstream := &fakeUpstream{name: "n8n", configured: true, err: context.Canceled}
	guard := WithBreaker[string](upstream, BreakerSettings{MaxFailures: 1, OpenTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		_, _ = guard.Call(context.Background(), "x")
	}
	require.Equal(t, gobreaker.StateClosed, guard.State())
	require.Equal(t, 3, upstream.calls)
}

// TestGuardPassesResponse проверяет прозрачную передачу успешного ответа.
func TestGuardPassesResponse(t *testing.T) {
	upstream := &fakeUpstream{name: "n8n", configured: true, response: DocumentResponse([]byte(`{"a":1}`))}
	guard := WithBreaker[string](upstream, BreakerSettings{})

	require.True(t, guard.Configured())
	require.Equal(t, "n8n", guard.Name())

	response, err := guard.Call(context.Background(), "x")
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, readBody(t, response))
}
