package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsbot-resilience/internal/resilience/errclass"
	"newsbot-resilience/internal/resilience/errhandler"
)

func TestRetryDelaySchedule(t *testing.T) {
	s := NewRetryStrategy(RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   1 * time.Second,
		MaxDelay:    8 * time.Second,
	})

	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second,
	}
	for i, want := range expected {
		assert.Equal(t, want, s.Delay(i+1), "attempt %d", i+1)
	}
}

func TestRetryDelayClampsAtMax(t *testing.T) {
	s := NewRetryStrategy(RetryConfig{BaseDelay: time.Second, MaxDelay: 60 * time.Second})

	assert.Equal(t, 60*time.Second, s.Delay(7))
	assert.Equal(t, 60*time.Second, s.Delay(50), "large attempts must not overflow")
	assert.Equal(t, time.Second, s.Delay(0), "attempts below one behave like the first")
}

func TestRetryCanRecover(t *testing.T) {
	s := NewRetryStrategy(RetryConfig{})
	ectx := errhandler.NewContext("scraper", "fetch")

	assert.True(t, s.CanRecover(errors.New("connection refused"), &ectx))
	assert.True(t, s.CanRecover(&errclass.HTTPError{StatusCode: 503}, &ectx))
	assert.True(t, s.CanRecover(&errclass.HTTPError{StatusCode: 429}, &ectx))
	assert.False(t, s.CanRecover(&errclass.HTTPError{StatusCode: 401}, &ectx))
	assert.False(t, s.CanRecover(errors.New("invalid payload"), &ectx))
	assert.False(t, s.CanRecover(context.Canceled, &ectx))
}

func TestRetryRecoverSanctionsWithinBudget(t *testing.T) {
	s := NewRetryStrategy(RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Millisecond,
	})
	ectx := errhandler.NewContext("scraper", "fetch")

	for attempt := 1; attempt <= 3; attempt++ {
		ok, err := s.Recover(context.Background(), errors.New("connection refused"), &ectx, attempt)
		require.NoError(t, err)
		assert.True(t, ok, "attempt %d", attempt)
	}

	ok, err := s.Recover(context.Background(), errors.New("connection refused"), &ectx, 4)
	require.NoError(t, err)
	assert.False(t, ok, "attempts beyond the budget must not be sanctioned")
}

func TestRetryRecoverAbortsOnCancellation(t *testing.T) {
	s := NewRetryStrategy(RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Hour,
		MaxDelay:    time.Hour,
	})
	ectx := errhandler.NewContext("scraper", "fetch")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	ok, err := s.Recover(ctx, errors.New("connection refused"), &ectx, 1)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second, "cancellation must abort the delay")
}

func TestRetryDefaults(t *testing.T) {
	s := NewRetryStrategy(RetryConfig{})

	assert.Equal(t, "retry", s.Name())
	assert.Equal(t, 3, s.cfg.MaxAttempts)
	assert.Equal(t, 1*time.Second, s.cfg.BaseDelay)
	assert.Equal(t, 60*time.Second, s.cfg.MaxDelay)
}
