package errhandler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsbot-resilience/internal/alert"
	"newsbot-resilience/internal/resilience/errclass"
)

// captureSink records every delivered alert event.
type captureSink struct {
	mu     sync.Mutex
	events []alert.Event
}

func (s *captureSink) Notify(ctx context.Context, ev alert.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *captureSink) Events() []alert.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]alert.Event, len(s.events))
	copy(out, s.events)
	return out
}

// stubStrategy is a scriptable recovery strategy.
type stubStrategy struct {
	name       string
	canRecover bool
	sanction   bool
	err        error
	calls      int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) CanRecover(err error, ectx *Context) bool { return s.canRecover }

func (s *stubStrategy) Recover(ctx context.Context, err error, ectx *Context, attempt int) (bool, error) {
	s.calls++
	return s.sanction, s.err
}

func TestHandleErrorRecordsClassification(t *testing.T) {
	h := NewHandler(HandlerConfig{}, nil, nil)

	record := h.HandleError(context.Background(), errors.New("connection refused"),
		NewContext("scraper", "fetch_feed"), false)

	require.NotNil(t, record)
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, errclass.CategoryNetwork, record.Category)
	assert.Equal(t, errclass.SeverityLow, record.Severity)
	assert.Equal(t, "network_error", record.CategoryLabel)
	assert.Equal(t, "connection refused", record.Message)
	assert.Equal(t, "scraper", record.Context.Component)
	assert.False(t, record.Recovered)
}

func TestHandleErrorStats(t *testing.T) {
	h := NewHandler(HandlerConfig{}, nil, nil)
	ctx := context.Background()

	h.HandleError(ctx, errors.New("connection refused"), NewContext("scraper", "fetch"), false)
	h.HandleError(ctx, errors.New("connection reset"), NewContext("scraper", "fetch"), false)
	h.HandleError(ctx, errors.New("out of memory"), NewContext("poster", "publish"), false)

	stats := h.Stats()
	assert.Equal(t, uint64(3), stats.TotalErrors)

	wantByCategory := map[string]uint64{"network_error": 2, "system_error": 1}
	if diff := cmp.Diff(wantByCategory, stats.ByCategory); diff != "" {
		t.Errorf("ByCategory mismatch (-want +got):\n%s", diff)
	}
	wantBySeverity := map[string]uint64{"low": 2, "critical": 1}
	if diff := cmp.Diff(wantBySeverity, stats.BySeverity); diff != "" {
		t.Errorf("BySeverity mismatch (-want +got):\n%s", diff)
	}
	wantByComponent := map[string]uint64{"scraper": 2, "poster": 1}
	if diff := cmp.Diff(wantByComponent, stats.ByComponent); diff != "" {
		t.Errorf("ByComponent mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, stats.RecentErrors, 3)
}

func TestHandleErrorHistoryBounded(t *testing.T) {
	h := NewHandler(HandlerConfig{HistoryCapacity: 5}, nil, nil)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		h.HandleError(ctx, fmt.Errorf("failure %d", i), NewContext("scraper", "fetch"), false)
	}

	stats := h.Stats()
	assert.Equal(t, uint64(12), stats.TotalErrors, "counters must survive eviction")
	require.Len(t, stats.RecentErrors, 5)
	assert.Equal(t, "failure 7", stats.RecentErrors[0].Message)
	assert.Equal(t, "failure 11", stats.RecentErrors[4].Message)
}

func TestHandleErrorRecoverySanctioned(t *testing.T) {
	h := NewHandler(HandlerConfig{}, nil, nil)
	strategy := &stubStrategy{name: "retry", canRecover: true, sanction: true}
	h.AddStrategy(strategy)

	record := h.HandleError(context.Background(), errors.New("connection refused"),
		NewContext("scraper", "fetch"), true)

	assert.True(t, record.Recovered)
	assert.Equal(t, "retry", record.RecoveryStrategy)
	assert.Equal(t, 1, strategy.calls)

	stats := h.Stats()
	assert.InDelta(t, 100.0, stats.RecoveryRate, 0.001)
}

func TestHandleErrorRecoveryWalkOrder(t *testing.T) {
	h := NewHandler(HandlerConfig{}, nil, nil)
	skipped := &stubStrategy{name: "auth_recovery", canRecover: false}
	exhausted := &stubStrategy{name: "retry", canRecover: true, sanction: false}
	sanctions := &stubStrategy{name: "config_recovery", canRecover: true, sanction: true}
	h.AddStrategy(skipped)
	h.AddStrategy(exhausted)
	h.AddStrategy(sanctions)

	record := h.HandleError(context.Background(), errors.New("whatever"),
		NewContext("scraper", "fetch"), true)

	assert.True(t, record.Recovered)
	assert.Equal(t, "config_recovery", record.RecoveryStrategy)
	assert.Equal(t, 0, skipped.calls, "inapplicable strategy must not be invoked")
	assert.Equal(t, 1, exhausted.calls)
	assert.Equal(t, 1, sanctions.calls)
}

func TestRecordCountsStrategyInvocations(t *testing.T) {
	h := NewHandler(HandlerConfig{}, nil, nil)
	skipped := &stubStrategy{name: "auth_recovery", canRecover: false}
	exhausted := &stubStrategy{name: "retry", canRecover: true, sanction: false}
	sanctions := &stubStrategy{name: "config_recovery", canRecover: true, sanction: true}
	h.AddStrategy(skipped)
	h.AddStrategy(exhausted)
	h.AddStrategy(sanctions)

	record := h.HandleError(context.Background(), errors.New("whatever"),
		NewContext("scraper", "fetch"), true)

	assert.Equal(t, 2, record.RecoveryAttempts, "only invoked strategies count")

	none := NewHandler(HandlerConfig{}, nil, nil)
	record = none.HandleError(context.Background(), errors.New("whatever"),
		NewContext("scraper", "fetch"), true)
	assert.Equal(t, 0, record.RecoveryAttempts)
}

func TestHandleErrorStrategyErrorContinuesWalk(t *testing.T) {
	h := NewHandler(HandlerConfig{}, nil, nil)
	failing := &stubStrategy{name: "auth_recovery", canRecover: true, err: errors.New("invalidate failed")}
	sanctions := &stubStrategy{name: "retry", canRecover: true, sanction: true}
	h.AddStrategy(failing)
	h.AddStrategy(sanctions)

	record := h.HandleError(context.Background(), errors.New("whatever"),
		NewContext("scraper", "fetch"), true)

	assert.True(t, record.Recovered)
	assert.Equal(t, "retry", record.RecoveryStrategy)
}

func TestHandleErrorStrategyCancellationStopsWalk(t *testing.T) {
	h := NewHandler(HandlerConfig{}, nil, nil)
	canceled := &stubStrategy{name: "retry", canRecover: true, err: context.Canceled}
	never := &stubStrategy{name: "config_recovery", canRecover: true, sanction: true}
	h.AddStrategy(canceled)
	h.AddStrategy(never)

	record := h.HandleError(context.Background(), errors.New("whatever"),
		NewContext("scraper", "fetch"), true)

	assert.False(t, record.Recovered)
	assert.Equal(t, 0, never.calls, "cancellation must stop the strategy walk")
}

func TestHandleErrorNoRecoveryWhenDisabled(t *testing.T) {
	h := NewHandler(HandlerConfig{}, nil, nil)
	strategy := &stubStrategy{name: "retry", canRecover: true, sanction: true}
	h.AddStrategy(strategy)

	record := h.HandleError(context.Background(), errors.New("connection refused"),
		NewContext("scraper", "fetch"), false)

	assert.False(t, record.Recovered)
	assert.Equal(t, 0, strategy.calls)
	assert.Zero(t, h.Stats().RecoveryRate)
}

func TestHighSeverityAlertsImmediately(t *testing.T) {
	sink := &captureSink{}
	h := NewHandler(HandlerConfig{}, sink, nil)

	h.HandleError(context.Background(), errors.New("out of memory"),
		NewContext("summarizer", "generate"), false)

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "critical", events[0].Severity)
	assert.Equal(t, "summarizer", events[0].Component)
}

func TestConsecutiveFailuresAlertAtThreshold(t *testing.T) {
	sink := &captureSink{}
	h := NewHandler(HandlerConfig{AlertThreshold: 3}, sink, nil)
	ctx := context.Background()

	// Low severity failures below the threshold stay quiet.
	h.HandleError(ctx, errors.New("connection refused"), NewContext("scraper", "fetch"), false)
	h.HandleError(ctx, errors.New("connection refused"), NewContext("scraper", "fetch"), false)
	assert.Empty(t, sink.Events())

	h.HandleError(ctx, errors.New("connection refused"), NewContext("scraper", "fetch"), false)
	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, 3, events[0].Metadata["consecutive_failures"])
}

func TestOnComponentSuccessResetsStreak(t *testing.T) {
	sink := &captureSink{}
	h := NewHandler(HandlerConfig{AlertThreshold: 3}, sink, nil)
	ctx := context.Background()

	h.HandleError(ctx, errors.New("connection refused"), NewContext("scraper", "fetch"), false)
	h.HandleError(ctx, errors.New("connection refused"), NewContext("scraper", "fetch"), false)
	h.OnComponentSuccess("scraper")
	h.HandleError(ctx, errors.New("connection refused"), NewContext("scraper", "fetch"), false)

	assert.Empty(t, sink.Events(), "success must reset the consecutive count")
}

func TestConsecutiveStreaksArePerComponent(t *testing.T) {
	sink := &captureSink{}
	h := NewHandler(HandlerConfig{AlertThreshold: 2}, sink, nil)
	ctx := context.Background()

	h.HandleError(ctx, errors.New("connection refused"), NewContext("scraper", "fetch"), false)
	h.HandleError(ctx, errors.New("connection refused"), NewContext("poster", "publish"), false)
	assert.Empty(t, sink.Events())

	h.HandleError(ctx, errors.New("connection refused"), NewContext("scraper", "fetch"), false)
	assert.Len(t, sink.Events(), 1)
}

func TestNotifyBreakerOpen(t *testing.T) {
	sink := &captureSink{}
	h := NewHandler(HandlerConfig{}, sink, nil)

	h.NotifyBreakerOpen("news-api")

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Title, "news-api")
	assert.Equal(t, "high", events[0].Severity)
}

func TestAlertSinkFailureDoesNotPropagate(t *testing.T) {
	failing := alert.Funcs(func(ctx context.Context, ev alert.Event) error {
		return errors.New("sink down")
	})
	h := NewHandler(HandlerConfig{}, failing, nil)

	record := h.HandleError(context.Background(), errors.New("out of memory"),
		NewContext("summarizer", "generate"), false)
	require.NotNil(t, record)
}

func TestHandleErrorConcurrent(t *testing.T) {
	h := NewHandler(HandlerConfig{HistoryCapacity: 50}, nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.HandleError(ctx, fmt.Errorf("worker %d failure %d", n, j),
					NewContext(fmt.Sprintf("component-%d", n), "op"), false)
			}
		}(i)
	}
	wg.Wait()

	stats := h.Stats()
	assert.Equal(t, uint64(800), stats.TotalErrors)
	assert.Len(t, stats.RecentErrors, 10)
}
