package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

type recordingSystem struct {
	name     string
	priority int
	err      error
	panics   bool

	mu    sync.Mutex
	calls []time.Duration
	order *[]string
}

func (s *recordingSystem) Update(dt time.Duration) error {
	s.mu.Lock()
	s.calls = append(s.calls, dt)
	if s.order != nil {
		*s.order = append(*s.order, s.name)
	}
	s.mu.Unlock()

	if s.panics {
		panic("boom")
	}
	return s.err
}

func (s *recordingSystem) GetName() string  { return s.name }
func (s *recordingSystem) GetPriority() int { return s.priority }

func (s *recordingSystem) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func newTestTicker(t *testing.T, tps int, opts ...TickerOption) *Ticker {
	t.Helper()
	opts = append(opts, WithMeter(noop.Meter{}))
	ticker, err := NewTicker(tps, nil, opts...)
	require.NoError(t, err)
	return ticker
}

func TestTickerFixedStep(t *testing.T) {
	ticker := newTestTicker(t, 50)
	sys := &recordingSystem{name: "sys"}
	ticker.RegisterSystem(sys)

	ctx := context.Background()
	assert.Equal(t, 0, ticker.advance(ctx, 10*time.Millisecond))
	assert.Equal(t, 1, ticker.advance(ctx, 10*time.Millisecond))
	assert.Equal(t, 2, ticker.advance(ctx, 45*time.Millisecond))

	require.Equal(t, 3, sys.count())
	for _, dt := range sys.calls {
		assert.Equal(t, 20*time.Millisecond, dt)
	}
	assert.Equal(t, uint64(3), ticker.TickCount())
}

func TestTickerDropsTimeBeyondMaxSubSteps(t *testing.T) {
	ticker := newTestTicker(t, 100, WithMaxSubSteps(3))
	sys := &recordingSystem{name: "sys"}
	ticker.RegisterSystem(sys)

	steps := ticker.advance(context.Background(), 105*time.Millisecond)
	assert.Equal(t, 3, steps)

	stats := ticker.Stats()
	assert.Equal(t, uint64(3), stats.TickCount)
	assert.Equal(t, uint64(7), stats.SkippedTicks)
}

func TestTickerPriorityOrder(t *testing.T) {
	ticker := newTestTicker(t, 60)
	var order []string

	ticker.RegisterSystem(&recordingSystem{name: "telemetry", priority: 100, order: &order})
	ticker.RegisterSystem(&recordingSystem{name: "simulation", priority: 0, order: &order})
	ticker.RegisterSystem(&recordingSystem{name: "broadcast", priority: 50, order: &order})

	ticker.executeTick(context.Background())
	assert.Equal(t, []string{"simulation", "broadcast", "telemetry"}, order)
}

func TestTickerRecoversFromPanicsAndErrors(t *testing.T) {
	ticker := newTestTicker(t, 60)
	bad := &recordingSystem{name: "bad", panics: true}
	failing := &recordingSystem{name: "failing", priority: 1, err: errors.New("nope")}
	good := &recordingSystem{name: "good", priority: 2}
	ticker.RegisterSystem(bad)
	ticker.RegisterSystem(failing)
	ticker.RegisterSystem(good)

	ticker.executeTick(context.Background())
	ticker.executeTick(context.Background())

	assert.Equal(t, 2, good.count())
	stats := ticker.Stats()
	assert.Equal(t, uint64(2), stats.Systems["bad"].Errors)
	assert.Equal(t, uint64(2), stats.Systems["failing"].Errors)
	assert.Equal(t, uint64(0), stats.Systems["good"].Errors)
	assert.Equal(t, uint64(2), stats.Systems["good"].TotalExecutions)
}

func TestTickerRunStopsOnCancel(t *testing.T) {
	ticker := newTestTicker(t, 200)
	sys := &recordingSystem{name: "sys"}
	ticker.RegisterSystem(sys)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ticker.Run(ctx) }()

	require.Eventually(t, func() bool { return sys.count() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, ticker.Stats().Running)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ticker did not stop")
	}
	assert.False(t, ticker.Stats().Running)
}

func TestPerformanceMonitorAverage(t *testing.T) {
	pm := NewPerformanceMonitor(2, time.Millisecond)
	pm.initSystemMetrics("sys")

	pm.recordExecution("sys", 2*time.Millisecond)
	pm.recordExecution("sys", 4*time.Millisecond)
	pm.recordExecution("sys", 6*time.Millisecond)

	stats := pm.SystemsStats()["sys"]
	assert.Equal(t, 5*time.Millisecond, stats.AverageTime)
	assert.Equal(t, 6*time.Millisecond, stats.MaxTime)
	assert.Equal(t, uint64(3), stats.TotalExecutions)
	assert.True(t, stats.Slow)
	assert.True(t, stats.Critical)
}
