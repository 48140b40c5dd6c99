package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "raycar/backend/internal/game"

// TickSystem интерфейс для всех систем симуляции
type TickSystem interface {
	Update(deltaTime time.Duration) error
	GetName() string
	GetPriority() int // Приоритет выполнения (меньше = раньше)
}

// Ticker - цикл симуляции с фиксированным шагом.
// Реальное время копится в аккумуляторе и расходуется целыми шагами,
// не больше maxSubSteps за одно срабатывание таймера.
type Ticker struct {
	// Конфигурация
	targetTPS    int
	tickDuration time.Duration
	maxTickTime  time.Duration
	maxSubSteps  int

	// Состояние
	mu           sync.RWMutex
	isRunning    bool
	tickCount    uint64
	startTime    time.Time
	lastTickTime time.Time
	accumulator  time.Duration

	// Системы
	systems      []TickSystem
	systemsMutex sync.RWMutex

	perfMonitor *PerformanceMonitor

	// Метрики
	averageTickTime time.Duration
	maxObservedTick time.Duration
	skippedTicks    uint64

	ticksCounter   metric.Int64Counter
	skippedCounter metric.Int64Counter
	tickHistogram  metric.Float64Histogram
	metricAttrs    metric.MeasurementOption

	logger           *zap.Logger
	warningThreshold time.Duration
}

// TickerOption настраивает тикер
type TickerOption func(*tickerOptions)

type tickerOptions struct {
	maxSubSteps int
	meter       metric.Meter
}

// WithMaxSubSteps ограничивает число шагов за одно срабатывание таймера
func WithMaxSubSteps(n int) TickerOption {
	return func(o *tickerOptions) {
		if n > 0 {
			o.maxSubSteps = n
		}
	}
}

// WithMeter задает otel meter (по умолчанию глобальный)
func WithMeter(m metric.Meter) TickerOption {
	return func(o *tickerOptions) {
		if m != nil {
			o.meter = m
		}
	}
}

// NewTicker создает тикер с частотой targetTPS
func NewTicker(targetTPS int, logger *zap.Logger, opts ...TickerOption) (*Ticker, error) {
	if targetTPS <= 0 {
		targetTPS = 60
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := tickerOptions{maxSubSteps: 5}
	for _, opt := range opts {
		opt(&o)
	}
	if o.meter == nil {
		o.meter = otel.Meter(instrumentationName)
	}

	tickDuration := time.Second / time.Duration(targetTPS)

	t := &Ticker{
		targetTPS:        targetTPS,
		tickDuration:     tickDuration,
		maxTickTime:      tickDuration * 2,
		maxSubSteps:      o.maxSubSteps,
		perfMonitor:      NewPerformanceMonitor(50, tickDuration/4), // Предупреждение при 25% от тика
		logger:           logger.Named("ticker"),
		warningThreshold: tickDuration / 2,
		metricAttrs:      metric.WithAttributes(attribute.Int("tps", targetTPS)),
	}

	var err error
	t.ticksCounter, err = o.meter.Int64Counter(
		"raycar.ticks",
		metric.WithDescription("Total simulation ticks executed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	t.skippedCounter, err = o.meter.Int64Counter(
		"raycar.ticks.skipped",
		metric.WithDescription("Simulation ticks dropped because the loop fell behind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}

	t.tickHistogram, err = o.meter.Float64Histogram(
		"raycar.tick.duration",
		metric.WithDescription("Wall time spent in one simulation tick"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick histogram: %w", err)
	}

	return t, nil
}

// TickDuration возвращает фиксированный шаг
func (t *Ticker) TickDuration() time.Duration {
	return t.tickDuration
}

// RegisterSystem добавляет систему в цикл
func (t *Ticker) RegisterSystem(system TickSystem) {
	t.systemsMutex.Lock()
	defer t.systemsMutex.Unlock()

	t.systems = append(t.systems, system)

	// Сортируем по приоритету (меньше = выше приоритет)
	for i := len(t.systems) - 1; i > 0; i-- {
		if t.systems[i].GetPriority() < t.systems[i-1].GetPriority() {
			t.systems[i], t.systems[i-1] = t.systems[i-1], t.systems[i]
		} else {
			break
		}
	}

	t.perfMonitor.initSystemMetrics(system.GetName())

	t.logger.Info("система зарегистрирована",
		zap.String("system", system.GetName()),
		zap.Int("priority", system.GetPriority()))
}

// Run крутит цикл до отмены контекста
func (t *Ticker) Run(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return fmt.Errorf("ticker already running")
	}
	t.isRunning = true
	t.startTime = time.Now()
	t.lastTickTime = t.startTime
	t.mu.Unlock()

	t.logger.Info("запуск цикла симуляции",
		zap.Int("tps", t.targetTPS),
		zap.Duration("tick", t.tickDuration),
		zap.Int("maxSubSteps", t.maxSubSteps))

	ticker := time.NewTicker(t.tickDuration)
	defer ticker.Stop()

	defer func() {
		t.mu.Lock()
		t.isRunning = false
		t.mu.Unlock()
		t.logger.Info("цикл симуляции остановлен", zap.Uint64("ticks", t.TickCount()))
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			t.mu.Lock()
			elapsed := now.Sub(t.lastTickTime)
			t.lastTickTime = now
			t.mu.Unlock()

			t.advance(ctx, elapsed)
		}
	}
}

// advance добавляет прошедшее время и выполняет накопившиеся шаги
func (t *Ticker) advance(ctx context.Context, elapsed time.Duration) int {
	t.mu.Lock()
	t.accumulator += elapsed
	t.mu.Unlock()

	steps := 0
	for steps < t.maxSubSteps {
		t.mu.Lock()
		if t.accumulator < t.tickDuration {
			t.mu.Unlock()
			break
		}
		t.accumulator -= t.tickDuration
		t.mu.Unlock()

		t.executeTick(ctx)
		steps++
	}

	// Отстали больше чем на maxSubSteps: остаток времени отбрасываем
	t.mu.Lock()
	behind := t.accumulator / t.tickDuration
	if behind > 0 {
		t.skippedTicks += uint64(behind)
		t.accumulator -= behind * t.tickDuration
	}
	t.mu.Unlock()

	if behind > 0 {
		t.skippedCounter.Add(ctx, int64(behind), t.metricAttrs)
		t.logger.Warn("цикл отстает, шаги пропущены",
			zap.Int64("skipped", int64(behind)),
			zap.Int("executed", steps))
	}
	return steps
}

// executeTick выполняет один шаг всех систем
func (t *Ticker) executeTick(ctx context.Context) {
	tickStart := time.Now()

	t.mu.Lock()
	t.tickCount++
	t.mu.Unlock()

	t.executeAllSystems(t.tickDuration)

	total := time.Since(tickStart)
	t.updateTickMetrics(total)
	t.ticksCounter.Add(ctx, 1, t.metricAttrs)
	t.tickHistogram.Record(ctx, float64(total.Microseconds())/1000, t.metricAttrs)
	t.checkPerformance(total)
}

func (t *Ticker) executeAllSystems(deltaTime time.Duration) {
	t.systemsMutex.RLock()
	systems := make([]TickSystem, len(t.systems))
	copy(systems, t.systems)
	t.systemsMutex.RUnlock()

	for _, system := range systems {
		t.executeSystem(system, deltaTime)
	}
}

// executeSystem выполняет одну систему с замером времени. Паника системы не роняет цикл.
func (t *Ticker) executeSystem(system TickSystem, deltaTime time.Duration) {
	systemStart := time.Now()
	systemName := system.GetName()

	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("паника в системе",
				zap.String("system", systemName),
				zap.Any("panic", r))
			t.perfMonitor.recordError(systemName)
		}
	}()

	err := system.Update(deltaTime)

	t.perfMonitor.recordExecution(systemName, time.Since(systemStart))

	if err != nil {
		t.logger.Error("ошибка в системе",
			zap.String("system", systemName),
			zap.Error(err))
		t.perfMonitor.recordError(systemName)
	}
}

// Stats - статистика цикла
type Stats struct {
	TargetTPS       int                    `json:"targetTps"`
	ActualTPS       float64                `json:"actualTps"`
	TickCount       uint64                 `json:"tickCount"`
	UptimeSeconds   float64                `json:"uptimeSeconds"`
	AverageTickTime time.Duration          `json:"averageTickTime"`
	MaxObservedTick time.Duration          `json:"maxObservedTick"`
	SkippedTicks    uint64                 `json:"skippedTicks"`
	Running         bool                   `json:"running"`
	Systems         map[string]SystemStats `json:"systems"`
}

// Stats возвращает статистику цикла
func (t *Ticker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Stats{
		TargetTPS:       t.targetTPS,
		TickCount:       t.tickCount,
		AverageTickTime: t.averageTickTime,
		MaxObservedTick: t.maxObservedTick,
		SkippedTicks:    t.skippedTicks,
		Running:         t.isRunning,
		Systems:         t.perfMonitor.SystemsStats(),
	}
	if !t.startTime.IsZero() {
		uptime := time.Since(t.startTime)
		s.UptimeSeconds = uptime.Seconds()
		if uptime > 0 {
			s.ActualTPS = float64(t.tickCount) / uptime.Seconds()
		}
	}
	return s
}

// TickCount возвращает число выполненных шагов
func (t *Ticker) TickCount() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tickCount
}

func (t *Ticker) updateTickMetrics(tickTime time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if tickTime > t.maxObservedTick {
		t.maxObservedTick = tickTime
	}

	// Простое скользящее среднее
	if t.averageTickTime == 0 {
		t.averageTickTime = tickTime
	} else {
		t.averageTickTime = (t.averageTickTime*9 + tickTime) / 10
	}
}

func (t *Ticker) checkPerformance(tickTime time.Duration) {
	if tickTime > t.maxTickTime {
		t.logger.Warn("шаг превысил максимальное время",
			zap.Duration("tick", tickTime),
			zap.Duration("max", t.maxTickTime),
			zap.Duration("target", t.tickDuration))
	} else if tickTime > t.warningThreshold {
		t.logger.Debug("медленный шаг",
			zap.Duration("tick", tickTime),
			zap.Duration("target", t.tickDuration))
	}
}
