package game

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"raycar/backend/internal/input"
	"raycar/backend/internal/vehicle"
	"raycar/backend/internal/world"
)

// ErrInvalidStep возвращается для неположительного шага симуляции
var ErrInvalidStep = errors.New("game: step must be positive")

// Consumer получает результат каждого шага в горутине симуляции.
// Реализация не должна блокироваться.
type Consumer interface {
	OnSnapshot(out vehicle.Outputs)
}

// ConsumerFunc позволяет использовать функцию как Consumer
type ConsumerFunc func(out vehicle.Outputs)

func (f ConsumerFunc) OnSnapshot(out vehicle.Outputs) { f(out) }

// EventSink принимает события ввода из любых горутин
type EventSink interface {
	Push(ev input.Event) bool
}

// Simulation - один шаг: ввод, машина до шага, мир, машина после шага, потребители
type Simulation struct {
	world *world.World
	rig   *vehicle.Rig
	state *input.State
	queue *input.Queue

	consumersMu sync.RWMutex
	consumers   []Consumer

	logger   *zap.Logger
	priority int
}

// NewSimulation связывает мир, машину и очередь ввода
func NewSimulation(w *world.World, rig *vehicle.Rig, queue *input.Queue, logger *zap.Logger) *Simulation {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queue == nil {
		queue = input.NewQueue(0)
	}
	return &Simulation{
		world:  w,
		rig:    rig,
		state:  input.NewState(),
		queue:  queue,
		logger: logger.Named("simulation"),
	}
}

// World возвращает мир
func (s *Simulation) World() *world.World {
	return s.world
}

// Rig возвращает машину
func (s *Simulation) Rig() *vehicle.Rig {
	return s.rig
}

// Push ставит событие ввода в очередь. Безопасен из любых горутин.
func (s *Simulation) Push(ev input.Event) bool {
	if s.queue.Push(ev) {
		return true
	}
	s.logger.Warn("очередь ввода переполнена, событие отброшено",
		zap.String("key", ev.Key),
		zap.Bool("down", ev.Down))
	return false
}

// Subscribe добавляет потребителя результатов шага
func (s *Simulation) Subscribe(c Consumer) {
	s.consumersMu.Lock()
	s.consumers = append(s.consumers, c)
	s.consumersMu.Unlock()
}

// Tick выполняет один шаг симуляции длиной dt секунд
func (s *Simulation) Tick(dt float64) (vehicle.Outputs, error) {
	if dt <= 0 {
		return vehicle.Outputs{}, fmt.Errorf("%w: %v", ErrInvalidStep, dt)
	}

	s.queue.Drain(s.state)
	intent := s.state.TakeIntent()

	if err := s.rig.Update(dt, intent); err != nil {
		return vehicle.Outputs{}, fmt.Errorf("vehicle update: %w", err)
	}

	res := s.world.Step(dt)
	out := s.rig.OnPostStep(res)

	if out.Reset {
		s.logger.Info("машина сброшена по нажатию", zap.Uint64("step", out.Step))
	}

	s.consumersMu.RLock()
	consumers := make([]Consumer, len(s.consumers))
	copy(consumers, s.consumers)
	s.consumersMu.RUnlock()

	for _, c := range consumers {
		c.OnSnapshot(out)
	}
	return out, nil
}

// Held возвращает удерживаемые клавиши. Только для горутины симуляции.
func (s *Simulation) Held() []string {
	return s.state.Held()
}

// Update реализует TickSystem
func (s *Simulation) Update(deltaTime time.Duration) error {
	_, err := s.Tick(deltaTime.Seconds())
	return err
}

// GetName возвращает имя системы
func (s *Simulation) GetName() string {
	return "Simulation"
}

// GetPriority возвращает приоритет системы
func (s *Simulation) GetPriority() int {
	return s.priority
}
