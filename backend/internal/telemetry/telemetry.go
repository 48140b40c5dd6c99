package telemetry

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"raycar/backend/internal/vehicle"
)

// Sample - состояние машины на одном шаге
type Sample struct {
	Step        uint64                          `json:"step"`
	Time        float64                         `json:"time"`
	Position    mgl64.Vec3                      `json:"position"`
	Velocity    mgl64.Vec3                      `json:"velocity"`
	SpeedKmHour float64                         `json:"speedKmHour"`
	Drive       string                          `json:"drive"`
	Steer       string                          `json:"steer"`
	Wheels      [vehicle.WheelCount]WheelSample `json:"wheels"`
	Reset       bool                            `json:"reset,omitempty"`
}

// WheelSample - состояние одного колеса
type WheelSample struct {
	InContact        bool    `json:"inContact"`
	SuspensionLength float64 `json:"suspensionLength"`
	SuspensionForce  float64 `json:"suspensionForce"`
	EngineForce      float64 `json:"engineForce"`
	Brake            float64 `json:"brake"`
	Steering         float64 `json:"steering"`
	Sliding          bool    `json:"sliding"`
	SkidInfo         float64 `json:"skidInfo"`
}

// Config - настройки записи
type Config struct {
	Enabled       bool
	PrintInterval time.Duration
	BufferSize    int
}

// Recorder копит последние шаги машины и периодически пишет сводку в лог
type Recorder struct {
	enabled bool
	data    []Sample
	next    int
	full    bool
	mutex   sync.RWMutex

	// Счетчики с последней сводки
	counters      map[string]int
	lastPrint     time.Time
	printInterval time.Duration

	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder создает запись телеметрии
func NewRecorder(cfg Config, logger *zap.Logger) *Recorder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 600
	}
	if cfg.PrintInterval <= 0 {
		cfg.PrintInterval = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		enabled:       cfg.Enabled,
		data:          make([]Sample, cfg.BufferSize),
		counters:      make(map[string]int),
		lastPrint:     time.Now(),
		printInterval: cfg.PrintInterval,
		logger:        logger.Named("telemetry"),
		now:           time.Now,
	}
}

// OnSnapshot записывает результат шага симуляции
func (r *Recorder) OnSnapshot(out vehicle.Outputs) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.enabled {
		return
	}

	s := Sample{
		Step:        out.Step,
		Time:        out.Time,
		Position:    out.Chassis.Position,
		Velocity:    out.Chassis.Velocity,
		SpeedKmHour: out.SpeedKmHour,
		Drive:       out.Drive.String(),
		Steer:       out.Steer.String(),
		Reset:       out.Reset,
	}
	contacts := 0
	for i, w := range out.Wheels {
		s.Wheels[i] = WheelSample{
			InContact:        w.InContact,
			SuspensionLength: w.SuspensionLength,
			SuspensionForce:  w.SuspensionForce,
			EngineForce:      w.EngineForce,
			Brake:            w.Brake,
			Steering:         w.Steering,
			Sliding:          w.Sliding,
			SkidInfo:         w.SkidInfo,
		}
		if w.InContact {
			contacts++
		}
		if w.Sliding {
			r.counters["sliding"]++
		}
	}

	r.data[r.next] = s
	r.next = (r.next + 1) % len(r.data)
	if r.next == 0 {
		r.full = true
	}

	r.counters["steps"]++
	r.counters["drive_"+s.Drive]++
	if contacts == 0 {
		r.counters["airborne"]++
	}
	if out.Reset {
		r.counters["resets"]++
	}
}

// PrintSummary пишет сводку, если прошел интервал
func (r *Recorder) PrintSummary() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.enabled {
		return false
	}
	now := r.now()
	if now.Sub(r.lastPrint) < r.printInterval {
		return false
	}

	fields := []zap.Field{zap.Int("samples", r.lenLocked())}
	for key, count := range r.counters {
		fields = append(fields, zap.Int(key, count))
	}
	if last, ok := r.lastLocked(); ok {
		fields = append(fields,
			zap.Uint64("step", last.Step),
			zap.Float64("speedKmHour", last.SpeedKmHour),
			zap.Float64s("position", last.Position[:]),
			zap.String("drive", last.Drive),
			zap.String("steer", last.Steer))
	}
	r.logger.Info("телеметрия машины", fields...)

	r.counters = make(map[string]int)
	r.lastPrint = now
	return true
}

// Samples возвращает записи от старых к новым
func (r *Recorder) Samples() []Sample {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	n := r.lenLocked()
	out := make([]Sample, 0, n)
	start := 0
	if r.full {
		start = r.next
	}
	for i := 0; i < n; i++ {
		out = append(out, r.data[(start+i)%len(r.data)])
	}
	return out
}

// Last возвращает последнюю запись
func (r *Recorder) Last() (Sample, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.lastLocked()
}

// JSON возвращает записи в JSON
func (r *Recorder) JSON() ([]byte, error) {
	return json.Marshal(r.Samples())
}

// SetEnabled включает/выключает запись
func (r *Recorder) SetEnabled(enabled bool) {
	r.mutex.Lock()
	r.enabled = enabled
	r.mutex.Unlock()

	r.logger.Info("запись телеметрии переключена", zap.Bool("enabled", enabled))
}

// Clear очищает записи и счетчики
func (r *Recorder) Clear() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.next = 0
	r.full = false
	r.counters = make(map[string]int)
}

// Update реализует TickSystem
func (r *Recorder) Update(time.Duration) error {
	r.PrintSummary()
	return nil
}

// GetName возвращает имя системы
func (r *Recorder) GetName() string {
	return "Telemetry"
}

// GetPriority возвращает приоритет системы
func (r *Recorder) GetPriority() int {
	return 100
}

func (r *Recorder) lenLocked() int {
	if r.full {
		return len(r.data)
	}
	return r.next
}

func (r *Recorder) lastLocked() (Sample, bool) {
	if r.lenLocked() == 0 {
		return Sample{}, false
	}
	return r.data[(r.next-1+len(r.data))%len(r.data)], true
}
