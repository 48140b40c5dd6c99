package vehicle

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"raycar/backend/internal/input"
	"raycar/backend/internal/transform"
	"raycar/backend/internal/world"
)

// World - часть мира твёрдых тел, которой пользуется машина
type World interface {
	RayCaster
	AddBody(b *world.Body) world.BodyHandle
	RemoveBody(h world.BodyHandle) error
	Body(h world.BodyHandle) (*world.Body, bool)
}

// AxisConfig - индексы локальных осей корпуса
type AxisConfig struct {
	Right   int
	Up      int
	Forward int
}

// DefaultAxes: X вправо по оси колеса, Y вверх, Z вперед
func DefaultAxes() AxisConfig {
	return AxisConfig{Right: 0, Up: 1, Forward: 2}
}

func (a AxisConfig) validate() error {
	seen := [3]bool{}
	for _, i := range []int{a.Right, a.Up, a.Forward} {
		if i < 0 || i > 2 || seen[i] {
			return configErr("axes", "must be a permutation of 0, 1, 2, got %+v", a)
		}
		seen[i] = true
	}
	return nil
}

// Option настраивает машину при создании
type Option func(*Rig)

// WithLogger задает логгер
func WithLogger(logger *zap.Logger) Option {
	return func(r *Rig) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSync задает синхронизатор представления
func WithSync(s *transform.Sync) Option {
	return func(r *Rig) {
		if s != nil {
			r.sync = s
		}
	}
}

// WithAxes задает локальные оси корпуса
func WithAxes(axes AxisConfig) Option {
	return func(r *Rig) {
		r.axes = axes
	}
}

// Outputs - результат шага, который получают потребители после шага физики
type Outputs struct {
	Step        uint64
	Time        float64
	Snapshot    transform.Snapshot
	Chassis     world.BodyState
	Wheels      [WheelCount]WheelState
	SpeedKmHour float64
	Drive       DriveMode
	Steer       SteerMode
	Reset       bool
}

// Rig - машина: корпус в мире и четыре лучевых подвески.
// Методы вызываются из горутины симуляции.
type Rig struct {
	w      World
	logger *zap.Logger
	sync   *transform.Sync

	chassisSpec ChassisSpec
	drive       DriveSpec
	axes        AxisConfig

	chassis *world.Body
	handle  world.BodyHandle
	wheels  [WheelCount]*Suspension

	driveMode    DriveMode
	steerMode    SteerMode
	speedKmHour  float64
	resetPending bool
	closed       bool
}

// New проверяет конфигурацию, регистрирует корпус в мире и строит подвески
func New(w World, chassis ChassisSpec, wheels [WheelCount]WheelSpec, drive DriveSpec, opts ...Option) (*Rig, error) {
	if w == nil {
		return nil, configErr("world", "is nil")
	}
	if err := chassis.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateWheels(wheels); err != nil {
		return nil, err
	}
	if err := drive.Validate(); err != nil {
		return nil, err
	}

	r := &Rig{
		w:           w,
		logger:      zap.NewNop(),
		chassisSpec: chassis,
		drive:       drive,
		axes:        DefaultAxes(),
		driveMode:   DriveCoasting,
		steerMode:   SteerCenter,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.axes.validate(); err != nil {
		return nil, err
	}
	r.logger = r.logger.Named("rig")
	if r.sync == nil {
		r.sync = transform.New(mgl64.Vec3{})
	}

	body := world.NewBoxBody(chassis.HalfExtents(), chassis.Mass, world.Material{})
	body.Teleport(drive.Spawn, mgl64.QuatIdent())
	r.chassis = body
	r.handle = w.AddBody(body)

	for i, spec := range wheels {
		r.wheels[i] = NewSuspension(spec)
		r.wheels[i].updateTransform(body)
	}

	r.logger.Info("машина создана",
		zap.Uint32("handle", uint32(r.handle)),
		zap.Float64("mass", chassis.Mass),
		zap.Int("wheels", WheelCount))

	return r, nil
}

// Handle возвращает идентификатор корпуса в мире
func (r *Rig) Handle() world.BodyHandle {
	return r.handle
}

// Chassis возвращает состояние корпуса
func (r *Rig) Chassis() world.BodyState {
	return r.chassis.State()
}

// ChassisSpec возвращает параметры корпуса
func (r *Rig) ChassisSpec() ChassisSpec {
	return r.chassisSpec
}

// DriveSpec возвращает константы управления
func (r *Rig) DriveSpec() DriveSpec {
	return r.drive
}

// Sync возвращает синхронизатор представления
func (r *Rig) Sync() *transform.Sync {
	return r.sync
}

// Wheel возвращает состояние колеса i
func (r *Rig) Wheel(i int) (WheelState, error) {
	s, err := r.wheel(i)
	if err != nil {
		return WheelState{}, err
	}
	return s.state, nil
}

// WheelSpec возвращает параметры колеса i
func (r *Rig) WheelSpec(i int) (WheelSpec, error) {
	s, err := r.wheel(i)
	if err != nil {
		return WheelSpec{}, err
	}
	return s.spec, nil
}

// Wheels возвращает состояния всех колёс
func (r *Rig) Wheels() [WheelCount]WheelState {
	var out [WheelCount]WheelState
	for i, s := range r.wheels {
		out[i] = s.state
	}
	return out
}

// SpeedKmHour возвращает скорость в км/ч, положительную при движении вперед
func (r *Rig) SpeedKmHour() float64 {
	return r.speedKmHour
}

// Update выполняется до шага физики: сброс по фронту, руль, трансмиссия,
// лучи подвесок, силы пружин и импульсы шин.
func (r *Rig) Update(dt float64, intent input.Intent) error {
	if r.closed {
		return ErrClosed
	}
	if !finite(dt) || dt <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTimeStep, dt)
	}

	if intent.Reset {
		r.Reset()
	}
	r.ApplySteering(intent)
	r.ApplyDrivetrain(intent)
	r.updateVehicle(dt)
	return nil
}

func (r *Rig) updateVehicle(dt float64) {
	for _, s := range r.wheels {
		s.updateTransform(r.chassis)
	}
	r.updateSpeed()

	for _, s := range r.wheels {
		s.Cast(r.w, r.chassis, r.handle)
	}

	for _, s := range r.wheels {
		if s.ComputeForce(dt, r.chassis.Mass) <= 0 {
			continue
		}
		impulse, at := s.Impulse(dt)
		r.chassis.ApplyImpulse(impulse, at.Sub(r.chassis.Position))
	}

	r.updateFriction(dt)
	r.updateWheelSpin(dt)
}

// OnPostStep выполняется после шага физики: пересчитывает позы колёс
// и передаёт позы в синхронизатор. Силы не применяются.
func (r *Rig) OnPostStep(res world.StepResult) Outputs {
	var poses [WheelCount]transform.Pose
	for i, s := range r.wheels {
		s.updateTransform(r.chassis)
		poses[i] = s.state.Transform
	}
	r.updateSpeed()

	chassis := r.chassis.State()
	snap := r.sync.Apply(res.Step, transform.Pose{
		Position:    chassis.Position,
		Orientation: chassis.Orientation,
	}, poses)

	out := Outputs{
		Step:        res.Step,
		Time:        res.Time,
		Snapshot:    snap,
		Chassis:     chassis,
		Wheels:      r.Wheels(),
		SpeedKmHour: r.speedKmHour,
		Drive:       r.driveMode,
		Steer:       r.steerMode,
		Reset:       r.resetPending,
	}
	r.resetPending = false
	return out
}

// UpdateWheelTransform пересчитывает и возвращает мировую позу колеса i
func (r *Rig) UpdateWheelTransform(i int) (transform.Pose, error) {
	s, err := r.wheel(i)
	if err != nil {
		return transform.Pose{}, err
	}
	s.updateTransform(r.chassis)
	return s.state.Transform, nil
}

// Close снимает корпус с мира. Повторный вызов ничего не делает.
func (r *Rig) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.w.RemoveBody(r.handle); err != nil {
		return fmt.Errorf("remove chassis: %w", err)
	}
	r.logger.Info("машина удалена", zap.Uint32("handle", uint32(r.handle)))
	return nil
}

func (r *Rig) wheel(i int) (*Suspension, error) {
	if i < 0 || i >= WheelCount {
		return nil, fmt.Errorf("%w: %d", ErrWheelIndex, i)
	}
	return r.wheels[i], nil
}

func (r *Rig) updateSpeed() {
	v := r.chassis.Velocity
	speed := 3.6 * v.Len()
	forward := r.chassis.VectorToWorld(r.axisVector(r.axes.Forward))
	if forward.Dot(v) < 0 {
		speed = -speed
	}
	r.speedKmHour = speed
}

func (r *Rig) axisVector(i int) mgl64.Vec3 {
	var v mgl64.Vec3
	v[i] = 1
	return v
}

// contactBody возвращает подвижное тело под колесом или nil для земли и статики
func (r *Rig) contactBody(h world.BodyHandle) *world.Body {
	if h == world.GroundHandle {
		return nil
	}
	b, ok := r.w.Body(h)
	if !ok || b.IsStatic() {
		return nil
	}
	return b
}
