package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"raycar/backend/internal/input"
)

// DriveMode - состояние трансмиссии на текущем шаге
type DriveMode int

const (
	DriveCoasting DriveMode = iota
	DriveForward
	DriveReverse
	DriveBraking
)

func (m DriveMode) String() string {
	switch m {
	case DriveCoasting:
		return "coasting"
	case DriveForward:
		return "forward"
	case DriveReverse:
		return "reverse"
	case DriveBraking:
		return "braking"
	default:
		return "unknown"
	}
}

// SteerMode - положение руля на текущем шаге
type SteerMode int

const (
	SteerCenter SteerMode = iota
	SteerLeft
	SteerRight
)

func (m SteerMode) String() string {
	switch m {
	case SteerCenter:
		return "center"
	case SteerLeft:
		return "left"
	case SteerRight:
		return "right"
	default:
		return "unknown"
	}
}

// ApplySteering выставляет угол передних колёс. Одновременные влево и вправо дают ноль.
func (r *Rig) ApplySteering(intent input.Intent) {
	angle := 0.0
	mode := SteerCenter

	switch {
	case intent.SteerLeft && !intent.SteerRight:
		angle, mode = r.drive.MaxSteer, SteerLeft
	case intent.SteerRight && !intent.SteerLeft:
		angle, mode = -r.drive.MaxSteer, SteerRight
	}

	for _, s := range r.wheels {
		if s.spec.Role.Steered() {
			s.state.Steering = angle
		}
	}
	r.steerMode = mode
}

// ApplyDrivetrain выставляет силу двигателя и тормоз на всех колёсах.
// Приоритет: тормоз, газ, задний ход, холостой ход.
func (r *Rig) ApplyDrivetrain(intent input.Intent) {
	var engine, brake float64
	mode := DriveCoasting

	switch {
	case intent.Brake:
		brake, mode = r.drive.BrakeForce, DriveBraking
	case intent.Throttle:
		engine, mode = -r.drive.MaxForce, DriveForward
	case intent.Reverse:
		engine, mode = r.drive.MaxForce, DriveReverse
	default:
		brake = r.drive.SlowDown
	}

	for _, s := range r.wheels {
		s.state.EngineForce = engine
		s.state.Brake = brake
	}

	if mode != r.driveMode {
		r.logger.Debug("режим трансмиссии изменен",
			zap.Stringer("from", r.driveMode),
			zap.Stringer("to", mode))
	}
	r.driveMode = mode
}

// Reset возвращает корпус в точку появления с нулевыми скоростями.
// Подвески не сбрасываются и приходят в равновесие на следующих шагах.
func (r *Rig) Reset() {
	r.chassis.Teleport(r.drive.Spawn, mgl64.QuatIdent())
	r.resetPending = true
	r.logger.Info("машина сброшена",
		zap.Float64("x", r.drive.Spawn.X()),
		zap.Float64("y", r.drive.Spawn.Y()),
		zap.Float64("z", r.drive.Spawn.Z()))
}

// SetSteeringValue задает угол поворота колеса i, ограниченный MaxSteer
func (r *Rig) SetSteeringValue(i int, angle float64) error {
	s, err := r.wheel(i)
	if err != nil {
		return err
	}
	if !s.spec.Role.Steered() {
		return ErrNotSteered
	}
	if math.IsNaN(angle) {
		angle = 0
	}
	s.state.Steering = clamp(angle, -r.drive.MaxSteer, r.drive.MaxSteer)
	return nil
}

// ApplyEngineForce задает силу двигателя на колесе i
func (r *Rig) ApplyEngineForce(i int, force float64) error {
	s, err := r.wheel(i)
	if err != nil {
		return err
	}
	s.state.EngineForce = force
	return nil
}

// SetBrake задает тормоз на колесе i
func (r *Rig) SetBrake(i int, brake float64) error {
	s, err := r.wheel(i)
	if err != nil {
		return err
	}
	s.state.Brake = math.Abs(brake)
	return nil
}

// Mode возвращает состояние трансмиссии и руля
func (r *Rig) Mode() (DriveMode, SteerMode) {
	return r.driveMode, r.steerMode
}
