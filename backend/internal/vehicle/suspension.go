package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"raycar/backend/internal/transform"
	"raycar/backend/internal/world"
)

// RayCaster ищет ближайшее пересечение отрезка с миром
type RayCaster interface {
	Raycast(from, to mgl64.Vec3, exclude world.BodyHandle) (world.RayHit, bool)
}

// WheelState - состояние колеса на текущем шаге.
// Между шагами сохраняются только длина подвески и вращение колеса.
type WheelState struct {
	SuspensionLength     float64
	PrevSuspensionLength float64
	SuspensionForce      float64

	InContact     bool
	ContactPoint  mgl64.Vec3
	ContactNormal mgl64.Vec3
	ContactBody   world.BodyHandle

	EngineForce float64
	Brake       float64
	Steering    float64

	Rotation      float64
	DeltaRotation float64
	Sliding       bool
	SkidInfo      float64

	SideImpulse    float64
	ForwardImpulse float64

	Transform transform.Pose
}

// Suspension - лучевая модель подвески одного колеса
type Suspension struct {
	spec  WheelSpec
	state WheelState

	connectionWorld mgl64.Vec3
	directionWorld  mgl64.Vec3

	// скорость сжатия, спроецированная на подвеску, при первом касании
	contactVelocity float64
	clippedInv      float64
	firstContact    bool
}

// NewSuspension создает подвеску, полностью вытянутую и без контакта
func NewSuspension(spec WheelSpec) *Suspension {
	spec.Direction = spec.Direction.Normalize()
	spec.Axle = spec.Axle.Normalize()

	s := &Suspension{spec: spec, clippedInv: 1}
	s.state.SuspensionLength = spec.MaxLength()
	s.state.PrevSuspensionLength = spec.MaxLength()
	s.state.SkidInfo = 1
	s.state.Transform.Orientation = mgl64.QuatIdent()
	return s
}

// Spec возвращает параметры колеса
func (s *Suspension) Spec() WheelSpec {
	return s.spec
}

// State возвращает копию состояния колеса
func (s *Suspension) State() WheelState {
	return s.state
}

// updateWorldFrame переводит точку крепления и направление подвески в мировые оси
func (s *Suspension) updateWorldFrame(chassis *world.Body) {
	s.connectionWorld = chassis.PointToWorld(s.spec.ConnectionPoint)
	s.directionWorld = chassis.VectorToWorld(s.spec.Direction)
}

// Cast бросает луч из точки крепления вдоль подвески. Длина луча покрывает
// полный ход подвески плюс радиус колеса: луч меряет расстояние до пятна контакта.
func (s *Suspension) Cast(rc RayCaster, chassis *world.Body, exclude world.BodyHandle) {
	s.updateWorldFrame(chassis)

	st := &s.state
	wasInContact := st.InContact
	st.PrevSuspensionLength = st.SuspensionLength

	maxLength := s.spec.MaxLength()
	rayLength := maxLength + s.spec.Radius
	to := s.connectionWorld.Add(s.directionWorld.Mul(rayLength))

	hit, ok := rc.Raycast(s.connectionWorld, to, exclude)
	if !ok {
		st.InContact = false
		st.SuspensionLength = maxLength
		st.ContactPoint = to
		st.ContactNormal = s.directionWorld.Mul(-1)
		st.ContactBody = world.GroundHandle
		s.contactVelocity = 0
		s.clippedInv = 1
		s.firstContact = false
		return
	}

	st.InContact = true
	st.SuspensionLength = clamp(hit.Distance-s.spec.Radius, 0, maxLength)
	st.ContactPoint = hit.Point
	st.ContactNormal = hit.Normal
	st.ContactBody = hit.Body
	s.firstContact = !wasInContact

	// Почти касательный контакт: подвеска не может толкать вдоль нормали
	denominator := hit.Normal.Dot(s.directionWorld)
	if denominator >= -0.1 {
		s.contactVelocity = 0
		s.clippedInv = 1 / 0.1
		return
	}
	inv := -1 / denominator
	s.contactVelocity = hit.Normal.Dot(chassis.VelocityAt(hit.Point)) * inv
	s.clippedInv = inv
}

// ComputeForce считает силу пружины и демпфера. Жёсткость и демпфирование
// заданы на единицу массы корпуса. Результат в [0, MaxSuspensionForce].
func (s *Suspension) ComputeForce(dt, chassisMass float64) float64 {
	st := &s.state
	if !st.InContact {
		st.SuspensionForce = 0
		return 0
	}

	spring := s.spec.SuspensionStiffness * (s.spec.RestLength - st.SuspensionLength) * s.clippedInv

	velocity := s.contactVelocity
	if !s.firstContact && dt > 0 {
		velocity = (st.SuspensionLength - st.PrevSuspensionLength) / dt
	}
	damping := s.spec.DampingRelaxation
	if velocity < 0 {
		damping = s.spec.DampingCompression
	}

	force := (spring - damping*velocity) * chassisMass
	st.SuspensionForce = clamp(force, 0, s.spec.MaxSuspensionForce)
	return st.SuspensionForce
}

// Impulse возвращает импульс подвески за шаг dt и точку его приложения
func (s *Suspension) Impulse(dt float64) (mgl64.Vec3, mgl64.Vec3) {
	return s.state.ContactNormal.Mul(s.state.SuspensionForce * dt), s.state.ContactPoint
}

// updateTransform пересчитывает мировую позу колеса:
// корпус, затем поворот руля вокруг оси подвески, затем вращение вокруг оси колеса
func (s *Suspension) updateTransform(chassis *world.Body) {
	s.updateWorldFrame(chassis)

	up := s.spec.Direction.Mul(-1)
	steer := mgl64.QuatRotate(s.state.Steering, up)
	spin := mgl64.QuatRotate(s.state.Rotation, s.spec.Axle)

	s.state.Transform.Orientation = chassis.Orientation.Mul(steer).Mul(spin).Normalize()
	s.state.Transform.Position = s.connectionWorld.Add(s.directionWorld.Mul(s.state.SuspensionLength))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
