package vehicle

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// WheelCount - число колёс машины
const WheelCount = 4

// WheelRole - положение колеса на машине
type WheelRole int

const (
	FrontLeft WheelRole = iota
	FrontRight
	RearLeft
	RearRight
)

var wheelRoleNames = map[WheelRole]string{
	FrontLeft:  "front-left",
	FrontRight: "front-right",
	RearLeft:   "rear-left",
	RearRight:  "rear-right",
}

func (r WheelRole) String() string {
	if name, ok := wheelRoleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("WheelRole(%d)", int(r))
}

// Steered сообщает, что колесо поворачивается рулём. Поворачиваются только передние.
func (r WheelRole) Steered() bool {
	return r == FrontLeft || r == FrontRight
}

// Right сообщает, что колесо стоит справа. Меш правых колёс зеркалится.
func (r WheelRole) Right() bool {
	return r == FrontRight || r == RearRight
}

// ParseWheelRole разбирает имя роли ("front-left", "rear_right", ...)
func ParseWheelRole(s string) (WheelRole, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for role, n := range wheelRoleNames {
		if n == name {
			return role, nil
		}
	}
	return 0, fmt.Errorf("unknown wheel role %q", s)
}

// ChassisSpec описывает корпус машины. Материал корпуса без трения: сцепление дают только шины.
type ChassisSpec struct {
	Dimensions mgl64.Vec3 // полные размеры бокса
	Mass       float64
}

// HalfExtents возвращает полуразмеры бокса
func (c ChassisSpec) HalfExtents() mgl64.Vec3 {
	return c.Dimensions.Mul(0.5)
}

// DefaultChassisSpec возвращает корпус стандартной машины
func DefaultChassisSpec() ChassisSpec {
	return ChassisSpec{
		Dimensions: mgl64.Vec3{1.96, 1, 4.3},
		Mass:       250,
	}
}

// Validate проверяет корпус
func (c ChassisSpec) Validate() error {
	for i, name := range []string{"x", "y", "z"} {
		if !finite(c.Dimensions[i]) || c.Dimensions[i] <= 0 {
			return configErr("chassis.dimensions."+name, "must be positive, got %v", c.Dimensions[i])
		}
	}
	if !finite(c.Mass) || c.Mass <= 0 {
		return configErr("chassis.mass", "must be positive, got %v", c.Mass)
	}
	return nil
}

// WheelSpec - параметры одного колеса и его подвески.
// Точки и направления заданы в локальных осях корпуса.
type WheelSpec struct {
	Role WheelRole

	Radius          float64
	ConnectionPoint mgl64.Vec3
	Direction       mgl64.Vec3 // направление подвески, "вниз"
	Axle            mgl64.Vec3

	SuspensionStiffness float64
	RestLength          float64
	MaxSuspensionTravel float64
	MaxSuspensionForce  float64
	DampingCompression  float64
	DampingRelaxation   float64

	FrictionSlip           float64
	RollInfluence          float64
	SlidingRotationalSpeed float64
}

// DefaultWheelSpec возвращает общие параметры колеса стандартной машины
func DefaultWheelSpec() WheelSpec {
	return WheelSpec{
		Radius:    0.35,
		Direction: mgl64.Vec3{0, -1, 0},
		Axle:      mgl64.Vec3{-1, 0, 0},

		SuspensionStiffness: 55,
		RestLength:          0.5,
		MaxSuspensionTravel: 1,
		MaxSuspensionForce:  10000,
		DampingCompression:  4.3,
		DampingRelaxation:   2.3,

		FrictionSlip:           30,
		RollInfluence:          0.01,
		SlidingRotationalSpeed: 30,
	}
}

// NewWheelSpec возвращает колесо со стандартными параметрами в заданной точке крепления
func NewWheelSpec(role WheelRole, connection mgl64.Vec3) WheelSpec {
	w := DefaultWheelSpec()
	w.Role = role
	w.ConnectionPoint = connection
	return w
}

// DefaultWheelSpecs возвращает четыре колеса стандартной машины.
// Порядок индексов: задние, затем передние; левые колёса на +X.
func DefaultWheelSpecs() [WheelCount]WheelSpec {
	return [WheelCount]WheelSpec{
		NewWheelSpec(RearLeft, mgl64.Vec3{0.75, 0.1, -1.32}),
		NewWheelSpec(RearRight, mgl64.Vec3{-0.78, 0.1, -1.32}),
		NewWheelSpec(FrontLeft, mgl64.Vec3{0.75, 0.1, 1.25}),
		NewWheelSpec(FrontRight, mgl64.Vec3{-0.78, 0.1, 1.25}),
	}
}

// MaxLength - максимальная длина подвески
func (w WheelSpec) MaxLength() float64 {
	return w.RestLength + w.MaxSuspensionTravel
}

// Validate проверяет колесо с индексом i
func (w WheelSpec) Validate(i int) error {
	field := func(name string) string {
		return fmt.Sprintf("wheels[%d].%s", i, name)
	}

	if _, ok := wheelRoleNames[w.Role]; !ok {
		return configErr(field("role"), "unknown role %d", int(w.Role))
	}
	if !finite(w.Radius) || w.Radius <= 0 {
		return configErr(field("radius"), "must be positive, got %v", w.Radius)
	}
	if !finiteVec(w.ConnectionPoint) {
		return configErr(field("connectionPoint"), "must be finite")
	}
	if !finiteVec(w.Direction) || w.Direction.Len() < 1e-9 {
		return configErr(field("direction"), "must be a non-zero vector")
	}
	if !finiteVec(w.Axle) || w.Axle.Len() < 1e-9 {
		return configErr(field("axle"), "must be a non-zero vector")
	}

	nonNegative := []struct {
		name  string
		value float64
	}{
		{"suspensionStiffness", w.SuspensionStiffness},
		{"restLength", w.RestLength},
		{"maxSuspensionTravel", w.MaxSuspensionTravel},
		{"maxSuspensionForce", w.MaxSuspensionForce},
		{"dampingCompression", w.DampingCompression},
		{"dampingRelaxation", w.DampingRelaxation},
		{"frictionSlip", w.FrictionSlip},
		{"rollInfluence", w.RollInfluence},
		{"slidingRotationalSpeed", w.SlidingRotationalSpeed},
	}
	for _, v := range nonNegative {
		if !finite(v.value) || v.value < 0 {
			return configErr(field(v.name), "must be non-negative, got %v", v.value)
		}
	}
	return nil
}

// DriveSpec - константы управления
type DriveSpec struct {
	MaxSteer   float64    // угол поворота передних колёс, рад
	MaxForce   float64    // сила двигателя на колесо
	BrakeForce float64    // тормоз при нажатом тормозе
	SlowDown   float64    // тормоз холостого хода
	Spawn      mgl64.Vec3 // точка появления и сброса
}

// DefaultDriveSpec возвращает управление стандартной машины
func DefaultDriveSpec() DriveSpec {
	return DriveSpec{
		MaxSteer:   0.5,
		MaxForce:   750,
		BrakeForce: 36,
		SlowDown:   19.6,
		Spawn:      mgl64.Vec3{0, 4, 0},
	}
}

// Validate проверяет константы управления
func (d DriveSpec) Validate() error {
	values := []struct {
		name  string
		value float64
	}{
		{"drive.maxSteer", d.MaxSteer},
		{"drive.maxForce", d.MaxForce},
		{"drive.brakeForce", d.BrakeForce},
		{"drive.slowDown", d.SlowDown},
	}
	for _, v := range values {
		if !finite(v.value) || v.value < 0 {
			return configErr(v.name, "must be non-negative, got %v", v.value)
		}
	}
	if d.MaxSteer >= math.Pi/2 {
		return configErr("drive.maxSteer", "must be below pi/2, got %v", d.MaxSteer)
	}
	if !finiteVec(d.Spawn) {
		return configErr("drive.spawn", "must be finite")
	}
	return nil
}

// ValidateWheels проверяет колёса и уникальность ролей
func ValidateWheels(wheels [WheelCount]WheelSpec) error {
	seen := make(map[WheelRole]int, WheelCount)
	for i, w := range wheels {
		if err := w.Validate(i); err != nil {
			return err
		}
		if prev, dup := seen[w.Role]; dup {
			return configErr(fmt.Sprintf("wheels[%d].role", i), "%s already used by wheel %d", w.Role, prev)
		}
		seen[w.Role] = i
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finiteVec(v mgl64.Vec3) bool {
	return finite(v.X()) && finite(v.Y()) && finite(v.Z())
}
