package world

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrUnknownBody возвращается для неизвестного идентификатора тела
var ErrUnknownBody = errors.New("world: unknown body")

// BodyHandle - идентификатор тела, зарегистрированного в мире. Ноль зарезервирован за землёй.
type BodyHandle uint32

// GroundHandle обозначает попадание луча в землю
const GroundHandle BodyHandle = 0

// RayHit - результат пересечения луча
type RayHit struct {
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	Distance float64
	Body     BodyHandle
}

// StepResult - уведомление о завершённом шаге интегрирования
type StepResult struct {
	Step uint64
	Dt   float64
	Time float64
}

// Ground - неподвижная поверхность мира
type Ground interface {
	// Raycast ищет первое пересечение отрезка from-to с поверхностью
	Raycast(from, to mgl64.Vec3) (RayHit, bool)

	// HeightAt возвращает высоту и нормаль поверхности над точкой (x, z)
	HeightAt(x, z float64) (float64, mgl64.Vec3, bool)
}

// Plane - горизонтальная плоскость
type Plane struct {
	Height float64
}

var up = mgl64.Vec3{0, 1, 0}

// Raycast пересекает отрезок с плоскостью. Луч, начинающийся под плоскостью, не попадает.
func (p Plane) Raycast(from, to mgl64.Vec3) (RayHit, bool) {
	if from.Y() < p.Height {
		return RayHit{}, false
	}
	dy := from.Y() - to.Y()
	if dy <= 0 || to.Y() > p.Height {
		return RayHit{}, false
	}

	t := (from.Y() - p.Height) / dy
	seg := to.Sub(from)
	return RayHit{
		Point:    from.Add(seg.Mul(t)),
		Normal:   up,
		Distance: seg.Len() * t,
		Body:     GroundHandle,
	}, true
}

// HeightAt возвращает высоту плоскости
func (p Plane) HeightAt(_, _ float64) (float64, mgl64.Vec3, bool) {
	return p.Height, up, true
}
