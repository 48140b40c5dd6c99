package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Material описывает свойства поверхности тела
type Material struct {
	Friction    float64
	Restitution float64
}

// BodyState - решённое состояние тела после шага
type BodyState struct {
	Position        mgl64.Vec3
	Orientation     mgl64.Quat
	Velocity        mgl64.Vec3
	AngularVelocity mgl64.Vec3
}

// Body - твёрдое тело в форме бокса. Тело с нулевой массой статично.
type Body struct {
	BodyState

	Mass        float64
	HalfExtents mgl64.Vec3
	Material    Material

	invMass    float64
	invInertia mgl64.Vec3 // диагональ в локальных осях

	force  mgl64.Vec3
	torque mgl64.Vec3
}

// NewBoxBody создает бокс с заданными полуразмерами и массой
func NewBoxBody(halfExtents mgl64.Vec3, mass float64, material Material) *Body {
	b := &Body{
		BodyState: BodyState{
			Orientation: mgl64.QuatIdent(),
		},
		Mass:        mass,
		HalfExtents: halfExtents,
		Material:    material,
	}

	if mass > 0 {
		b.invMass = 1 / mass

		// Тензор инерции бокса по полным размерам
		w, h, d := 2*halfExtents.X(), 2*halfExtents.Y(), 2*halfExtents.Z()
		ix := mass / 12 * (h*h + d*d)
		iy := mass / 12 * (w*w + d*d)
		iz := mass / 12 * (w*w + h*h)
		b.invInertia = mgl64.Vec3{safeInv(ix), safeInv(iy), safeInv(iz)}
	}

	return b
}

func safeInv(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return 1 / v
}

// IsStatic сообщает, что тело не интегрируется
func (b *Body) IsStatic() bool {
	return b.invMass == 0
}

// InvMass возвращает обратную массу
func (b *Body) InvMass() float64 {
	return b.invMass
}

// State возвращает копию состояния тела
func (b *Body) State() BodyState {
	return b.BodyState
}

// PointToWorld переводит локальную точку в мировые координаты
func (b *Body) PointToWorld(local mgl64.Vec3) mgl64.Vec3 {
	return b.Position.Add(b.Orientation.Rotate(local))
}

// VectorToWorld поворачивает локальный вектор в мировую систему
func (b *Body) VectorToWorld(local mgl64.Vec3) mgl64.Vec3 {
	return b.Orientation.Rotate(local)
}

// VectorToLocal поворачивает мировой вектор в систему тела
func (b *Body) VectorToLocal(v mgl64.Vec3) mgl64.Vec3 {
	return b.Orientation.Conjugate().Rotate(v)
}

// VelocityAt возвращает скорость точки тела, заданной в мировых координатах
func (b *Body) VelocityAt(worldPoint mgl64.Vec3) mgl64.Vec3 {
	r := worldPoint.Sub(b.Position)
	return b.Velocity.Add(b.AngularVelocity.Cross(r))
}

// ApplyImpulse применяет импульс в точке relPos (относительно центра масс, мировые оси)
func (b *Body) ApplyImpulse(impulse, relPos mgl64.Vec3) {
	if b.invMass == 0 {
		return
	}
	b.Velocity = b.Velocity.Add(impulse.Mul(b.invMass))
	b.AngularVelocity = b.AngularVelocity.Add(b.applyInvInertia(relPos.Cross(impulse)))
}

// ApplyForce накапливает силу до следующего шага
func (b *Body) ApplyForce(force, relPos mgl64.Vec3) {
	if b.invMass == 0 {
		return
	}
	b.force = b.force.Add(force)
	b.torque = b.torque.Add(relPos.Cross(force))
}

// ImpulseDenominator - эффективная обратная масса тела вдоль normal в точке pos
func (b *Body) ImpulseDenominator(pos, normal mgl64.Vec3) float64 {
	if b.invMass == 0 {
		return 0
	}
	r := pos.Sub(b.Position)
	c := r.Cross(normal)
	m := b.applyInvInertia(c).Cross(r)
	return b.invMass + normal.Dot(m)
}

// Teleport переносит тело в заданную позу и обнуляет скорости и накопленные силы.
// Это прямое вмешательство в состояние решателя.
func (b *Body) Teleport(position mgl64.Vec3, orientation mgl64.Quat) {
	b.Position = position
	b.Orientation = orientation.Normalize()
	b.Velocity = mgl64.Vec3{}
	b.AngularVelocity = mgl64.Vec3{}
	b.force = mgl64.Vec3{}
	b.torque = mgl64.Vec3{}
}

// Corners возвращает вершины бокса в мировых координатах
func (b *Body) Corners() [8]mgl64.Vec3 {
	var out [8]mgl64.Vec3
	h := b.HalfExtents
	i := 0
	for _, sx := range [2]float64{-1, 1} {
		for _, sy := range [2]float64{-1, 1} {
			for _, sz := range [2]float64{-1, 1} {
				out[i] = b.PointToWorld(mgl64.Vec3{sx * h.X(), sy * h.Y(), sz * h.Z()})
				i++
			}
		}
	}
	return out
}

func (b *Body) applyInvInertia(v mgl64.Vec3) mgl64.Vec3 {
	local := b.VectorToLocal(v)
	local = mgl64.Vec3{
		local.X() * b.invInertia.X(),
		local.Y() * b.invInertia.Y(),
		local.Z() * b.invInertia.Z(),
	}
	return b.VectorToWorld(local)
}

// integrate выполняет полунеявный шаг Эйлера
func (b *Body) integrate(dt float64, gravity mgl64.Vec3, linearDamping, angularDamping float64) {
	if b.invMass == 0 {
		return
	}

	acc := b.force.Mul(b.invMass).Add(gravity)
	b.Velocity = b.Velocity.Add(acc.Mul(dt))
	b.AngularVelocity = b.AngularVelocity.Add(b.applyInvInertia(b.torque).Mul(dt))

	if linearDamping > 0 {
		b.Velocity = b.Velocity.Mul(math.Pow(1-linearDamping, dt))
	}
	if angularDamping > 0 {
		b.AngularVelocity = b.AngularVelocity.Mul(math.Pow(1-angularDamping, dt))
	}

	b.Position = b.Position.Add(b.Velocity.Mul(dt))

	if b.AngularVelocity.LenSqr() > 0 {
		spin := mgl64.Quat{W: 0, V: b.AngularVelocity.Mul(0.5 * dt)}
		b.Orientation = b.Orientation.Add(spin.Mul(b.Orientation)).Normalize()
	}

	b.force = mgl64.Vec3{}
	b.torque = mgl64.Vec3{}
}
