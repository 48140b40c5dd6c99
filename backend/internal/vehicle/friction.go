package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"raycar/backend/internal/world"
)

const (
	// доля импульса вдоль колеса в круге трения
	forwardFrictionFactor = 0.5
	sideFrictionFactor    = 1.0

	sideFrictionStiffness = 1.0
	contactDamping        = 0.2

	// затухание вращения колеса в воздухе
	spinDamping = 0.99
)

// updateFriction считает боковой и продольный импульсы шин и применяет их к корпусу.
// Ось колеса берется из его мировой позы, поэтому позы должны быть обновлены до вызова.
func (r *Rig) updateFriction(dt float64) {
	var (
		axles    [WheelCount]mgl64.Vec3
		forwards [WheelCount]mgl64.Vec3
		others   [WheelCount]*world.Body
		onGround int
	)

	for i, s := range r.wheels {
		st := &s.state
		st.SideImpulse = 0
		st.ForwardImpulse = 0
		if !st.InContact {
			continue
		}
		onGround++
		others[i] = r.contactBody(st.ContactBody)

		normal := st.ContactNormal
		axle := st.Transform.Orientation.Rotate(mgl64.Vec3{1, 0, 0})
		axle = axle.Sub(normal.Mul(axle.Dot(normal)))
		if axle.Len() < 1e-9 {
			continue
		}
		axle = axle.Normalize()
		axles[i] = axle
		forwards[i] = normal.Cross(axle).Normalize()

		st.SideImpulse = resolveSingleBilateral(r.chassis, others[i], st.ContactPoint, axle) * sideFrictionStiffness
	}

	sliding := false
	for i, s := range r.wheels {
		st := &s.state
		st.SkidInfo = 1
		st.Sliding = false
		if !st.InContact {
			continue
		}

		// Тормоз ограничивает импульс качения, двигатель добавляется сверху.
		// Импульс делится между колесами на земле, иначе они вместе перегасят скорость.
		rolling := calcRollingFriction(r.chassis, others[i], st.ContactPoint, forwards[i], st.Brake, onGround)
		st.ForwardImpulse = rolling + st.EngineForce*dt

		// Круг трения: суммарный импульс ограничен нагрузкой на колесо
		maxImpulse := st.SuspensionForce * dt * s.spec.FrictionSlip
		x := st.ForwardImpulse * forwardFrictionFactor
		y := st.SideImpulse * sideFrictionFactor
		impulseSq := x*x + y*y
		if impulseSq > maxImpulse*maxImpulse {
			sliding = true
			st.Sliding = true
			st.SkidInfo = maxImpulse / math.Sqrt(impulseSq)
		}
	}

	if sliding {
		for _, s := range r.wheels {
			st := &s.state
			if st.SideImpulse != 0 && st.SkidInfo < 1 {
				st.ForwardImpulse *= st.SkidInfo
				st.SideImpulse *= st.SkidInfo
			}
		}
	}

	up := mgl64.Vec3{}
	up[r.axes.Up] = 1

	for i, s := range r.wheels {
		st := &s.state
		if !st.InContact {
			continue
		}
		relPos := st.ContactPoint.Sub(r.chassis.Position)

		if st.ForwardImpulse != 0 {
			r.chassis.ApplyImpulse(forwards[i].Mul(st.ForwardImpulse), relPos)
		}
		if st.SideImpulse != 0 {
			side := axles[i].Mul(st.SideImpulse)

			// Влияние крена: уменьшаем плечо бокового импульса по вертикали корпуса
			local := r.chassis.VectorToLocal(relPos)
			local[r.axes.Up] *= s.spec.RollInfluence
			r.chassis.ApplyImpulse(side, r.chassis.VectorToWorld(local))

			if other := others[i]; other != nil {
				other.ApplyImpulse(side.Mul(-1), st.ContactPoint.Sub(other.Position))
			}
		}
	}
}

// updateWheelSpin вращает колёса по скорости корпуса в точке крепления
func (r *Rig) updateWheelSpin(dt float64) {
	forward := r.chassis.VectorToWorld(r.axisVector(r.axes.Forward))

	for _, s := range r.wheels {
		st := &s.state
		vel := r.chassis.VelocityAt(s.connectionWorld)

		if st.InContact {
			n := st.ContactNormal
			fwd := forward.Sub(n.Mul(forward.Dot(n)))
			// Вращение вокруг оси колеса отрицательное при движении вперед
			st.DeltaRotation = -fwd.Dot(vel) * dt / s.spec.Radius
		}

		if (st.Sliding || !st.InContact) && st.EngineForce != 0 && s.spec.SlidingRotationalSpeed > 0 {
			sign := 1.0
			if st.EngineForce < 0 {
				sign = -1
			}
			st.DeltaRotation = sign * s.spec.SlidingRotationalSpeed * dt
		}

		// Заблокированное колесо
		if math.Abs(st.Brake) > math.Abs(st.EngineForce) {
			st.DeltaRotation = 0
		}

		st.Rotation += st.DeltaRotation
		st.DeltaRotation *= spinDamping
	}
}

// resolveSingleBilateral - импульс, гасящий часть относительной скорости вдоль normal
func resolveSingleBilateral(body, other *world.Body, pos, normal mgl64.Vec3) float64 {
	if normal.LenSqr() > 1.1 {
		return 0
	}
	vel := body.VelocityAt(pos)
	invMass := body.InvMass()
	if other != nil {
		vel = vel.Sub(other.VelocityAt(pos))
		invMass += other.InvMass()
	}
	if invMass == 0 {
		return 0
	}
	return -contactDamping * normal.Dot(vel) / invMass
}

// calcRollingFriction - доля импульса, останавливающего качение вдоль dir, на одно из
// onGround колес. Не больше maxImpulse.
func calcRollingFriction(body, other *world.Body, pos, dir mgl64.Vec3, maxImpulse float64, onGround int) float64 {
	vel := body.VelocityAt(pos)
	denom := body.ImpulseDenominator(pos, dir)
	if other != nil {
		vel = vel.Sub(other.VelocityAt(pos))
		denom += other.ImpulseDenominator(pos, dir)
	}
	if denom <= 0 || onGround <= 0 {
		return 0
	}
	j := -dir.Dot(vel) / denom / float64(onGround)
	return clamp(j, -maxImpulse, maxImpulse)
}
