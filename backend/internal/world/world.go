package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// World - мир твёрдых тел с фиксированным шагом. Владеет всеми телами и поверхностью.
// Не потокобезопасен: шаг, регистрация тел и запросы выполняются в одной горутине симуляции.
type World struct {
	cfg    Config
	ground Ground
	logger *zap.Logger

	bodies map[BodyHandle]*Body
	order  []BodyHandle
	next   BodyHandle

	step uint64
	time float64
}

// New создает мир с заданной поверхностью
func New(cfg Config, ground Ground, logger *zap.Logger) *World {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ground == nil {
		ground = Plane{}
	}
	return &World{
		cfg:    cfg,
		ground: ground,
		logger: logger.Named("world"),
		bodies: make(map[BodyHandle]*Body),
		next:   GroundHandle + 1,
	}
}

// Config возвращает настройки мира
func (w *World) Config() Config {
	return w.cfg
}

// Ground возвращает поверхность мира
func (w *World) Ground() Ground {
	return w.ground
}

// AddBody регистрирует тело и возвращает его идентификатор
func (w *World) AddBody(b *Body) BodyHandle {
	h := w.next
	w.next++
	w.bodies[h] = b
	w.order = append(w.order, h)

	w.logger.Debug("тело зарегистрировано",
		zap.Uint32("handle", uint32(h)),
		zap.Float64("mass", b.Mass),
		zap.Bool("static", b.IsStatic()))
	return h
}

// RemoveBody снимает тело с регистрации
func (w *World) RemoveBody(h BodyHandle) error {
	if _, ok := w.bodies[h]; !ok {
		return ErrUnknownBody
	}
	delete(w.bodies, h)
	for i, id := range w.order {
		if id == h {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	w.logger.Debug("тело удалено", zap.Uint32("handle", uint32(h)))
	return nil
}

// Body возвращает тело по идентификатору
func (w *World) Body(h BodyHandle) (*Body, bool) {
	b, ok := w.bodies[h]
	return b, ok
}

// BodyCount возвращает число зарегистрированных тел
func (w *World) BodyCount() int {
	return len(w.bodies)
}

// StepCount возвращает число выполненных шагов
func (w *World) StepCount() uint64 {
	return w.step
}

// Raycast ищет ближайшее пересечение отрезка с землёй и телами, кроме exclude
func (w *World) Raycast(from, to mgl64.Vec3, exclude BodyHandle) (RayHit, bool) {
	best, found := w.ground.Raycast(from, to)

	for _, h := range w.order {
		if h == exclude {
			continue
		}
		hit, ok := raycastBox(w.bodies[h], from, to)
		if !ok {
			continue
		}
		if !found || hit.Distance < best.Distance {
			hit.Body = h
			best, found = hit, true
		}
	}

	return best, found
}

// Step интегрирует все динамические тела на dt и разрешает контакт корпусов с землёй.
// Возвращаемое значение - уведомление о завершённом шаге.
func (w *World) Step(dt float64) StepResult {
	for _, h := range w.order {
		b := w.bodies[h]
		if b.IsStatic() {
			continue
		}
		b.integrate(dt, w.cfg.Gravity, w.cfg.LinearDamping, w.cfg.AngularDamping)
		w.resolveGroundContact(b)
	}

	w.step++
	w.time += dt
	return StepResult{Step: w.step, Dt: dt, Time: w.time}
}

// resolveGroundContact выталкивает бокс из земли и гасит скорость вдоль нормали.
// Погруженные вершины сводятся в одну точку контакта, взвешенную по глубине.
func (w *World) resolveGroundContact(b *Body) {
	var (
		point    mgl64.Vec3
		normal   mgl64.Vec3
		weight   float64
		maxDepth float64
	)

	for _, c := range b.Corners() {
		height, n, ok := w.ground.HeightAt(c.X(), c.Z())
		if !ok {
			continue
		}
		depth := height - c.Y()
		if depth <= 0 {
			continue
		}
		point = point.Add(c.Mul(depth))
		normal = normal.Add(n.Mul(depth))
		weight += depth
		maxDepth = math.Max(maxDepth, depth)
	}
	if weight == 0 {
		return
	}

	point = point.Mul(1 / weight)
	normal = normal.Normalize()
	rel := point.Sub(b.Position)

	vn := b.VelocityAt(point).Dot(normal)
	if vn < 0 {
		if denom := b.ImpulseDenominator(point, normal); denom > 0 {
			restitution := math.Max(b.Material.Restitution, w.cfg.GroundRestitution)
			j := -(1 + restitution) * vn / denom
			b.ApplyImpulse(normal.Mul(j), rel)
			w.applyGroundFriction(b, point, normal, j)
		}
	}

	b.Position = b.Position.Add(normal.Mul(maxDepth))
}

// applyGroundFriction гасит касательную скорость в точке контакта в пределах конуса трения
func (w *World) applyGroundFriction(b *Body, point, normal mgl64.Vec3, normalImpulse float64) {
	if b.Material.Friction <= 0 {
		return
	}
	v := b.VelocityAt(point)
	tangent := v.Sub(normal.Mul(v.Dot(normal)))
	speed := tangent.Len()
	if speed < 1e-9 {
		return
	}
	tangent = tangent.Mul(1 / speed)
	denom := b.ImpulseDenominator(point, tangent)
	if denom <= 0 {
		return
	}
	jt := math.Min(speed/denom, b.Material.Friction*normalImpulse)
	b.ApplyImpulse(tangent.Mul(-jt), point.Sub(b.Position))
}

// raycastBox пересекает отрезок с ориентированным боксом (slab test в локальных осях)
func raycastBox(b *Body, from, to mgl64.Vec3) (RayHit, bool) {
	o := b.VectorToLocal(from.Sub(b.Position))
	d := b.VectorToLocal(to.Sub(from))
	he := b.HalfExtents

	tmin, tmax := 0.0, 1.0
	var axis int
	var sign float64
	entered := false

	for i := 0; i < 3; i++ {
		if math.Abs(d[i]) < 1e-12 {
			if o[i] < -he[i] || o[i] > he[i] {
				return RayHit{}, false
			}
			continue
		}
		inv := 1 / d[i]
		t1 := (-he[i] - o[i]) * inv
		t2 := (he[i] - o[i]) * inv
		s := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			s = 1.0
		}
		if t1 > tmin {
			tmin = t1
			axis = i
			sign = s
			entered = true
		}
		if t2 < tmax {
			tmax = t2
		}
		if tmin > tmax {
			return RayHit{}, false
		}
	}

	// Начало луча внутри бокса не считается попаданием
	if !entered {
		return RayHit{}, false
	}

	var n mgl64.Vec3
	n[axis] = sign
	seg := to.Sub(from)
	return RayHit{
		Point:    from.Add(seg.Mul(tmin)),
		Normal:   b.VectorToWorld(n),
		Distance: seg.Len() * tmin,
	}, true
}
