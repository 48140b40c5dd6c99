package vehicle

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raycar/backend/internal/world"
)

// fixedCaster возвращает попадание на заданном расстоянии вдоль луча
type fixedCaster struct {
	distance float64
	hit      bool
}

func (f *fixedCaster) Raycast(from, to mgl64.Vec3, _ world.BodyHandle) (world.RayHit, bool) {
	if !f.hit {
		return world.RayHit{}, false
	}
	dir := to.Sub(from).Normalize()
	return world.RayHit{
		Point:    from.Add(dir.Mul(f.distance)),
		Normal:   mgl64.Vec3{0, 1, 0},
		Distance: f.distance,
	}, true
}

func testChassis() *world.Body {
	b := world.NewBoxBody(mgl64.Vec3{1, 0.5, 2}, 250, world.Material{})
	b.Teleport(mgl64.Vec3{0, 1, 0}, mgl64.QuatIdent())
	return b
}

func TestSuspensionLengthFromHit(t *testing.T) {
	spec := NewWheelSpec(FrontLeft, mgl64.Vec3{0.75, 0.1, 1.25})
	tests := []struct {
		name    string
		caster  fixedCaster
		length  float64
		contact bool
	}{
		{"at rest", fixedCaster{distance: 0.85, hit: true}, 0.5, true},
		{"compressed to zero", fixedCaster{distance: 0.1, hit: true}, 0, true},
		{"fully extended", fixedCaster{distance: 1.85, hit: true}, 1.5, true},
		{"miss", fixedCaster{}, 1.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSuspension(spec)
			s.Cast(&tt.caster, testChassis(), 1)

			st := s.State()
			assert.Equal(t, tt.contact, st.InContact)
			assert.InDelta(t, tt.length, st.SuspensionLength, 1e-9)
		})
	}
}

func TestSuspensionMissHasNoForce(t *testing.T) {
	s := NewSuspension(DefaultWheelSpec())
	s.Cast(&fixedCaster{}, testChassis(), 1)

	assert.Zero(t, s.ComputeForce(1.0/60, 250))
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, s.State().ContactNormal)
}

func TestSuspensionSpringForce(t *testing.T) {
	s := NewSuspension(DefaultWheelSpec())
	s.Cast(&fixedCaster{distance: 0.75, hit: true}, testChassis(), 1)

	// stiffness 55, сжатие 0.1, масса 250, первое касание без скорости
	assert.InDelta(t, 55*0.1*250, s.ComputeForce(1.0/60, 250), 1e-6)
}

func TestSuspensionForceNeverNegative(t *testing.T) {
	s := NewSuspension(DefaultWheelSpec())
	s.Cast(&fixedCaster{distance: 1.5, hit: true}, testChassis(), 1)
	assert.Zero(t, s.ComputeForce(1.0/60, 250))
}

func TestSuspensionForceClamped(t *testing.T) {
	spec := DefaultWheelSpec()
	s := NewSuspension(spec)
	s.Cast(&fixedCaster{distance: 0.2, hit: true}, testChassis(), 1)
	assert.Equal(t, spec.MaxSuspensionForce, s.ComputeForce(1.0/60, 5000))
}

func TestSuspensionDamping(t *testing.T) {
	s := NewSuspension(DefaultWheelSpec())
	chassis := testChassis()

	s.Cast(&fixedCaster{distance: 0.85, hit: true}, chassis, 1)
	s.ComputeForce(0.1, 1)

	// Сжатие на 0.1 за 0.1 с: скорость -1, демпфер сжатия 4.3
	s.Cast(&fixedCaster{distance: 0.75, hit: true}, chassis, 1)
	assert.InDelta(t, 55*0.1+4.3, s.ComputeForce(0.1, 1), 1e-9)

	// Разжатие на 0.1 за 0.1 с: скорость +1, демпфер отбоя 2.3
	s.Cast(&fixedCaster{distance: 0.85, hit: true}, chassis, 1)
	assert.Zero(t, s.ComputeForce(0.1, 1))

	s.Cast(&fixedCaster{distance: 0.8, hit: true}, chassis, 1)
	s.ComputeForce(0.1, 1)
	s.Cast(&fixedCaster{distance: 0.75, hit: true}, chassis, 1)
	assert.InDelta(t, 55*0.1+4.3*0.5, s.ComputeForce(0.1, 1), 1e-9)
}

func TestSuspensionFirstContactUsesContactVelocity(t *testing.T) {
	s := NewSuspension(DefaultWheelSpec())
	chassis := testChassis()
	chassis.Velocity = mgl64.Vec3{0, -2, 0}

	s.Cast(&fixedCaster{distance: 0.85, hit: true}, chassis, 1)
	require.True(t, s.State().InContact)

	// Пружина в покое, демпфер сжатия против скорости -2
	assert.InDelta(t, 4.3*2, s.ComputeForce(1.0/60, 1), 1e-9)
}

func TestWheelTransformFollowsSuspension(t *testing.T) {
	s := NewSuspension(NewWheelSpec(FrontLeft, mgl64.Vec3{0.75, 0.1, 1.25}))
	chassis := testChassis()
	s.Cast(&fixedCaster{distance: 0.85, hit: true}, chassis, 1)
	s.updateTransform(chassis)

	p := s.State().Transform.Position
	assert.InDelta(t, 0.75, p.X(), 1e-9)
	assert.InDelta(t, 1.1-0.5, p.Y(), 1e-9)
	assert.InDelta(t, 1.25, p.Z(), 1e-9)
}
