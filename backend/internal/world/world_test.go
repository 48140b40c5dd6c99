package world

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noDampingConfig() Config {
	cfg := DefaultConfig()
	cfg.LinearDamping = 0
	cfg.AngularDamping = 0
	return cfg
}

func TestPlaneRaycast(t *testing.T) {
	p := Plane{Height: 1}

	hit, ok := p.Raycast(mgl64.Vec3{0, 3, 0}, mgl64.Vec3{0, -1, 0})
	require.True(t, ok)
	assert.InDelta(t, 2.0, hit.Distance, 1e-9)
	assert.InDelta(t, 1.0, hit.Point.Y(), 1e-9)
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, hit.Normal)
	assert.Equal(t, GroundHandle, hit.Body)

	// Отрезок не достаёт до плоскости
	_, ok = p.Raycast(mgl64.Vec3{0, 3, 0}, mgl64.Vec3{0, 2, 0})
	assert.False(t, ok)

	// Начало под плоскостью
	_, ok = p.Raycast(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, -2, 0})
	assert.False(t, ok)
}

func TestHeightfieldFlatRaycast(t *testing.T) {
	heights := make([]float64, 4*4)
	for i := range heights {
		heights[i] = 0.5
	}
	hf := NewHeightfield(4, 4, 2, heights)

	h, n, ok := hf.HeightAt(0.3, -0.7)
	require.True(t, ok)
	assert.InDelta(t, 0.5, h, 1e-12)
	assert.InDelta(t, 1.0, n.Y(), 1e-12)

	hit, ok := hf.Raycast(mgl64.Vec3{0, 2, 0}, mgl64.Vec3{0, -2, 0})
	require.True(t, ok)
	assert.InDelta(t, 1.5, hit.Distance, 1e-5)

	_, _, ok = hf.HeightAt(100, 0)
	assert.False(t, ok)
}

func TestHeightfieldSlopeNormal(t *testing.T) {
	// Высота растёт вдоль X: h = x
	cols, rows := 3, 3
	heights := make([]float64, cols*rows)
	hf := NewHeightfield(cols, rows, 1, heights)
	for j := 0; j < rows; j++ {
		for i := 0; i < cols; i++ {
			heights[j*cols+i] = hf.originX + float64(i)
		}
	}

	h, n, ok := hf.HeightAt(0.25, 0)
	require.True(t, ok)
	assert.InDelta(t, 0.25, h, 1e-9)
	assert.InDelta(t, -1/math.Sqrt2, n.X(), 1e-9)
	assert.InDelta(t, 1/math.Sqrt2, n.Y(), 1e-9)
}

func TestGenerateHeightsFlatSpawn(t *testing.T) {
	cfg := DefaultTerrainConfig()
	hf := NewTerrain(cfg)

	h, _, ok := hf.HeightAt(0, 0)
	require.True(t, ok)
	assert.Equal(t, 0.0, h)
	assert.Len(t, GenerateHeights(cfg), cfg.Columns*cfg.Rows)
}

func TestWorldFreeFall(t *testing.T) {
	w := New(noDampingConfig(), Plane{}, nil)
	b := NewBoxBody(mgl64.Vec3{1, 1, 1}, 10, Material{})
	b.Position = mgl64.Vec3{0, 100, 0}
	w.AddBody(b)

	dt := 1.0 / 60
	res := w.Step(dt)

	assert.Equal(t, uint64(1), res.Step)
	assert.InDelta(t, dt, res.Time, 1e-12)
	assert.InDelta(t, -9.81*dt, b.Velocity.Y(), 1e-12)
	assert.InDelta(t, 100-9.81*dt*dt, b.Position.Y(), 1e-12)
}

func TestWorldGroundContactStopsBox(t *testing.T) {
	w := New(DefaultConfig(), Plane{}, nil)
	b := NewBoxBody(mgl64.Vec3{0.5, 0.5, 0.5}, 1, Material{})
	b.Position = mgl64.Vec3{0, 2, 0}
	w.AddBody(b)

	for i := 0; i < 300; i++ {
		w.Step(1.0 / 60)
	}

	assert.InDelta(t, 0.5, b.Position.Y(), 0.02)
	assert.InDelta(t, 0, b.Velocity.Y(), 0.2)
}

func TestWorldGroundFrictionOnlyWithMaterial(t *testing.T) {
	slide := func(friction float64) float64 {
		w := New(noDampingConfig(), Plane{}, nil)
		b := NewBoxBody(mgl64.Vec3{0.5, 0.5, 0.5}, 1, Material{Friction: friction})
		b.Position = mgl64.Vec3{0, 0.6, 0}
		b.Velocity = mgl64.Vec3{0, 0, 5}
		w.AddBody(b)
		for i := 0; i < 30; i++ {
			w.Step(1.0 / 60)
		}
		return b.Velocity.Z()
	}

	assert.InDelta(t, 5, slide(0), 1e-9)
	assert.Less(t, slide(0.8), 5.0)
}

func TestWorldStaticBodyIgnoresGravity(t *testing.T) {
	w := New(DefaultConfig(), Plane{}, nil)
	b := NewBoxBody(mgl64.Vec3{1, 1, 1}, 0, Material{})
	b.Position = mgl64.Vec3{0, 5, 0}
	w.AddBody(b)

	w.Step(1.0 / 60)
	assert.Equal(t, mgl64.Vec3{0, 5, 0}, b.Position)
	assert.True(t, b.IsStatic())
}

func TestWorldRaycastBodiesAndExclude(t *testing.T) {
	w := New(DefaultConfig(), Plane{}, nil)
	box := NewBoxBody(mgl64.Vec3{1, 0.5, 1}, 0, Material{})
	box.Position = mgl64.Vec3{0, 0.5, 0}
	h := w.AddBody(box)

	from, to := mgl64.Vec3{0, 3, 0}, mgl64.Vec3{0, -1, 0}

	hit, ok := w.Raycast(from, to, 0)
	require.True(t, ok)
	assert.Equal(t, h, hit.Body)
	assert.InDelta(t, 2.0, hit.Distance, 1e-9)
	assert.InDelta(t, 1.0, hit.Normal.Y(), 1e-9)

	hit, ok = w.Raycast(from, to, h)
	require.True(t, ok)
	assert.Equal(t, GroundHandle, hit.Body)
	assert.InDelta(t, 3.0, hit.Distance, 1e-9)
}

func TestWorldRemoveBody(t *testing.T) {
	w := New(DefaultConfig(), Plane{}, nil)
	h := w.AddBody(NewBoxBody(mgl64.Vec3{1, 1, 1}, 1, Material{}))
	require.Equal(t, 1, w.BodyCount())

	require.NoError(t, w.RemoveBody(h))
	assert.ErrorIs(t, w.RemoveBody(h), ErrUnknownBody)
	_, ok := w.Body(h)
	assert.False(t, ok)
}

func TestBodyImpulseAndTeleport(t *testing.T) {
	b := NewBoxBody(mgl64.Vec3{1, 1, 1}, 2, Material{})
	b.ApplyImpulse(mgl64.Vec3{4, 0, 0}, mgl64.Vec3{0, 1, 0})

	assert.InDelta(t, 2.0, b.Velocity.X(), 1e-12)
	// r × J = (0,1,0) × (4,0,0) = (0,0,-4)
	assert.Less(t, b.AngularVelocity.Z(), 0.0)

	b.Teleport(mgl64.Vec3{0, 4, 0}, mgl64.QuatIdent())
	assert.Equal(t, mgl64.Vec3{}, b.Velocity)
	assert.Equal(t, mgl64.Vec3{}, b.AngularVelocity)
	assert.Equal(t, mgl64.Vec3{0, 4, 0}, b.Position)
}

func TestBodyImpulseDenominatorAtCenter(t *testing.T) {
	b := NewBoxBody(mgl64.Vec3{1, 1, 1}, 4, Material{})
	assert.InDelta(t, 0.25, b.ImpulseDenominator(b.Position, mgl64.Vec3{1, 0, 0}), 1e-12)
}
