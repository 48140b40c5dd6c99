package game

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raycar/backend/internal/config"
	"raycar/backend/internal/input"
	"raycar/backend/internal/transform"
	"raycar/backend/internal/vehicle"
)

const testDt = 1.0 / 60

func newTestSimulation(t *testing.T, ground string) *Simulation {
	t.Helper()
	app := config.Default()
	app.Sim.Ground = ground

	sim, err := Setup(app, config.DefaultVehicle(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sim.Rig().Close() })
	return sim
}

func run(t *testing.T, sim *Simulation, ticks int) vehicle.Outputs {
	t.Helper()
	var out vehicle.Outputs
	for i := 0; i < ticks; i++ {
		var err error
		out, err = sim.Tick(testDt)
		require.NoError(t, err)
	}
	return out
}

func TestNewGround(t *testing.T) {
	for _, kind := range []string{"", config.GroundPlane, config.GroundTerrain} {
		g, err := NewGround(kind)
		require.NoError(t, err, kind)
		assert.NotNil(t, g)
	}

	_, err := NewGround("lava")
	assert.Error(t, err)
}

func TestSetupAppliesVehicleConfig(t *testing.T) {
	sim := newTestSimulation(t, config.GroundPlane)
	car := config.DefaultVehicle()

	assert.Equal(t, car.ChassisOffset, sim.Rig().Sync().ChassisOffset())
	assert.Equal(t, car.Drive.Spawn, sim.Rig().Chassis().Position)
	assert.Equal(t, 1, sim.World().BodyCount())
}

func TestSetupRejectsUnknownGround(t *testing.T) {
	app := config.Default()
	app.Sim.Ground = "ice"

	_, err := Setup(app, nil, nil)
	assert.Error(t, err)
}

func TestTickRejectsBadStep(t *testing.T) {
	sim := newTestSimulation(t, config.GroundPlane)

	_, err := sim.Tick(0)
	assert.ErrorIs(t, err, ErrInvalidStep)
	_, err = sim.Tick(-testDt)
	assert.ErrorIs(t, err, ErrInvalidStep)
}

func TestTickPublishesToConsumers(t *testing.T) {
	sim := newTestSimulation(t, config.GroundPlane)

	var steps []uint64
	sim.Subscribe(ConsumerFunc(func(out vehicle.Outputs) {
		steps = append(steps, out.Step)
	}))

	run(t, sim, 3)
	assert.Equal(t, []uint64{1, 2, 3}, steps)

	snap, ok := sim.Rig().Sync().Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(3), snap.Step)
}

func TestQueuedInputDrivesVehicle(t *testing.T) {
	sim := newTestSimulation(t, config.GroundPlane)
	settled := run(t, sim, 240)
	z0 := settled.Chassis.Position.Z()

	require.True(t, sim.Push(input.Event{Key: "w", Down: true}))
	out := run(t, sim, 60)
	assert.Equal(t, []string{"w"}, sim.Held())
	assert.Equal(t, vehicle.DriveForward, out.Drive)
	assert.Greater(t, out.Chassis.Position.Z(), z0+0.1)
	assert.Greater(t, out.SpeedKmHour, 0.0)

	require.True(t, sim.Push(input.Event{Key: "w", Down: false}))
	out = run(t, sim, 1)
	assert.Empty(t, sim.Held())
	assert.Equal(t, vehicle.DriveCoasting, out.Drive)
}

func TestResetIsEdgeTriggered(t *testing.T) {
	sim := newTestSimulation(t, config.GroundPlane)
	run(t, sim, 120)

	require.True(t, sim.Push(input.Event{Key: "r", Down: true}))
	out := run(t, sim, 1)
	assert.True(t, out.Reset)
	spawn := sim.Rig().DriveSpec().Spawn
	assert.InDelta(t, spawn.X(), out.Chassis.Position.X(), 1e-9)
	assert.InDelta(t, spawn.Z(), out.Chassis.Position.Z(), 1e-9)

	// Клавиша все еще зажата, но сброс только по фронту
	out = run(t, sim, 1)
	assert.False(t, out.Reset)
}

func TestPushReportsOverflow(t *testing.T) {
	app := config.Default()
	app.Sim.InputBuffer = 1
	sim, err := Setup(app, nil, nil)
	require.NoError(t, err)

	assert.True(t, sim.Push(input.Event{Key: "w", Down: true}))
	assert.False(t, sim.Push(input.Event{Key: "a", Down: true}))

	run(t, sim, 1)
	assert.Equal(t, []string{"w"}, sim.Held())
}

func TestSimulationAsTickSystem(t *testing.T) {
	sim := newTestSimulation(t, config.GroundTerrain)
	ticker := newTestTicker(t, 60)
	ticker.RegisterSystem(sim)

	var wheels [transform.WheelCount]transform.Pose
	sim.Rig().Sync().BindWheel(0, transform.TargetFunc(func(p transform.Pose) { wheels[0] = p }))

	ticker.advance(t.Context(), 10*ticker.TickDuration()+time.Millisecond)

	assert.Equal(t, uint64(5), ticker.TickCount())
	assert.NotEqual(t, mgl64.Vec3{}, wheels[0].Position)
	assert.Equal(t, uint64(0), ticker.Stats().Systems["Simulation"].Errors)
}
