package game

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"raycar/backend/internal/config"
	"raycar/backend/internal/input"
	"raycar/backend/internal/transform"
	"raycar/backend/internal/vehicle"
	"raycar/backend/internal/world"
)

// NewGround создает поверхность мира по имени из конфигурации
func NewGround(kind string) (world.Ground, error) {
	switch kind {
	case "", config.GroundPlane:
		return world.Plane{}, nil
	case config.GroundTerrain:
		return world.NewTerrain(world.DefaultTerrainConfig()), nil
	default:
		return nil, fmt.Errorf("unknown ground %q", kind)
	}
}

// Setup собирает мир, машину и симуляцию по конфигурации приложения
func Setup(app *config.App, car *config.Vehicle, logger *zap.Logger) (*Simulation, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if car == nil {
		car = config.DefaultVehicle()
	}

	ground, err := NewGround(app.Sim.Ground)
	if err != nil {
		return nil, err
	}

	worldCfg := world.DefaultConfig()
	worldCfg.Gravity = mgl64.Vec3{0, app.Sim.Gravity, 0}
	w := world.New(worldCfg, ground, logger)

	presenter := transform.New(car.ChassisOffset)
	for i, scale := range car.WheelScale {
		presenter.SetWheelScale(i, scale)
	}

	rig, err := vehicle.New(w, car.Chassis, car.Wheels, car.Drive,
		vehicle.WithLogger(logger),
		vehicle.WithSync(presenter))
	if err != nil {
		return nil, fmt.Errorf("build vehicle %q: %w", car.Name, err)
	}

	logger.Info("симуляция собрана",
		zap.String("vehicle", car.Name),
		zap.String("ground", app.Sim.Ground),
		zap.Int("tickRate", app.Sim.TickRate))

	return NewSimulation(w, rig, input.NewQueue(app.Sim.InputBuffer), logger), nil
}
