package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"raycar/backend/internal/config"
	"raycar/backend/internal/game"
	"raycar/backend/internal/logging"
	"raycar/backend/internal/telemetry"
	"raycar/backend/internal/transport/ws"
	"raycar/backend/internal/vehicle"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "путь к файлу конфигурации (yaml/json)")
	pflag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "raycar: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	app, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:       app.Log.Level,
		Format:      app.Log.Format,
		Development: app.Log.Development,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	car, err := config.LoadVehicleFile(app.Sim.VehicleFile)
	if err != nil {
		return err
	}

	sim, err := game.Setup(app, car, logger)
	if err != nil {
		return err
	}
	defer func() { _ = sim.Rig().Close() }()

	ticker, err := game.NewTicker(app.Sim.TickRate, logger, game.WithMaxSubSteps(app.Sim.MaxSubSteps))
	if err != nil {
		return err
	}
	ticker.RegisterSystem(sim)

	if app.Telemetry.Enabled {
		recorder := telemetry.NewRecorder(telemetry.Config{
			Enabled:       true,
			PrintInterval: app.Telemetry.PrintInterval,
			BufferSize:    app.Telemetry.BufferSize,
		}, logger)
		sim.Subscribe(recorder)
		ticker.RegisterSystem(recorder)
	}

	var wheels [vehicle.WheelCount]vehicle.WheelSpec
	for i := range wheels {
		wheels[i], _ = sim.Rig().WheelSpec(i)
	}
	server := ws.NewServer(ws.Config{
		Addr:           app.Server.Addr,
		UpdateInterval: app.Server.UpdateInterval,
		WriteTimeout:   app.Server.WriteTimeout,
	}, sim, ws.NewScene(sim.Rig().ChassisSpec(), wheels), logger)
	sim.Subscribe(server)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ticker.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })

	logger.Info("raycar запущен",
		zap.String("addr", app.Server.Addr),
		zap.String("vehicle", car.Name),
		zap.Int("tps", app.Sim.TickRate))

	err = g.Wait()
	logger.Info("raycar остановлен", zap.Any("ticker", ticker.Stats()))
	return err
}
