package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"raycar/backend/internal/config"
	"raycar/backend/internal/game"
	"raycar/backend/internal/logging"
	"raycar/backend/internal/terminal"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "путь к файлу конфигурации (yaml/json)")
	logFile := pflag.String("log-file", "raycar-terminal.log", "файл логов (экран занят панелью)")
	holdWindow := pflag.Duration("hold", terminal.DefaultHoldWindow, "сколько клавиша считается зажатой без повторов")
	pflag.Parse()

	if err := run(*configPath, *logFile, *holdWindow); err != nil {
		fmt.Fprintf(os.Stderr, "raycar-terminal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, logFile string, holdWindow time.Duration) error {
	app, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:  app.Log.Level,
		Format: "json",
		Output: []string{logFile},
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

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	driver := terminal.NewDriver(screen, sim, holdWindow, logger)
	sim.Subscribe(driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ticker.Run(gctx) })
	g.Go(func() error {
		// Выход из панели останавливает и симуляцию
		defer stop()
		return driver.Run(gctx)
	})
	return g.Wait()
}
