package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Поверхности мира
const (
	GroundPlane   = "plane"
	GroundTerrain = "terrain"
)

// ServerConfig - настройки websocket сервера
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	UpdateInterval time.Duration `mapstructure:"updateInterval"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
}

// SimConfig - настройки симуляции
type SimConfig struct {
	TickRate    int     `mapstructure:"tickRate"`
	MaxSubSteps int     `mapstructure:"maxSubSteps"`
	Ground      string  `mapstructure:"ground"`
	VehicleFile string  `mapstructure:"vehicleFile"`
	Gravity     float64 `mapstructure:"gravity"`
	InputBuffer int     `mapstructure:"inputBuffer"`
}

// LogConfig - настройки логирования
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	Development bool   `mapstructure:"development"`
}

// TelemetryConfig - настройки телеметрии машины
type TelemetryConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	PrintInterval time.Duration `mapstructure:"printInterval"`
	BufferSize    int           `mapstructure:"bufferSize"`
}

// App - конфигурация приложения
type App struct {
	Server    ServerConfig    `mapstructure:"server"`
	Sim       SimConfig       `mapstructure:"sim"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.updateInterval", "33ms")
	v.SetDefault("server.writeTimeout", "5s")

	v.SetDefault("sim.tickRate", 60)
	v.SetDefault("sim.maxSubSteps", 5)
	v.SetDefault("sim.ground", GroundPlane)
	v.SetDefault("sim.vehicleFile", "")
	v.SetDefault("sim.gravity", -9.81)
	v.SetDefault("sim.inputBuffer", 256)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.development", false)

	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.printInterval", "10s")
	v.SetDefault("telemetry.bufferSize", 600)
}

// Load читает конфигурацию: значения по умолчанию, затем файл (если задан),
// затем переменные окружения RAYCAR_* (например RAYCAR_SIM_TICKRATE).
func Load(path string) (*App, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RAYCAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var app App
	if err := v.Unmarshal(&app); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := app.Validate(); err != nil {
		return nil, err
	}
	return &app, nil
}

// Default возвращает конфигурацию по умолчанию
func Default() *App {
	app, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("default config is invalid: %v", err))
	}
	return app
}

// TickInterval возвращает длительность одного тика
func (s SimConfig) TickInterval() time.Duration {
	return time.Second / time.Duration(s.TickRate)
}

// Validate проверяет конфигурацию
func (a *App) Validate() error {
	var errs []error
	if a.Sim.TickRate <= 0 || a.Sim.TickRate > 1000 {
		errs = append(errs, fmt.Errorf("sim.tickRate must be in (0, 1000], got %d", a.Sim.TickRate))
	}
	if a.Sim.MaxSubSteps <= 0 {
		errs = append(errs, fmt.Errorf("sim.maxSubSteps must be positive, got %d", a.Sim.MaxSubSteps))
	}
	if a.Sim.Ground != GroundPlane && a.Sim.Ground != GroundTerrain {
		errs = append(errs, fmt.Errorf("sim.ground must be %q or %q, got %q", GroundPlane, GroundTerrain, a.Sim.Ground))
	}
	if a.Server.UpdateInterval < 0 {
		errs = append(errs, fmt.Errorf("server.updateInterval must not be negative"))
	}
	if a.Telemetry.BufferSize < 0 {
		errs = append(errs, fmt.Errorf("telemetry.bufferSize must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
