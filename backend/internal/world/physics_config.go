package world

import "github.com/go-gl/mathgl/mgl64"

// Config содержит глобальные настройки физики мира
type Config struct {
	// Настройки гравитации
	Gravity mgl64.Vec3

	// Глобальные параметры затухания (доля скорости, теряемая за секунду)
	LinearDamping  float64
	AngularDamping float64

	// Упругость контакта корпуса с землёй
	GroundRestitution float64
}

// DefaultConfig возвращает конфигурацию мира по умолчанию
func DefaultConfig() Config {
	return Config{
		Gravity:           mgl64.Vec3{0, -9.81, 0},
		LinearDamping:     0.01,
		AngularDamping:    0.01,
		GroundRestitution: 0.0,
	}
}

// TerrainConfig описывает параметры карты высот
type TerrainConfig struct {
	// Размеры сетки
	Columns int
	Rows    int

	// Расстояние между узлами сетки в метрах
	ElementSize float64

	// Диапазон высот
	MinHeight float64
	MaxHeight float64

	// Радиус ровной площадки вокруг точки появления
	FlatRadius float64
}

// DefaultTerrainConfig возвращает настройки террейна, подходящие для машины
func DefaultTerrainConfig() TerrainConfig {
	return TerrainConfig{
		Columns:     128,
		Rows:        128,
		ElementSize: 2.0,
		MinHeight:   -1.0,
		MaxHeight:   3.0,
		FlatRadius:  12.0,
	}
}
