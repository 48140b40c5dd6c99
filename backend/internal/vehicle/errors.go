package vehicle

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTimeStep возвращается для неположительного шага
	ErrInvalidTimeStep = errors.New("vehicle: time step must be positive")

	// ErrWheelIndex возвращается для индекса колеса вне [0, 4)
	ErrWheelIndex = errors.New("vehicle: wheel index out of range")

	// ErrNotSteered возвращается при попытке повернуть неповоротное колесо
	ErrNotSteered = errors.New("vehicle: wheel is not steered")

	// ErrClosed возвращается после снятия машины с мира
	ErrClosed = errors.New("vehicle: rig is closed")
)

// ConfigError - ошибка конфигурации машины, обнаруженная при построении
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("vehicle config: %s: %s", e.Field, e.Reason)
}

func configErr(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
