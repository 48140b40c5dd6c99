package game

import (
	"sync"
	"time"
)

// PerformanceMonitor отслеживает производительность каждой системы
type PerformanceMonitor struct {
	systemMetrics map[string]*SystemMetrics
	mutex         sync.RWMutex

	// Настройки мониторинга
	metricsWindow     int           // Количество последних тиков для усреднения
	warningThreshold  time.Duration // Порог предупреждения для системы
	criticalThreshold time.Duration // Критический порог для максимального времени
}

// SystemMetrics метрики производительности системы
type SystemMetrics struct {
	Name              string
	LastExecutionTime time.Duration
	AverageTime       time.Duration
	MaxTime           time.Duration
	TotalExecutions   uint64
	Errors            uint64

	// Скользящее окно для вычисления среднего
	recentTimes  []time.Duration
	recentIndex  int
	windowFilled bool
}

// SystemStats - снимок метрик системы
type SystemStats struct {
	LastExecutionTime time.Duration `json:"lastExecutionTime"`
	AverageTime       time.Duration `json:"averageTime"`
	MaxTime           time.Duration `json:"maxTime"`
	TotalExecutions   uint64        `json:"totalExecutions"`
	Errors            uint64        `json:"errors"`
	Slow              bool          `json:"slow"`
	Critical          bool          `json:"critical"`
}

// NewPerformanceMonitor создает новый монитор производительности
func NewPerformanceMonitor(windowSize int, warningThreshold time.Duration) *PerformanceMonitor {
	if windowSize <= 0 {
		windowSize = 50
	}
	return &PerformanceMonitor{
		systemMetrics:     make(map[string]*SystemMetrics),
		metricsWindow:     windowSize,
		warningThreshold:  warningThreshold,
		criticalThreshold: warningThreshold * 2,
	}
}

func (pm *PerformanceMonitor) initSystemMetrics(systemName string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	pm.systemMetrics[systemName] = &SystemMetrics{
		Name:        systemName,
		recentTimes: make([]time.Duration, pm.metricsWindow),
	}
}

func (pm *PerformanceMonitor) recordExecution(systemName string, executionTime time.Duration) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	metrics, exists := pm.systemMetrics[systemName]
	if !exists {
		return
	}

	metrics.LastExecutionTime = executionTime
	metrics.TotalExecutions++

	if executionTime > metrics.MaxTime {
		metrics.MaxTime = executionTime
	}

	metrics.recentTimes[metrics.recentIndex] = executionTime
	metrics.recentIndex = (metrics.recentIndex + 1) % pm.metricsWindow

	if !metrics.windowFilled && metrics.recentIndex == 0 {
		metrics.windowFilled = true
	}

	pm.recalculateAverage(metrics)
}

func (pm *PerformanceMonitor) recordError(systemName string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if metrics, exists := pm.systemMetrics[systemName]; exists {
		metrics.Errors++
	}
}

func (pm *PerformanceMonitor) recalculateAverage(metrics *SystemMetrics) {
	limit := pm.metricsWindow
	if !metrics.windowFilled {
		limit = metrics.recentIndex
	}
	if limit == 0 {
		return
	}

	var total time.Duration
	for i := 0; i < limit; i++ {
		total += metrics.recentTimes[i]
	}
	metrics.AverageTime = total / time.Duration(limit)
}

// SystemsStats возвращает метрики всех систем
func (pm *PerformanceMonitor) SystemsStats() map[string]SystemStats {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	stats := make(map[string]SystemStats, len(pm.systemMetrics))
	for name, m := range pm.systemMetrics {
		stats[name] = SystemStats{
			LastExecutionTime: m.LastExecutionTime,
			AverageTime:       m.AverageTime,
			MaxTime:           m.MaxTime,
			TotalExecutions:   m.TotalExecutions,
			Errors:            m.Errors,
			Slow:              pm.warningThreshold > 0 && m.AverageTime > pm.warningThreshold,
			Critical:          pm.criticalThreshold > 0 && m.MaxTime > pm.criticalThreshold,
		}
	}
	return stats
}
