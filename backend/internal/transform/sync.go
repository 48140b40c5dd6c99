package transform

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// WheelCount - число колёс у машины
const WheelCount = 4

// Pose - поза объекта представления
type Pose struct {
	Position    mgl64.Vec3 `json:"position"`
	Orientation mgl64.Quat `json:"orientation"`
	Scale       mgl64.Vec3 `json:"scale"`
}

// Target принимает позу от синхронизатора (меш, узел сцены, сетевой клиент)
type Target interface {
	SetPose(p Pose)
}

// TargetFunc позволяет использовать функцию как Target
type TargetFunc func(p Pose)

func (f TargetFunc) SetPose(p Pose) { f(p) }

// Snapshot - позы корпуса и колёс после одного шага физики
type Snapshot struct {
	Step    uint64           `json:"step"`
	Chassis Pose             `json:"chassis"`
	Wheels  [WheelCount]Pose `json:"wheels"`
}

// Sync копирует решённые позы из физики в цели представления.
// Цели могут появиться позже первого шага, непривязанные пропускаются.
type Sync struct {
	mu sync.RWMutex

	chassisOffset mgl64.Vec3
	wheelScale    [WheelCount]mgl64.Vec3

	chassis Target
	wheels  [WheelCount]Target

	latest    Snapshot
	hasLatest bool
}

// New создает синхронизатор со смещением меша корпуса в мировых осях
func New(chassisOffset mgl64.Vec3) *Sync {
	s := &Sync{chassisOffset: chassisOffset}
	for i := range s.wheelScale {
		s.wheelScale[i] = mgl64.Vec3{1, 1, 1}
	}
	return s
}

// SetWheelScale задает масштаб меша колеса (отрицательные компоненты зеркалят меш)
func (s *Sync) SetWheelScale(i int, scale mgl64.Vec3) bool {
	if i < 0 || i >= WheelCount {
		return false
	}
	s.mu.Lock()
	s.wheelScale[i] = scale
	s.mu.Unlock()
	return true
}

// ChassisOffset возвращает смещение меша корпуса
func (s *Sync) ChassisOffset() mgl64.Vec3 {
	return s.chassisOffset
}

// BindChassis привязывает цель корпуса
func (s *Sync) BindChassis(t Target) {
	s.mu.Lock()
	s.chassis = t
	s.mu.Unlock()
}

// BindWheel привязывает цель колеса i
func (s *Sync) BindWheel(i int, t Target) bool {
	if i < 0 || i >= WheelCount {
		return false
	}
	s.mu.Lock()
	s.wheels[i] = t
	s.mu.Unlock()
	return true
}

// UnbindAll отвязывает все цели
func (s *Sync) UnbindAll() {
	s.mu.Lock()
	s.chassis = nil
	s.wheels = [WheelCount]Target{}
	s.mu.Unlock()
}

// Apply строит снимок поз и передает его привязанным целям.
// Вызывается только после шага физики. Цели вызываются без блокировки и уже видят снимок в Latest.
func (s *Sync) Apply(step uint64, chassis Pose, wheels [WheelCount]Pose) Snapshot {
	s.mu.Lock()
	snap := Snapshot{Step: step}
	snap.Chassis = Pose{
		Position:    chassis.Position.Add(s.chassisOffset),
		Orientation: chassis.Orientation,
		Scale:       mgl64.Vec3{1, 1, 1},
	}
	for i, w := range wheels {
		w.Scale = s.wheelScale[i]
		snap.Wheels[i] = w
	}
	s.latest = snap
	s.hasLatest = true

	chassisTarget, wheelTargets := s.chassis, s.wheels
	s.mu.Unlock()

	if chassisTarget != nil {
		chassisTarget.SetPose(snap.Chassis)
	}
	for i, t := range wheelTargets {
		if t != nil {
			t.SetPose(snap.Wheels[i])
		}
	}
	return snap
}

// Latest возвращает последний снимок. false - шагов еще не было.
func (s *Sync) Latest() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.hasLatest
}
