package input

import "sort"

// Intent - снимок управляющих намерений, вычисленный из удерживаемых клавиш
type Intent struct {
	SteerLeft  bool
	SteerRight bool
	Throttle   bool
	Reverse    bool
	Brake      bool

	// Reset срабатывает по фронту нажатия: одно нажатие - один сброс
	Reset bool
}

// Event - фронт нажатия или отпускания клавиши
type Event struct {
	Key  string `json:"key"`
	Down bool   `json:"down"`
}

// State хранит множество удерживаемых клавиш. Принадлежит горутине симуляции,
// источники ввода передают события через Queue.
type State struct {
	held         map[string]Action
	intent       Intent
	resetPending bool
}

// NewState создает пустое состояние ввода
func NewState() *State {
	return &State{held: make(map[string]Action)}
}

// Press обрабатывает нажатие. Возвращает true, если множество клавиш изменилось.
// Повторные события автоповтора ничего не меняют.
func (s *State) Press(id string) bool {
	key := Normalize(id)
	action, ok := keyActions[key]
	if !ok {
		return false
	}
	if _, held := s.held[key]; held {
		return false
	}

	s.held[key] = action
	if action == ActionReset {
		s.resetPending = true
	}
	s.recompute()
	return true
}

// Release обрабатывает отпускание клавиши
func (s *State) Release(id string) bool {
	key := Normalize(id)
	if _, held := s.held[key]; !held {
		return false
	}
	delete(s.held, key)
	s.recompute()
	return true
}

// Apply применяет событие
func (s *State) Apply(ev Event) bool {
	if ev.Down {
		return s.Press(ev.Key)
	}
	return s.Release(ev.Key)
}

// Intent возвращает текущий снимок без потребления сброса
func (s *State) Intent() Intent {
	in := s.intent
	in.Reset = s.resetPending
	return in
}

// TakeIntent возвращает снимок и потребляет ожидающий сброс
func (s *State) TakeIntent() Intent {
	in := s.Intent()
	s.resetPending = false
	return in
}

// Len возвращает число удерживаемых клавиш
func (s *State) Len() int {
	return len(s.held)
}

// Held возвращает отсортированный список удерживаемых клавиш
func (s *State) Held() []string {
	keys := make([]string, 0, len(s.held))
	for k := range s.held {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clear отпускает все клавиши и отменяет ожидающий сброс
func (s *State) Clear() {
	s.held = make(map[string]Action)
	s.resetPending = false
	s.recompute()
}

func (s *State) recompute() {
	var in Intent
	for _, a := range s.held {
		switch a {
		case ActionSteerLeft:
			in.SteerLeft = true
		case ActionSteerRight:
			in.SteerRight = true
		case ActionThrottle:
			in.Throttle = true
		case ActionReverse:
			in.Reverse = true
		case ActionBrake:
			in.Brake = true
		}
	}
	s.intent = in
}
