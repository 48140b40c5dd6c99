package input

// Queue передаёт события из горутин ввода в горутину симуляции
type Queue struct {
	events chan Event
}

// NewQueue создает очередь с буфером size
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{events: make(chan Event, size)}
}

// Push ставит событие в очередь без блокировки. false - очередь переполнена.
func (q *Queue) Push(ev Event) bool {
	select {
	case q.events <- ev:
		return true
	default:
		return false
	}
}

// Drain применяет все накопленные события к состоянию и возвращает их число
func (q *Queue) Drain(s *State) int {
	n := 0
	for {
		select {
		case ev := <-q.events:
			s.Apply(ev)
			n++
		default:
			return n
		}
	}
}

// Len возвращает число ожидающих событий
func (q *Queue) Len() int {
	return len(q.events)
}
