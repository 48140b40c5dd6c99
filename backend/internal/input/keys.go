package input

import "strings"

// Action - логическое действие, которое может удерживать игрок
type Action int

const (
	ActionSteerLeft Action = iota
	ActionSteerRight
	ActionThrottle
	ActionReverse
	ActionBrake
	ActionReset
)

func (a Action) String() string {
	switch a {
	case ActionSteerLeft:
		return "steer-left"
	case ActionSteerRight:
		return "steer-right"
	case ActionThrottle:
		return "throttle"
	case ActionReverse:
		return "reverse"
	case ActionBrake:
		return "brake"
	case ActionReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Идентификаторы клавиш в нижнем регистре
const (
	KeySpace = " "
)

var keyActions = map[string]Action{
	"a":         ActionSteerLeft,
	"arrowleft": ActionSteerLeft,

	"d":          ActionSteerRight,
	"arrowright": ActionSteerRight,

	"w":       ActionThrottle,
	"arrowup": ActionThrottle,

	"s":         ActionReverse,
	"arrowdown": ActionReverse,

	KeySpace: ActionBrake,

	"r": ActionReset,
}

// Синонимы, которые присылают разные источники ввода
var keyAliases = map[string]string{
	"space":    KeySpace,
	"spacebar": KeySpace,
	"left":     "arrowleft",
	"right":    "arrowright",
	"up":       "arrowup",
	"down":     "arrowdown",
}

// Normalize приводит идентификатор клавиши к каноническому виду
func Normalize(id string) string {
	if id == KeySpace {
		return id
	}
	k := strings.ToLower(strings.TrimSpace(id))
	if alias, ok := keyAliases[k]; ok {
		return alias
	}
	return k
}

// Lookup возвращает действие для клавиши без учёта регистра
func Lookup(id string) (Action, bool) {
	a, ok := keyActions[Normalize(id)]
	return a, ok
}
