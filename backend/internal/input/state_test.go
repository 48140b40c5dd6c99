package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupCaseInsensitive(t *testing.T) {
	tests := []struct {
		key    string
		action Action
	}{
		{"a", ActionSteerLeft},
		{"A", ActionSteerLeft},
		{"ArrowLeft", ActionSteerLeft},
		{"d", ActionSteerRight},
		{"ARROWRIGHT", ActionSteerRight},
		{"w", ActionThrottle},
		{"ArrowUp", ActionThrottle},
		{"s", ActionReverse},
		{"arrowdown", ActionReverse},
		{" ", ActionBrake},
		{"Space", ActionBrake},
		{"r", ActionReset},
		{"R", ActionReset},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			a, ok := Lookup(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.action, a)
		})
	}

	_, ok := Lookup("q")
	assert.False(t, ok)
}

func TestUnknownKeyIsIgnored(t *testing.T) {
	s := NewState()
	assert.False(t, s.Press("x"))
	assert.False(t, s.Release("x"))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, Intent{}, s.Intent())
}

func TestPressIsIdempotent(t *testing.T) {
	s := NewState()
	require.True(t, s.Press("w"))
	for i := 0; i < 10; i++ {
		assert.False(t, s.Press("W"))
	}
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Intent().Throttle)
}

func TestReleaseKeepsActionWhileOtherKeyHeld(t *testing.T) {
	s := NewState()
	s.Press("a")
	s.Press("ArrowLeft")
	s.Release("a")

	assert.True(t, s.Intent().SteerLeft)
	assert.Equal(t, []string{"arrowleft"}, s.Held())

	s.Release("arrowleft")
	assert.False(t, s.Intent().SteerLeft)
}

func TestIntentRecomputedImmediately(t *testing.T) {
	s := NewState()
	s.Press("w")
	s.Press(" ")
	s.Press("d")

	in := s.Intent()
	assert.True(t, in.Throttle)
	assert.True(t, in.Brake)
	assert.True(t, in.SteerRight)
	assert.False(t, in.Reverse)

	s.Release(" ")
	assert.False(t, s.Intent().Brake)
}

func TestResetIsEdgeTriggered(t *testing.T) {
	s := NewState()
	s.Press("r")

	// Intent не потребляет сброс
	assert.True(t, s.Intent().Reset)
	assert.True(t, s.TakeIntent().Reset)

	// Клавиша всё ещё удерживается, но сброс уже потреблён
	assert.False(t, s.TakeIntent().Reset)
	s.Press("r")
	assert.False(t, s.TakeIntent().Reset)

	s.Release("r")
	s.Press("r")
	assert.True(t, s.TakeIntent().Reset)
}

func TestClear(t *testing.T) {
	s := NewState()
	s.Press("w")
	s.Press("r")
	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, Intent{}, s.TakeIntent())
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue(4)
	s := NewState()

	require.True(t, q.Push(Event{Key: "w", Down: true}))
	require.True(t, q.Push(Event{Key: "w", Down: true}))
	require.True(t, q.Push(Event{Key: "a", Down: true}))
	require.True(t, q.Push(Event{Key: "a", Down: false}))
	assert.False(t, q.Push(Event{Key: "d", Down: true}))

	assert.Equal(t, 4, q.Drain(s))
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, []string{"w"}, s.Held())
}
