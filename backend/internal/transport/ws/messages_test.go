package ws

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raycar/backend/internal/transform"
	"raycar/backend/internal/vehicle"
)

func TestGetCurrentServerTime(t *testing.T) {
	now := time.Now().UnixMilli()
	assert.InDelta(t, now, GetCurrentServerTime(), 100)
}

func TestParseClientMessage(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    ClientMessage
		wantErr bool
	}{
		{
			name: "key down",
			data: `{"type":"key","key":"w","down":true}`,
			want: ClientMessage{Type: MessageTypeKey, Key: "w", Down: true},
		},
		{
			name: "key up",
			data: `{"type":"key","key":"ArrowLeft"}`,
			want: ClientMessage{Type: MessageTypeKey, Key: "ArrowLeft"},
		},
		{
			name: "ping",
			data: `{"type":"ping","client_time":12.5}`,
			want: ClientMessage{Type: MessageTypePing, ClientTime: 12.5},
		},
		{name: "broken json", data: `{"type":`, wantErr: true},
		{name: "missing type", data: `{"key":"w"}`, wantErr: true},
		{name: "key without key", data: `{"type":"key","down":true}`, wantErr: true},
		{name: "unknown type", data: `{"type":"teleport"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClientMessage([]byte(tt.data))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMessage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewPongMessage(t *testing.T) {
	msg := NewPongMessage(42)
	assert.Equal(t, MessageTypePong, msg.Type)
	assert.Equal(t, 42.0, msg.ClientTime)
	assert.NotZero(t, msg.ServerTime)
}

func TestNewCreateMessages(t *testing.T) {
	scene := NewScene(vehicle.DefaultChassisSpec(), vehicle.DefaultWheelSpecs())
	msgs := NewCreateMessages(scene, transform.Snapshot{})

	require.Len(t, msgs, 1+vehicle.WheelCount)
	assert.Equal(t, ObjectChassis, msgs[0].Object)
	require.NotNil(t, msgs[0].Dimensions)
	assert.Equal(t, [3]float64{1.96, 1, 4.3}, *msgs[0].Dimensions)
	// Пустая поза превращается в единичное вращение и масштаб
	assert.Equal(t, [4]float64{0, 0, 0, 1}, msgs[0].Pose.Rotation)
	assert.Equal(t, [3]float64{1, 1, 1}, msgs[0].Pose.Scale)

	for i, msg := range msgs[1:] {
		assert.Equal(t, ObjectWheel, msg.Object)
		assert.Equal(t, wheelID(i), msg.ID)
		assert.Equal(t, 0.35, msg.Radius)
		assert.Nil(t, msg.Dimensions)
	}
	assert.Equal(t, "rear-left", msgs[1].Role)
}

func TestNewUpdateMessageSanitizesValues(t *testing.T) {
	var out vehicle.Outputs
	out.Step = 3
	out.SpeedKmHour = math.NaN()
	out.Drive = vehicle.DriveBraking
	out.Snapshot.Chassis = transform.Pose{
		Position:    mgl64.Vec3{1, math.Inf(1), 3},
		Orientation: mgl64.QuatIdent(),
		Scale:       mgl64.Vec3{1, 1, 1},
	}
	out.Wheels[2].InContact = true

	msg := NewUpdateMessage(out)
	assert.Equal(t, [3]float64{1, 0, 3}, msg.Chassis.Position)
	assert.Equal(t, 0.0, msg.SpeedKmHour)
	assert.Equal(t, "braking", msg.Drive)
	assert.Equal(t, [vehicle.WheelCount]bool{false, false, true, false}, msg.Contacts)

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, MessageTypeUpdate, decoded["type"])
	assert.Equal(t, 3.0, decoded["step"])
}
