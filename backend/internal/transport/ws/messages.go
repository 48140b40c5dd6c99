package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"raycar/backend/internal/transform"
	"raycar/backend/internal/vehicle"
)

// Типы сообщений
const (
	MessageTypeKey    = "key"    // Нажатие/отпускание клавиши от клиента
	MessageTypePing   = "ping"   // Пинг для измерения задержки
	MessageTypePong   = "pong"   // Ответ на пинг
	MessageTypeInfo   = "info"   // Информационное сообщение
	MessageTypeError  = "error"  // Ошибка обработки сообщения клиента
	MessageTypeCreate = "create" // Создание объекта сцены
	MessageTypeUpdate = "update" // Позы после шага симуляции
)

// Объекты сцены
const (
	ObjectChassis = "chassis"
	ObjectWheel   = "wheel"
)

// ErrInvalidMessage - сообщение клиента не разобрано
var ErrInvalidMessage = errors.New("ws: invalid message")

// ClientMessage - входящее сообщение клиента
type ClientMessage struct {
	Type       string  `json:"type"`
	Key        string  `json:"key,omitempty"`
	Down       bool    `json:"down,omitempty"`
	ClientTime float64 `json:"client_time,omitempty"`
}

// PoseMessage - поза объекта. Вращение в порядке x, y, z, w.
type PoseMessage struct {
	Position [3]float64 `json:"position"`
	Rotation [4]float64 `json:"rotation"`
	Scale    [3]float64 `json:"scale"`
}

// InfoMessage - приветствие и служебные сообщения
type InfoMessage struct {
	Type       string `json:"type"`
	Session    string `json:"session,omitempty"`
	Message    string `json:"message"`
	ServerTime int64  `json:"server_time"`
}

// PongMessage - ответ на пинг
type PongMessage struct {
	Type       string  `json:"type"`
	ClientTime float64 `json:"client_time"`
	ServerTime int64   `json:"server_time"`
}

// CreateMessage описывает объект сцены при подключении
type CreateMessage struct {
	Type       string      `json:"type"`
	ID         string      `json:"id"`
	Object     string      `json:"object_type"`
	Role       string      `json:"role,omitempty"`
	Dimensions *[3]float64 `json:"dimensions,omitempty"`
	Radius     float64     `json:"radius,omitempty"`
	Pose       PoseMessage `json:"pose"`
	ServerTime int64       `json:"server_time"`
}

// UpdateMessage - позы корпуса и колёс после шага
type UpdateMessage struct {
	Type        string                          `json:"type"`
	Step        uint64                          `json:"step"`
	Time        float64                         `json:"time"`
	Chassis     PoseMessage                     `json:"chassis"`
	Wheels      [vehicle.WheelCount]PoseMessage `json:"wheels"`
	Contacts    [vehicle.WheelCount]bool        `json:"contacts"`
	SpeedKmHour float64                         `json:"speed_kmh"`
	Drive       string                          `json:"drive"`
	Steer       string                          `json:"steer"`
	Reset       bool                            `json:"reset,omitempty"`
	ServerTime  int64                           `json:"server_time"`
}

// Scene - неизменяемое описание машины для сообщений create
type Scene struct {
	Dimensions mgl64.Vec3
	Wheels     [vehicle.WheelCount]SceneWheel
}

// SceneWheel - колесо в описании сцены
type SceneWheel struct {
	Role   vehicle.WheelRole
	Radius float64
}

// NewScene строит описание сцены из конфигурации машины
func NewScene(chassis vehicle.ChassisSpec, wheels [vehicle.WheelCount]vehicle.WheelSpec) Scene {
	s := Scene{Dimensions: chassis.Dimensions}
	for i, w := range wheels {
		s.Wheels[i] = SceneWheel{Role: w.Role, Radius: w.Radius}
	}
	return s
}

// GetCurrentServerTime возвращает текущее серверное время в миллисекундах
func GetCurrentServerTime() int64 {
	return time.Now().UnixMilli()
}

// ParseClientMessage разбирает входящее сообщение
func ParseClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	switch msg.Type {
	case "":
		return ClientMessage{}, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	case MessageTypeKey:
		if msg.Key == "" {
			return ClientMessage{}, fmt.Errorf("%w: key message without key", ErrInvalidMessage)
		}
	case MessageTypePing:
	default:
		return ClientMessage{}, fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, msg.Type)
	}
	return msg, nil
}

// NewInfoMessage создает информационное сообщение
func NewInfoMessage(session, message string) InfoMessage {
	return InfoMessage{
		Type:       MessageTypeInfo,
		Session:    session,
		Message:    message,
		ServerTime: GetCurrentServerTime(),
	}
}

// NewErrorMessage создает сообщение об ошибке
func NewErrorMessage(err error) InfoMessage {
	return InfoMessage{
		Type:       MessageTypeError,
		Message:    err.Error(),
		ServerTime: GetCurrentServerTime(),
	}
}

// NewPongMessage создает ответ на пинг
func NewPongMessage(clientTime float64) PongMessage {
	return PongMessage{
		Type:       MessageTypePong,
		ClientTime: clientTime,
		ServerTime: GetCurrentServerTime(),
	}
}

// NewCreateMessages описывает корпус и четыре колеса. snap - последние позы, если есть.
func NewCreateMessages(scene Scene, snap transform.Snapshot) []CreateMessage {
	now := GetCurrentServerTime()
	dims := [3]float64{safeValue(scene.Dimensions[0], 1), safeValue(scene.Dimensions[1], 1), safeValue(scene.Dimensions[2], 1)}

	msgs := make([]CreateMessage, 0, 1+vehicle.WheelCount)
	msgs = append(msgs, CreateMessage{
		Type:       MessageTypeCreate,
		ID:         ObjectChassis,
		Object:     ObjectChassis,
		Dimensions: &dims,
		Pose:       poseMessage(snap.Chassis),
		ServerTime: now,
	})
	for i, w := range scene.Wheels {
		msgs = append(msgs, CreateMessage{
			Type:       MessageTypeCreate,
			ID:         wheelID(i),
			Object:     ObjectWheel,
			Role:       w.Role.String(),
			Radius:     safeValue(w.Radius, 1),
			Pose:       poseMessage(snap.Wheels[i]),
			ServerTime: now,
		})
	}
	return msgs
}

// NewUpdateMessage строит сообщение update из результата шага
func NewUpdateMessage(out vehicle.Outputs) UpdateMessage {
	msg := UpdateMessage{
		Type:        MessageTypeUpdate,
		Step:        out.Step,
		Time:        safeValue(out.Time, 0),
		Chassis:     poseMessage(out.Snapshot.Chassis),
		SpeedKmHour: safeValue(out.SpeedKmHour, 0),
		Drive:       out.Drive.String(),
		Steer:       out.Steer.String(),
		Reset:       out.Reset,
		ServerTime:  GetCurrentServerTime(),
	}
	for i := range out.Snapshot.Wheels {
		msg.Wheels[i] = poseMessage(out.Snapshot.Wheels[i])
		msg.Contacts[i] = out.Wheels[i].InContact
	}
	return msg
}

func wheelID(i int) string {
	return fmt.Sprintf("%s_%d", ObjectWheel, i)
}

func poseMessage(p transform.Pose) PoseMessage {
	q := p.Orientation
	if q.Len() == 0 {
		q = mgl64.QuatIdent()
	}
	scale := p.Scale
	if scale == (mgl64.Vec3{}) {
		scale = mgl64.Vec3{1, 1, 1}
	}
	return PoseMessage{
		Position: [3]float64{safeValue(p.Position[0], 0), safeValue(p.Position[1], 0), safeValue(p.Position[2], 0)},
		Rotation: [4]float64{safeValue(q.V[0], 0), safeValue(q.V[1], 0), safeValue(q.V[2], 0), safeValue(q.W, 1)},
		Scale:    [3]float64{safeValue(scale[0], 1), safeValue(scale[1], 1), safeValue(scale[2], 1)},
	}
}

// safeValue заменяет NaN и бесконечности, которые encoding/json не сериализует
func safeValue(value, defaultValue float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return defaultValue
	}
	return value
}
