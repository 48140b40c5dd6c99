package terminal

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode"

	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"

	"raycar/backend/internal/input"
	"raycar/backend/internal/vehicle"
)

// DefaultHoldWindow - сколько клавиша считается зажатой после последнего повтора.
// Терминал не сообщает об отпускании, только о нажатиях и автоповторе.
const DefaultHoldWindow = 500 * time.Millisecond

const frameInterval = 33 * time.Millisecond

// EventSink принимает события ввода
type EventSink interface {
	Push(ev input.Event) bool
}

// Driver управляет машиной с клавиатуры терминала и рисует приборную панель
type Driver struct {
	screen     tcell.Screen
	sink       EventSink
	holdWindow time.Duration
	logger     *zap.Logger

	// Время последнего нажатия удерживаемых клавиш. Только для горутины Run.
	held map[string]time.Time

	mu        sync.RWMutex
	latest    vehicle.Outputs
	hasLatest bool
}

// NewDriver создает драйвер. holdWindow <= 0 - DefaultHoldWindow.
func NewDriver(screen tcell.Screen, sink EventSink, holdWindow time.Duration, logger *zap.Logger) *Driver {
	if holdWindow <= 0 {
		holdWindow = DefaultHoldWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		screen:     screen,
		sink:       sink,
		holdWindow: holdWindow,
		logger:     logger.Named("terminal"),
		held:       make(map[string]time.Time),
	}
}

// TranslateKey переводит клавишу терминала в идентификатор ввода
func TranslateKey(ev *tcell.EventKey) (string, bool) {
	var id string
	switch ev.Key() {
	case tcell.KeyLeft:
		id = "arrowleft"
	case tcell.KeyRight:
		id = "arrowright"
	case tcell.KeyUp:
		id = "arrowup"
	case tcell.KeyDown:
		id = "arrowdown"
	case tcell.KeyRune:
		id = string(unicode.ToLower(ev.Rune()))
	default:
		return "", false
	}
	if _, ok := input.Lookup(id); !ok {
		return "", false
	}
	return input.Normalize(id), true
}

// HandleEvent обрабатывает событие терминала. Возвращает false, если пора выходить.
func (d *Driver) HandleEvent(ev tcell.Event, now time.Time) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		key, ok := TranslateKey(ev)
		if !ok {
			return true
		}
		if _, held := d.held[key]; !held {
			d.push(input.Event{Key: key, Down: true})
		}
		d.held[key] = now

	case *tcell.EventResize:
		d.screen.Sync()
	}
	return true
}

// ReleaseExpired отпускает клавиши без повторов дольше holdWindow
func (d *Driver) ReleaseExpired(now time.Time) int {
	released := 0
	for key, last := range d.held {
		if now.Sub(last) > d.holdWindow {
			d.push(input.Event{Key: key, Down: false})
			delete(d.held, key)
			released++
		}
	}
	return released
}

// ReleaseAll отпускает все удерживаемые клавиши
func (d *Driver) ReleaseAll() {
	for key := range d.held {
		d.push(input.Event{Key: key, Down: false})
		delete(d.held, key)
	}
}

// Held возвращает удерживаемые клавиши
func (d *Driver) Held() []string {
	keys := make([]string, 0, len(d.held))
	for key := range d.held {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// OnSnapshot запоминает результат шага для панели. Вызывается из горутины симуляции.
func (d *Driver) OnSnapshot(out vehicle.Outputs) {
	d.mu.Lock()
	d.latest = out
	d.hasLatest = true
	d.mu.Unlock()
}

// Run обрабатывает клавиши и перерисовывает панель до выхода или отмены контекста
func (d *Driver) Run(ctx context.Context) error {
	events := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := d.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	defer d.ReleaseAll()

	d.logger.Info("терминальное управление запущено", zap.Duration("holdWindow", d.holdWindow))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !d.HandleEvent(ev, time.Now()) {
				d.logger.Info("выход по клавише")
				return nil
			}
		case now := <-ticker.C:
			d.ReleaseExpired(now)
			d.Draw()
		}
	}
}

// Draw рисует приборную панель
func (d *Driver) Draw() {
	d.mu.RLock()
	out, ok := d.latest, d.hasLatest
	d.mu.RUnlock()

	d.screen.Clear()
	title := tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	text := tcell.StyleDefault
	dim := tcell.StyleDefault.Foreground(tcell.ColorGray)

	d.drawText(0, 0, title, "raycar")
	d.drawText(0, 1, dim, "W/S газ/назад  A/D руль  Space тормоз  R сброс  Esc выход")

	if !ok {
		d.drawText(0, 3, text, "ожидание симуляции...")
		d.screen.Show()
		return
	}

	pos := out.Chassis.Position
	d.drawText(0, 3, text, fmt.Sprintf("шаг %d  t=%.2fs", out.Step, out.Time))
	d.drawText(0, 4, text, fmt.Sprintf("скорость %7.1f км/ч", out.SpeedKmHour))
	d.drawText(0, 5, text, fmt.Sprintf("режим %-8s руль %s", out.Drive, out.Steer))
	d.drawText(0, 6, text, fmt.Sprintf("корпус (%.2f, %.2f, %.2f)", pos.X(), pos.Y(), pos.Z()))

	for i, w := range out.Wheels {
		style := text
		contact := "в воздухе"
		if w.InContact {
			contact = "контакт"
		}
		if w.Sliding {
			style = tcell.StyleDefault.Foreground(tcell.ColorRed)
			contact += " занос"
		}
		d.drawText(0, 8+i, style, fmt.Sprintf("колесо %d  подвеска %.3f  сила %8.1f  %s",
			i, w.SuspensionLength, w.SuspensionForce, contact))
	}

	d.drawText(0, 13, dim, fmt.Sprintf("зажато: %v", d.Held()))
	d.screen.Show()
}

func (d *Driver) drawText(x, y int, style tcell.Style, s string) {
	for _, r := range s {
		d.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

func (d *Driver) push(ev input.Event) {
	if !d.sink.Push(ev) {
		d.logger.Warn("очередь ввода переполнена", zap.String("key", ev.Key), zap.Bool("down", ev.Down))
	}
}
