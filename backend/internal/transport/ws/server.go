package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"raycar/backend/internal/input"
	"raycar/backend/internal/vehicle"
)

const maxMessageSize = 4096

// EventSink принимает события ввода, Push не блокируется
type EventSink interface {
	Push(ev input.Event) bool
}

// Config - настройки сервера
type Config struct {
	Addr           string
	UpdateInterval time.Duration
	WriteTimeout   time.Duration
}

// Server раздает позы машины по websocket и принимает клавиши от клиентов
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader
	sink     EventSink
	scene    Scene
	logger   *zap.Logger

	clients   map[*session]struct{}
	clientsMu sync.Mutex

	// Сколько сессий держат клавишу. Отпускание уходит в симуляцию, когда держателей не осталось.
	holders   map[string]int
	holdersMu sync.Mutex

	latestMu  sync.RWMutex
	latest    vehicle.Outputs
	hasLatest bool
	sentStep  uint64
	notify    chan struct{}
}

// session - одно websocket подключение
type session struct {
	id     string
	writer *SafeWriter
	// Удерживаемые клавиши. Только для горутины чтения.
	held map[string]struct{}
}

// NewServer создает сервер
func NewServer(cfg Config, sink EventSink, scene Scene, logger *zap.Logger) *Server {
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = 33 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:  cfg,
		sink: sink,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		scene:   scene,
		logger:  logger.Named("ws"),
		clients: make(map[*session]struct{}),
		holders: make(map[string]int),
		notify:  make(chan struct{}, 1),
	}
}

// Handler возвращает маршруты сервера
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// OnSnapshot запоминает результат шага. Вызывается из горутины симуляции и не блокируется.
func (s *Server) OnSnapshot(out vehicle.Outputs) {
	s.latestMu.Lock()
	s.latest = out
	s.hasLatest = true
	s.latestMu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Latest возвращает последний результат шага
func (s *Server) Latest() (vehicle.Outputs, bool) {
	s.latestMu.RLock()
	defer s.latestMu.RUnlock()
	return s.latest, s.hasLatest
}

// ClientCount возвращает число подключенных клиентов
func (s *Server) ClientCount() int {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	return len(s.clients)
}

// Run слушает cfg.Addr и рассылает обновления до отмены контекста
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve обслуживает соединения на ln до отмены контекста
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("websocket сервер запущен", zap.String("addr", ln.Addr().String()))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		s.broadcastLoop(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.closeAll()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// HandleWS обрабатывает WebSocket соединения
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ошибка при установке WebSocket соединения", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxMessageSize)

	sess := &session{
		id:     uuid.NewString(),
		writer: NewSafeWriter(conn, s.cfg.WriteTimeout),
		held:   make(map[string]struct{}),
	}
	logger := s.logger.With(zap.String("session", sess.id))

	if err := s.greet(sess); err != nil {
		logger.Warn("ошибка отправки начальных объектов", zap.Error(err))
		_ = sess.writer.Close()
		return
	}

	s.clientsMu.Lock()
	s.clients[sess] = struct{}{}
	s.clientsMu.Unlock()
	logger.Info("клиент подключен", zap.String("remote", r.RemoteAddr))

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, sess)
		s.clientsMu.Unlock()
		s.releaseHeld(sess)
		_ = sess.writer.Close()
		logger.Info("клиент отключен")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("ошибка при чтении сообщения", zap.Error(err))
			}
			return
		}

		if err := s.handleMessage(sess, data); err != nil {
			logger.Debug("ошибка обработки сообщения", zap.Error(err))
			if werr := sess.writer.WriteJSON(NewErrorMessage(err)); werr != nil {
				return
			}
		}
	}
}

func (s *Server) greet(sess *session) error {
	if err := sess.writer.WriteJSON(NewInfoMessage(sess.id, "connected")); err != nil {
		return err
	}
	latest, _ := s.Latest()
	for _, msg := range NewCreateMessages(s.scene, latest.Snapshot) {
		if err := sess.writer.WriteJSON(msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleMessage(sess *session, data []byte) error {
	msg, err := ParseClientMessage(data)
	if err != nil {
		return err
	}

	switch msg.Type {
	case MessageTypePing:
		return sess.writer.WriteJSON(NewPongMessage(msg.ClientTime))
	case MessageTypeKey:
		key := input.Normalize(msg.Key)
		if _, ok := input.Lookup(key); !ok {
			// Неизвестные клавиши игнорируются так же, как в состоянии ввода
			return nil
		}
		if msg.Down {
			s.press(sess, key)
		} else {
			s.release(sess, key)
		}
	}
	return nil
}

func (s *Server) press(sess *session, key string) {
	if _, ok := sess.held[key]; !ok {
		sess.held[key] = struct{}{}
		s.holdersMu.Lock()
		s.holders[key]++
		s.holdersMu.Unlock()
	}
	s.push(sess, input.Event{Key: key, Down: true})
}

// release отпускает клавишу сессии. Пока ее держит другой клиент, симуляция не узнает об отпускании.
func (s *Server) release(sess *session, key string) {
	if _, ok := sess.held[key]; !ok {
		return
	}
	delete(sess.held, key)

	s.holdersMu.Lock()
	s.holders[key]--
	last := s.holders[key] <= 0
	if last {
		delete(s.holders, key)
	}
	s.holdersMu.Unlock()

	if last {
		s.push(sess, input.Event{Key: key, Down: false})
	}
}

// releaseHeld отпускает клавиши, которые держал отключившийся клиент
func (s *Server) releaseHeld(sess *session) {
	for key := range sess.held {
		s.release(sess, key)
	}
}

func (s *Server) push(sess *session, ev input.Event) {
	if !s.sink.Push(ev) {
		s.logger.Warn("очередь ввода переполнена", zap.String("session", sess.id), zap.String("key", ev.Key))
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case <-s.notify:
				s.BroadcastLatest()
			default:
			}
		}
	}
}

// BroadcastLatest рассылает последний результат шага, если он еще не отправлялся
func (s *Server) BroadcastLatest() bool {
	s.latestMu.Lock()
	if !s.hasLatest || s.latest.Step == s.sentStep {
		s.latestMu.Unlock()
		return false
	}
	out := s.latest
	s.sentStep = out.Step
	s.latestMu.Unlock()

	s.broadcast(NewUpdateMessage(out))
	return true
}

func (s *Server) broadcast(msg any) {
	s.clientsMu.Lock()
	clients := make([]*session, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.clientsMu.Unlock()

	for _, c := range clients {
		if err := c.writer.WriteJSON(msg); err != nil {
			s.logger.Debug("ошибка при отправке обновления клиенту",
				zap.String("session", c.id),
				zap.Error(err))
			// Чтение завершится ошибкой и уберет клиента
			_ = c.writer.Close()
		}
	}
}

func (s *Server) closeAll() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		_ = c.writer.CloseGracefully(websocket.CloseGoingAway, "server stopping")
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	out, ok := s.Latest()
	if !ok {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(NewUpdateMessage(out)); err != nil {
		s.logger.Warn("ошибка кодирования состояния", zap.Error(err))
	}
}
