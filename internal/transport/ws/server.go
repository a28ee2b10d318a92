package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-relay/internal/domain"
	"github.com/cwrk-planet/chat-relay/internal/logger"
	"github.com/cwrk-planet/chat-relay/internal/service"
	"github.com/cwrk-planet/chat-relay/internal/transport/dto"

	"github.com/gorilla/websocket"
)

const maxDecodeErrorsPerConn = 3

// Authenticator: проверка токена до апгрейда соединения.
type Authenticator interface {
	Verify(token string) (domain.Identity, error)
}

// ChatPoster сохраняет сообщение и возвращает его обогащённым.
type ChatPoster interface {
	Post(ctx context.Context, author domain.Identity, roomID domain.RoomID, content string) (domain.MessageView, error)
}

type Config struct {
	AllowedOrigins []string
	// RequireJoin: отклонять chatMessage в комнату, в которую сессия не входила.
	RequireJoin   bool
	SendBuffer    int
	MaxFrameBytes int64
	PingEvery     time.Duration
	WriteTimeout  time.Duration
}

func (c *Config) setDefaults() {
	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = 16 << 10
	}
	if c.PingEvery <= 0 {
		c.PingEvery = 15 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
}

type Server struct {
	upgrader websocket.Upgrader
	registry *Registry
	auth     Authenticator
	chat     ChatPoster
	cfg      Config

	mu       sync.Mutex
	sessions map[*Session]struct{}
	closing  bool
	wg       sync.WaitGroup
}

func NewServer(registry *Registry, auth Authenticator, chat ChatPoster, cfg Config) *Server {
	cfg.setDefaults()
	return &Server{
		registry: registry,
		auth:     auth,
		chat:     chat,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{bearerSubprotocol},
			CheckOrigin:     OriginChecker(cfg.AllowedOrigins),
		},
		sessions: make(map[*Session]struct{}),
	}
}

func (s *Server) Registry() *Registry { return s.registry }

// HandleWS: GET /ws. Токен проверяется до апгрейда; неаутентифицированное
// соединение получает 401 и до событий не доходит.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	identity, err := s.auth.Verify(tokenFromRequest(r))
	if err != nil {
		log.Warn("ws auth rejected", "remote", r.RemoteAddr, "err", err)
		http.Error(w, "authentication error", http.StatusUnauthorized)
		return
	}

	sess := NewSession(identity, s.cfg.SendBuffer)
	if !s.track(sess) {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.untrack(sess)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader уже ответил клиенту
		log.Warn("ws upgrade failed", "user", identity.UserID, "err", err)
		return
	}
	sess.conn = conn

	log = log.With("session", sess.ID(), "user", identity.UserID)
	ctx := logger.WithContext(r.Context(), log)
	log.Info("ws connected", "username", identity.Username)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx, sess)
	}()

	s.readLoop(ctx, sess)

	// отключение: из комнат убираем сразу, чтобы больше ничего не получать
	s.registry.LeaveAll(sess)
	sess.Close()
	<-writerDone
	_ = conn.Close()

	log.Info("ws disconnected")
}

func (s *Server) readLoop(ctx context.Context, sess *Session) {
	conn := sess.conn
	log := logger.FromContext(ctx)

	conn.SetReadLimit(s.cfg.MaxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingEvery))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * s.cfg.PingEvery))
	})

	decodeErrors := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !sess.Closed() {
				log.Debug("ws read failed", "err", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Type == "" {
			decodeErrors++
			s.sendError(ctx, sess, CodeBadRequest, "malformed frame")
			if decodeErrors >= maxDecodeErrorsPerConn {
				log.Warn("ws too many malformed frames, closing")
				return
			}
			continue
		}
		decodeErrors = 0

		s.dispatch(ctx, sess, frame)
	}
}

// dispatch выполняется в readLoop последовательно: порядок сообщений одной
// сессии = порядок записи = порядок рассылки.
func (s *Server) dispatch(ctx context.Context, sess *Session, frame Frame) {
	switch frame.Type {
	case TypeJoinRoom, TypeJoinCampaign:
		roomID, err := decodeRoom(frame.Payload)
		if err != nil || !service.ValidRoom(roomID) {
			s.sendError(ctx, sess, CodeValidation, domain.ErrInvalidRoom.Error())
			return
		}
		s.registry.Join(sess, roomID)
		logger.FromContext(ctx).Debug("ws joined room", "room", roomID)
		s.send(ctx, sess, TypeJoined, RoomEventPayload{RoomID: string(roomID)})

	case TypeLeaveRoom:
		roomID, err := decodeRoom(frame.Payload)
		if err != nil || !service.ValidRoom(roomID) {
			s.sendError(ctx, sess, CodeValidation, domain.ErrInvalidRoom.Error())
			return
		}
		s.registry.Leave(sess, roomID)
		s.send(ctx, sess, TypeLeft, RoomEventPayload{RoomID: string(roomID)})

	case TypeChatMessage:
		roomID, content, err := decodeChat(frame.Payload)
		if err != nil {
			s.sendError(ctx, sess, CodeBadRequest, "malformed chatMessage payload")
			return
		}
		s.HandleChatMessage(ctx, sess, roomID, content)

	default:
		s.sendError(ctx, sess, CodeBadRequest, "unknown event type: "+frame.Type)
	}
}

// HandleChatMessage: сначала запись в хранилище, потом рассылка.
// Несохранённое сообщение не рассылается никогда.
func (s *Server) HandleChatMessage(ctx context.Context, sess *Session, roomID domain.RoomID, content string) {
	log := logger.FromContext(ctx)

	if !service.ValidRoom(roomID) {
		s.sendError(ctx, sess, CodeValidation, domain.ErrInvalidRoom.Error())
		return
	}
	if s.cfg.RequireJoin && !sess.Joined(roomID) {
		s.sendError(ctx, sess, CodeNotJoined, domain.ErrNotJoined.Error())
		return
	}

	view, err := s.chat.Post(ctx, sess.Identity(), roomID, content)
	switch {
	case errors.Is(err, domain.ErrValidation):
		s.sendError(ctx, sess, CodeValidation, err.Error())
		return
	case err != nil:
		log.Error("ws chat message not persisted", "room", roomID, "err", err)
		s.sendError(ctx, sess, CodeStoreUnavailable, "message could not be saved")
		return
	}

	frame, err := encode(TypeNewMessage, dto.FromView(view))
	if err != nil {
		log.Error("ws encode message failed", "err", err)
		return
	}
	n := s.registry.Broadcast(ctx, roomID, frame, nil)
	log.Debug("ws message broadcast", "room", roomID, "msg_id", view.ID, "delivered", n)
}

func (s *Server) writeLoop(ctx context.Context, sess *Session) {
	conn := sess.conn
	ticker := time.NewTicker(s.cfg.PingEvery)
	defer ticker.Stop()

	for {
		select {
		case frame := <-sess.Outgoing():
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.FromContext(ctx).Debug("ws write failed", "err", err)
				s.abort(sess)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.cfg.WriteTimeout)); err != nil {
				s.abort(sess)
				return
			}
		case <-sess.Done():
			flush(conn, sess, s.cfg.WriteTimeout)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			// readLoop получит ошибку и завершит сессию
			_ = conn.SetReadDeadline(time.Now())
			return
		}
	}
}

// flush дописывает то, что уже лежит в очереди (например, последнюю ошибку).
func flush(conn *websocket.Conn, sess *Session, timeout time.Duration) {
	_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	for {
		select {
		case frame := <-sess.Outgoing():
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

// abort: ошибка записи: соединение мертво, будим readLoop.
func (s *Server) abort(sess *Session) {
	sess.Close()
	_ = sess.conn.SetReadDeadline(time.Now())
}

func (s *Server) send(ctx context.Context, sess *Session, typ string, payload any) {
	frame, err := encode(typ, payload)
	if err != nil {
		logger.FromContext(ctx).Error("ws encode failed", "type", typ, "err", err)
		return
	}
	sess.Enqueue(frame)
}

func (s *Server) sendError(ctx context.Context, sess *Session, code, msg string) {
	s.send(ctx, sess, TypeError, ErrorPayload{Code: code, Message: msg})
}

func (s *Server) track(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.sessions[sess] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(sess *Session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
	s.wg.Done()
}

// Shutdown закрывает все сессии и ждёт завершения их обработчиков.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	sessions := make([]*Session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.FromContext(ctx).Info("ws sessions closed", "count", len(sessions))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
