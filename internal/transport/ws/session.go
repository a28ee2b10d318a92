package ws

import (
	"sync"

	"github.com/cwrk-planet/chat-relay/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const defaultSendBuffer = 256

// Session: одно аутентифицированное соединение. Identity фиксируется при
// создании и больше не меняется. Исходящие кадры идут через буферизованную
// очередь, которую разгребает writeLoop; медленный клиент не блокирует рассылку.
type Session struct {
	id       string
	identity domain.Identity
	conn     *websocket.Conn

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.Mutex
	rooms  map[domain.RoomID]struct{}
	closed bool
}

func NewSession(identity domain.Identity, sendBuffer int) *Session {
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	return &Session{
		id:       uuid.NewString(),
		identity: identity,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		rooms:    make(map[domain.RoomID]struct{}),
	}
}

func (s *Session) ID() string                { return s.id }
func (s *Session) Identity() domain.Identity { return s.identity }

// Outgoing: очередь исходящих кадров.
func (s *Session) Outgoing() <-chan []byte { return s.send }

// Done закрывается при Close.
func (s *Session) Done() <-chan struct{} { return s.done }

// Enqueue не блокирует: false, если сессия закрыта или очередь переполнена.
func (s *Session) Enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- frame:
		return true
	case <-s.done:
		return false
	default:
		return false
	}
}

func (s *Session) Joined(roomID domain.RoomID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[roomID]
	return ok
}

func (s *Session) Rooms() []domain.RoomID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RoomID, 0, len(s.rooms))
	for r := range s.rooms {
		out = append(out, r)
	}
	return out
}

func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Close идемпотентен. Канал send не закрывается: писатели ориентируются на done.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// addRoom / takeRooms вызываются только реестром под локом шарда.
func (s *Session) addRoom(roomID domain.RoomID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.rooms[roomID] = struct{}{}
	return true
}

func (s *Session) removeRoom(roomID domain.RoomID) {
	s.mu.Lock()
	delete(s.rooms, roomID)
	s.mu.Unlock()
}

// takeRooms забирает все комнаты и запрещает новые join. Повторный вызов вернёт nil.
func (s *Session) takeRooms() []domain.RoomID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	out := make([]domain.RoomID, 0, len(s.rooms))
	for r := range s.rooms {
		out = append(out, r)
	}
	s.rooms = make(map[domain.RoomID]struct{})
	return out
}
