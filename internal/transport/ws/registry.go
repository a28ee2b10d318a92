package ws

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/cwrk-planet/chat-relay/internal/domain"
	"github.com/cwrk-planet/chat-relay/internal/logger"
)

const shardCount = 64

// Registry: комнаты в памяти: roomID -> множество сессий.
// Таблица разбита на шарды со своим RWMutex, поэтому комнаты из разных шардов
// не конкурируют за один глобальный лок. Пустые комнаты удаляются.
type Registry struct {
	shards [shardCount]*shard
}

type shard struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]map[*Session]struct{}
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{rooms: make(map[domain.RoomID]map[*Session]struct{})}
	}
	return r
}

func (r *Registry) shardFor(roomID domain.RoomID) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(roomID))
	return r.shards[h.Sum32()%shardCount]
}

// Join идемпотентен. Для закрытой сессии (после LeaveAll) ничего не делает.
func (r *Registry) Join(s *Session, roomID domain.RoomID) {
	sh := r.shardFor(roomID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if !s.addRoom(roomID) {
		return
	}
	members, ok := sh.rooms[roomID]
	if !ok {
		members = make(map[*Session]struct{})
		sh.rooms[roomID] = members
	}
	members[s] = struct{}{}
}

func (r *Registry) Leave(s *Session, roomID domain.RoomID) {
	sh := r.shardFor(roomID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s.removeRoom(roomID)
	sh.removeLocked(s, roomID)
}

// LeaveAll убирает сессию из всех комнат ровно один раз; повторный вызов ничего не делает.
func (r *Registry) LeaveAll(s *Session) {
	for _, roomID := range s.takeRooms() {
		sh := r.shardFor(roomID)
		sh.mu.Lock()
		sh.removeLocked(s, roomID)
		sh.mu.Unlock()
	}
}

func (sh *shard) removeLocked(s *Session, roomID domain.RoomID) {
	members, ok := sh.rooms[roomID]
	if !ok {
		return
	}
	delete(members, s)
	if len(members) == 0 {
		delete(sh.rooms, roomID)
	}
}

// Broadcast доставляет кадр всем участникам комнаты на момент вызова.
// Доставка каждому независима: переполненная очередь или закрытая сессия
// пропускается, медленная сессия закрывается. Возвращает число доставок.
func (r *Registry) Broadcast(ctx context.Context, roomID domain.RoomID, frame []byte, exclude *Session) int {
	targets := r.snapshot(roomID)

	delivered := 0
	for _, s := range targets {
		if s == exclude {
			continue
		}
		if s.Enqueue(frame) {
			delivered++
			continue
		}
		logger.FromContext(ctx).Debug("ws delivery skipped",
			"room", roomID, "session", s.ID(), "user", s.Identity().UserID)
		s.Close()
	}
	return delivered
}

func (r *Registry) snapshot(roomID domain.RoomID) []*Session {
	sh := r.shardFor(roomID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	members := sh.rooms[roomID]
	out := make([]*Session, 0, len(members))
	for s := range members {
		out = append(out, s)
	}
	return out
}

// Members: число сессий в комнате.
func (r *Registry) Members(roomID domain.RoomID) int {
	sh := r.shardFor(roomID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return len(sh.rooms[roomID])
}

// Rooms: число непустых комнат.
func (r *Registry) Rooms() int {
	n := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		n += len(sh.rooms)
		sh.mu.RUnlock()
	}
	return n
}
