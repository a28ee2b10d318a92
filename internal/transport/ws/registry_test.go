package ws

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cwrk-planet/chat-relay/internal/domain"

	"github.com/stretchr/testify/require"
)

func newTestSession(user string) *Session {
	return NewSession(domain.Identity{UserID: user}, 8)
}

func drain(s *Session) [][]byte {
	var out [][]byte
	for {
		select {
		case f := <-s.Outgoing():
			out = append(out, f)
		default:
			return out
		}
	}
}

func TestRegistry_JoinIsIdempotent(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	a := newTestSession("alice")

	reg.Join(a, "camp-1")
	reg.Join(a, "camp-1")

	req.Equal(1, reg.Members("camp-1"))
	req.Equal([]domain.RoomID{"camp-1"}, a.Rooms())

	n := reg.Broadcast(context.Background(), "camp-1", []byte("x"), nil)
	req.Equal(1, n)
	req.Len(drain(a), 1)
}

func TestRegistry_BroadcastIsolation(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	a, b, c := newTestSession("alice"), newTestSession("bob"), newTestSession("carol")

	reg.Join(a, "camp-1")
	reg.Join(b, "camp-1")
	reg.Join(c, "camp-2")

	n := reg.Broadcast(context.Background(), "camp-1", []byte("hello"), nil)
	req.Equal(2, n)
	req.Len(drain(a), 1)
	req.Len(drain(b), 1)
	req.Empty(drain(c))
}

func TestRegistry_BroadcastExclude(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	a, b := newTestSession("alice"), newTestSession("bob")
	reg.Join(a, "camp-1")
	reg.Join(b, "camp-1")

	n := reg.Broadcast(context.Background(), "camp-1", []byte("hello"), a)
	req.Equal(1, n)
	req.Empty(drain(a))
	req.Len(drain(b), 1)
}

func TestRegistry_LeaveAndLeaveAll(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	a, b := newTestSession("alice"), newTestSession("bob")

	reg.Join(a, "camp-1")
	reg.Join(a, "camp-2")
	reg.Join(a, "camp-3")
	reg.Join(b, "camp-1")

	reg.Leave(a, "camp-3")
	reg.Leave(a, "camp-3")
	req.Equal(0, reg.Members("camp-3"))
	req.False(a.Joined("camp-3"))

	reg.LeaveAll(a)
	reg.LeaveAll(a)
	req.Equal(1, reg.Members("camp-1"))
	req.Equal(0, reg.Members("camp-2"))
	req.Equal(1, reg.Rooms())
	req.Empty(a.Rooms())

	// после отключения join не действует
	reg.Join(a, "camp-1")
	req.Equal(1, reg.Members("camp-1"))
	req.Equal(0, reg.Broadcast(context.Background(), "camp-2", []byte("x"), nil))
}

func TestRegistry_SlowSessionDoesNotBlockOthers(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	slow := NewSession(domain.Identity{UserID: "slow"}, 1)
	fast := NewSession(domain.Identity{UserID: "fast"}, 16)
	reg.Join(slow, "camp-1")
	reg.Join(fast, "camp-1")

	for i := 0; i < 5; i++ {
		reg.Broadcast(context.Background(), "camp-1", []byte(fmt.Sprint(i)), nil)
	}

	req.Len(drain(fast), 5)
	req.True(slow.Closed())
	req.Len(drain(slow), 1)
}

func TestRegistry_ClosedSessionSkipped(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	dead, live := newTestSession("dead"), newTestSession("live")
	reg.Join(dead, "camp-1")
	reg.Join(live, "camp-1")
	dead.Close()

	n := reg.Broadcast(context.Background(), "camp-1", []byte("x"), nil)
	req.Equal(1, n)
	req.Len(drain(live), 1)
}

func TestRegistry_ConcurrentRooms(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	const rooms, perRoom = 32, 16
	var wg sync.WaitGroup
	sessions := make([][]*Session, rooms)
	for r := 0; r < rooms; r++ {
		sessions[r] = make([]*Session, perRoom)
		for i := 0; i < perRoom; i++ {
			sessions[r][i] = NewSession(domain.Identity{UserID: fmt.Sprintf("u-%d-%d", r, i)}, 64)
		}
	}

	for r := 0; r < rooms; r++ {
		for i := 0; i < perRoom; i++ {
			wg.Add(1)
			go func(room domain.RoomID, s *Session) {
				defer wg.Done()
				reg.Join(s, room)
				reg.Broadcast(context.Background(), room, []byte("ping"), nil)
			}(domain.RoomID(fmt.Sprintf("room-%d", r)), sessions[r][i])
		}
	}
	wg.Wait()

	req.Equal(rooms, reg.Rooms())
	for r := 0; r < rooms; r++ {
		req.Equal(perRoom, reg.Members(domain.RoomID(fmt.Sprintf("room-%d", r))))
	}

	for r := 0; r < rooms; r++ {
		for _, s := range sessions[r] {
			wg.Add(1)
			go func(s *Session) {
				defer wg.Done()
				reg.LeaveAll(s)
			}(s)
		}
	}
	wg.Wait()
	req.Equal(0, reg.Rooms())
}
