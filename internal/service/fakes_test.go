package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-relay/internal/domain"
)

type memStore struct {
	mu       sync.Mutex
	seq      int
	base     time.Time
	msgs     []domain.Message
	failWith error
	lastCtx  context.Context
}

func newMemStore() *memStore {
	return &memStore{base: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (s *memStore) Append(ctx context.Context, msg domain.Message) (domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCtx = ctx
	if s.failWith != nil {
		return domain.Message{}, s.failWith
	}
	s.seq++
	msg.ID = fmt.Sprintf("m-%03d", s.seq)
	msg.CreatedAt = s.base.Add(time.Duration(s.seq) * time.Second)
	s.msgs = append(s.msgs, msg)
	return msg, nil
}

func (s *memStore) QueryRecent(_ context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	var out []domain.Message
	for _, m := range s.msgs {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memProfiles struct {
	byID    map[string]domain.Author
	err     error
	lookups int
}

func (p *memProfiles) Lookup(_ context.Context, id string) (domain.Author, error) {
	p.lookups++
	if p.err != nil {
		return domain.Author{}, p.err
	}
	a, ok := p.byID[id]
	if !ok {
		return domain.Author{}, domain.ErrProfileNotFound
	}
	return a, nil
}

func (p *memProfiles) LookupMany(_ context.Context, ids []string) (map[string]domain.Author, error) {
	p.lookups++
	if p.err != nil {
		return nil, p.err
	}
	out := map[string]domain.Author{}
	for _, id := range ids {
		if a, ok := p.byID[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

// writableProfiles: источник, принимающий атрибуты из токена.
type writableProfiles struct {
	memProfiles
	puts int
}

func (p *writableProfiles) Put(_ context.Context, a domain.Author) error {
	p.puts++
	if p.byID == nil {
		p.byID = map[string]domain.Author{}
	}
	p.byID[a.ID] = a
	return nil
}

var errBoom = errors.New("boom")
