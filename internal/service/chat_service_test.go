package service

import (
	"context"
	"strings"
	"testing"

	"github.com/cwrk-planet/chat-relay/internal/domain"

	"github.com/stretchr/testify/require"
)

var alice = domain.Identity{UserID: "u-alice", Username: "alice"}

func TestChatService_Post(t *testing.T) {
	t.Run("persists with session identity and enriches author", func(t *testing.T) {
		req := require.New(t)
		store := newMemStore()
		profiles := &memProfiles{byID: map[string]domain.Author{
			"u-alice": {ID: "u-alice", Username: "Alice W.", Avatar: "a.png"},
		}}
		svc := NewChatService(store, NewProfiles(profiles), ChatConfig{})

		view, err := svc.Post(context.Background(), alice, "camp-1", "  hello  ")
		req.NoError(err)
		req.Equal("hello", view.Content)
		req.Equal("u-alice", view.AuthorID)
		req.Equal(domain.RoomID("camp-1"), view.RoomID)
		req.NotEmpty(view.ID)
		req.Equal("Alice W.", view.Author.Username)
		req.Equal("a.png", view.Author.Avatar)
		req.Len(store.msgs, 1)
		req.Equal(1, profiles.lookups)
	})

	t.Run("empty content is rejected and never persisted", func(t *testing.T) {
		req := require.New(t)
		store := newMemStore()
		svc := NewChatService(store, nil, ChatConfig{})

		_, err := svc.Post(context.Background(), alice, "camp-1", "   ")
		req.ErrorIs(err, domain.ErrEmptyContent)
		req.ErrorIs(err, domain.ErrValidation)
		req.Empty(store.msgs)
	})

	t.Run("too long content is rejected", func(t *testing.T) {
		req := require.New(t)
		store := newMemStore()
		svc := NewChatService(store, nil, ChatConfig{MaxContentLength: 5})

		_, err := svc.Post(context.Background(), alice, "camp-1", "123456")
		req.ErrorIs(err, domain.ErrContentTooLong)

		// длина считается в рунах, а не в байтах
		_, err = svc.Post(context.Background(), alice, "camp-1", "привет")
		req.ErrorIs(err, domain.ErrContentTooLong)
		_, err = svc.Post(context.Background(), alice, "camp-1", "hello")
		req.NoError(err)
		req.Len(store.msgs, 1)
	})

	t.Run("invalid room is rejected", func(t *testing.T) {
		req := require.New(t)
		svc := NewChatService(newMemStore(), nil, ChatConfig{})

		_, err := svc.Post(context.Background(), alice, "", "hello")
		req.ErrorIs(err, domain.ErrInvalidRoom)
		_, err = svc.Post(context.Background(), alice, domain.RoomID(strings.Repeat("x", 200)), "hello")
		req.ErrorIs(err, domain.ErrInvalidRoom)
		_, err = svc.Post(context.Background(), alice, "кампания", "hello")
		req.ErrorIs(err, domain.ErrInvalidRoom)
	})

	t.Run("store failure is a store error", func(t *testing.T) {
		req := require.New(t)
		store := newMemStore()
		store.failWith = errBoom
		svc := NewChatService(store, nil, ChatConfig{})

		_, err := svc.Post(context.Background(), alice, "camp-1", "hello")
		req.ErrorIs(err, domain.ErrStore)
		req.ErrorIs(err, errBoom)
	})

	t.Run("persistence survives a cancelled connection context", func(t *testing.T) {
		req := require.New(t)
		store := newMemStore()
		svc := NewChatService(store, nil, ChatConfig{})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := svc.Post(ctx, alice, "camp-1", "late")
		req.NoError(err)
		req.Len(store.msgs, 1)
		req.NoError(store.lastCtx.Err())
	})

	t.Run("profile failure falls back to token attributes", func(t *testing.T) {
		req := require.New(t)
		svc := NewChatService(newMemStore(), NewProfiles(&memProfiles{err: errBoom}), ChatConfig{})

		view, err := svc.Post(context.Background(), alice, "camp-1", "hello")
		req.NoError(err)
		req.Equal(domain.Author{ID: "u-alice", Username: "alice"}, view.Author)
	})
}

func TestValidRoom(t *testing.T) {
	req := require.New(t)

	for _, id := range []domain.RoomID{"c1", "camp-42", " c1 ", domain.RoomID(strings.Repeat("x", 128))} {
		req.True(ValidRoom(id), "room %q", id)
	}
	for _, id := range []domain.RoomID{"", "   ", "кампания", "c1\n", domain.RoomID(strings.Repeat("x", 129))} {
		req.False(ValidRoom(id), "room %q", id)
	}
}

func TestChatService_PostRemembersTokenProfile(t *testing.T) {
	req := require.New(t)
	store := newMemStore()
	src := &writableProfiles{}
	profiles := NewProfiles(src)
	chat := NewChatService(store, profiles, ChatConfig{})
	carol := domain.Identity{UserID: "u-carol", Username: "carol", Avatar: "https://cdn/carol.png"}

	live, err := chat.Post(context.Background(), carol, "camp-1", "one")
	req.NoError(err)
	_, err = chat.Post(context.Background(), carol, "camp-1", "two")
	req.NoError(err)
	req.Equal(1, src.puts)

	got, err := NewHistoryService(store, profiles).Recent(context.Background(), "camp-1", 50)
	req.NoError(err)
	req.Len(got, 2)
	req.Equal(live.Author, got[0].Author)
	req.Equal(carol.Author(), got[1].Author)

	// сменились атрибуты в токене: запись обновляется
	carol.Username = "Carol R."
	_, err = chat.Post(context.Background(), carol, "camp-1", "three")
	req.NoError(err)
	req.Equal(2, src.puts)
	req.Equal("Carol R.", src.byID["u-carol"].Username)
}

func TestProfiles_RememberSkipsReadOnlySource(t *testing.T) {
	ro := &memProfiles{}
	p := NewProfiles(ro)
	p.Remember(context.Background(), alice)
	require.Empty(t, ro.byID)

	NewProfiles(nil).Remember(context.Background(), alice)
}
