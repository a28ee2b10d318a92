package badgerstore

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/cwrk-planet/chat-relay/internal/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := Open(Config{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Append_Assigns_ID_And_Time(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())

	m, err := repo.Append(context.Background(), domain.Message{RoomID: "camp-1", AuthorID: "alice", Content: "hello"})
	req.NoError(err)
	req.NotEmpty(m.ID)
	req.False(m.CreatedAt.IsZero())
	req.Equal("hello", m.Content)
	req.Equal("alice", m.AuthorID)
}

func Test_QueryRecent_Newest_First_And_Limit(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		_, err := repo.Append(ctx, domain.Message{RoomID: "camp-1", AuthorID: "alice", Content: fmt.Sprintf("m%02d", i)})
		req.NoError(err)
	}

	recent, err := repo.QueryRecent(ctx, "camp-1", 50)
	req.NoError(err)
	req.Len(recent, 50)
	req.Equal("m59", recent[0].Content)
	req.Equal("m10", recent[49].Content)
	for i := 1; i < len(recent); i++ {
		req.False(recent[i].CreatedAt.After(recent[i-1].CreatedAt))
		req.Less(recent[i].ID, recent[i-1].ID)
	}
}

func Test_QueryRecent_Rooms_Are_Isolated(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(openTestDB(t), slog.Default())
	ctx := context.Background()

	_, err := repo.Append(ctx, domain.Message{RoomID: "a", AuthorID: "alice", Content: "in a"})
	req.NoError(err)
	_, err = repo.Append(ctx, domain.Message{RoomID: "a/b", AuthorID: "bob", Content: "in a/b"})
	req.NoError(err)

	got, err := repo.QueryRecent(ctx, "a", 50)
	req.NoError(err)
	req.Len(got, 1)
	req.Equal("in a", got[0].Content)

	none, err := repo.QueryRecent(ctx, "empty", 50)
	req.NoError(err)
	req.Empty(none)
}

func Test_QueryRecent_Closed_DB_Is_Store_Error(t *testing.T) {
	db, err := Open(Config{InMemory: true})
	require.NoError(t, err)
	repo := NewMessageRepository(db, slog.Default())
	require.NoError(t, db.Close())

	_, err = repo.QueryRecent(context.Background(), "camp-1", 50)
	require.ErrorIs(t, err, domain.ErrStore)
}

func Test_Profiles(t *testing.T) {
	req := require.New(t)
	repo := NewProfileRepository(openTestDB(t))
	ctx := context.Background()

	req.NoError(repo.Put(ctx, domain.Author{ID: "u1", Username: "alice", Avatar: "a.png"}))

	a, err := repo.Lookup(ctx, "u1")
	req.NoError(err)
	req.Equal("alice", a.Username)

	_, err = repo.Lookup(ctx, "u2")
	req.ErrorIs(err, domain.ErrProfileNotFound)

	many, err := repo.LookupMany(ctx, []string{"u1", "u2"})
	req.NoError(err)
	req.Len(many, 1)
	req.Equal("a.png", many["u1"].Avatar)
}
