package service

import (
	"context"

	"github.com/cwrk-planet/chat-relay/internal/domain"
)

// MessageStore: граница внешнего хранилища сообщений (postgres или badger).
type MessageStore interface {
	Append(ctx context.Context, msg domain.Message) (domain.Message, error)
	// QueryRecent возвращает последние limit сообщений комнаты, самые свежие первыми.
	QueryRecent(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error)
}

// ProfileSource: внешний источник отображаемых атрибутов автора.
type ProfileSource interface {
	Lookup(ctx context.Context, authorID string) (domain.Author, error)
	LookupMany(ctx context.Context, authorIDs []string) (map[string]domain.Author, error)
}

// ProfileWriter: источник профилей, который принимает атрибуты из токена
// (встроенное хранилище). Postgres-профили ведёт внешний сервис.
type ProfileWriter interface {
	Put(ctx context.Context, a domain.Author) error
}
