package postgres

import (
	"context"

	"github.com/cwrk-planet/chat-relay/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append сохраняет сообщение; id и created_at назначает база.
func (r *MessageRepository) Append(ctx context.Context, msg domain.Message) (domain.Message, error) {
	row := r.db.QueryRow(ctx, queryInsertMessage, string(msg.RoomID), msg.AuthorID, msg.Content)

	var m domain.Message
	var roomID string
	if err := row.Scan(&m.ID, &roomID, &m.AuthorID, &m.Content, &m.CreatedAt); err != nil {
		return domain.Message{}, domain.StoreError("insert message", err)
	}
	m.RoomID = domain.RoomID(roomID)
	return m, nil
}

// QueryRecent возвращает последние limit сообщений комнаты, самые свежие первыми.
func (r *MessageRepository) QueryRecent(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error) {
	rows, err := r.db.Query(ctx, querySelectRecent, string(roomID), limit)
	if err != nil {
		return nil, domain.StoreError("select recent", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Message, error) {
		var m domain.Message
		var rid string
		err := row.Scan(&m.ID, &rid, &m.AuthorID, &m.Content, &m.CreatedAt)
		m.RoomID = domain.RoomID(rid)
		return m, err
	})
	if err != nil {
		return nil, domain.StoreError("scan recent", err)
	}
	return out, nil
}
