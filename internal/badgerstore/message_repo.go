package badgerstore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cwrk-planet/chat-relay/internal/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/oklog/ulid/v2"
)

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

type diskMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Ключ "msg/{hex(room)}/{ulid}". ULID монотонен внутри процесса, поэтому
// лексикографический порядок ключей совпадает с порядком записи.
// room кодируется в hex, чтобы комната "a" не была префиксом комнаты "a/b".
func roomPrefix(roomID domain.RoomID) []byte {
	return []byte("msg/" + hex.EncodeToString([]byte(roomID)) + "/")
}

func (r *MessageRepository) Append(_ context.Context, msg domain.Message) (domain.Message, error) {
	id := ulid.Make()
	msg.ID = id.String()
	msg.CreatedAt = ulid.Time(id.Time()).UTC()

	value, err := json.Marshal(diskMessage{
		ID:        msg.ID,
		RoomID:    string(msg.RoomID),
		AuthorID:  msg.AuthorID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt,
	})
	if err != nil {
		return domain.Message{}, domain.StoreError("encode message", err)
	}

	key := append(roomPrefix(msg.RoomID), msg.ID...)
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		return domain.Message{}, domain.StoreError("set message", err)
	}
	return msg, nil
}

// QueryRecent обходит префикс комнаты в обратном порядке: самые свежие первыми.
func (r *MessageRepository) QueryRecent(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error) {
	prefix := roomPrefix(roomID)
	out := make([]domain.Message, 0, limit)

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// 0xFF больше любого символа ULID: встаём на последний ключ комнаты
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if len(out) == limit {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			var dm diskMessage
			err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &dm)
			})
			if err != nil {
				return err
			}
			out = append(out, domain.Message{
				ID:        dm.ID,
				RoomID:    domain.RoomID(dm.RoomID),
				AuthorID:  dm.AuthorID,
				Content:   dm.Content,
				CreatedAt: dm.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, domain.StoreError("scan recent", err)
	}

	r.log.Debug("badger recent messages", "room", roomID, "count", len(out))
	return out, nil
}
