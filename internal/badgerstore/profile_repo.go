package badgerstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cwrk-planet/chat-relay/internal/domain"

	"github.com/dgraph-io/badger/v4"
)

// ProfileRepository хранит профили под ключами "user/{id}".
type ProfileRepository struct {
	db *badger.DB
}

func NewProfileRepository(db *badger.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func profileKey(id string) []byte {
	return []byte("user/" + id)
}

func (r *ProfileRepository) Put(_ context.Context, a domain.Author) error {
	if a.ID == "" {
		return errors.New("profile without id")
	}
	b, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(profileKey(a.ID), b)
	})
}

func (r *ProfileRepository) Lookup(_ context.Context, authorID string) (domain.Author, error) {
	var a domain.Author
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(profileKey(authorID))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &a)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Author{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.Author{}, err
	}
	return a, nil
}

func (r *ProfileRepository) LookupMany(ctx context.Context, authorIDs []string) (map[string]domain.Author, error) {
	out := make(map[string]domain.Author, len(authorIDs))
	for _, id := range authorIDs {
		a, err := r.Lookup(ctx, id)
		if errors.Is(err, domain.ErrProfileNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = a
	}
	return out, nil
}
