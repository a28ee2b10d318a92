package postgres

import (
	"context"
	"errors"

	"github.com/cwrk-planet/chat-relay/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProfileRepository читает отображаемые атрибуты из таблицы users.
type ProfileRepository struct {
	db *pgxpool.Pool
}

func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Lookup(ctx context.Context, authorID string) (domain.Author, error) {
	var (
		a           domain.Author
		displayName *string
		avatarURL   *string
	)
	err := r.db.QueryRow(ctx, querySelectProfile, authorID).Scan(&a.ID, &displayName, &avatarURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Author{}, domain.ErrProfileNotFound
		}
		return domain.Author{}, err
	}
	a.Username = deref(displayName)
	a.Avatar = deref(avatarURL)
	return a, nil
}

// LookupMany: один запрос на пачку авторов; отсутствующие просто не попадают в map.
func (r *ProfileRepository) LookupMany(ctx context.Context, authorIDs []string) (map[string]domain.Author, error) {
	out := make(map[string]domain.Author, len(authorIDs))
	if len(authorIDs) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx, querySelectProfiles, authorIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a           domain.Author
			displayName *string
			avatarURL   *string
		)
		if err := rows.Scan(&a.ID, &displayName, &avatarURL); err != nil {
			return nil, err
		}
		a.Username = deref(displayName)
		a.Avatar = deref(avatarURL)
		out[a.ID] = a
	}

	return out, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
