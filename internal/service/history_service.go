package service

import (
	"context"
	"errors"

	"github.com/cwrk-planet/chat-relay/internal/domain"
	"github.com/cwrk-planet/chat-relay/internal/telemetry"

	"github.com/samber/lo"
	"github.com/samber/lo/mutable"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 50
)

type HistoryService struct {
	store    MessageStore
	profiles *Profiles
}

func NewHistoryService(store MessageStore, profiles *Profiles) *HistoryService {
	return &HistoryService{store: store, profiles: profiles}
}

// Recent возвращает до limit последних сообщений комнаты в хронологическом порядке.
// Хранилище отдаёт самые свежие первыми (удобно для индекса по убыванию),
// здесь порядок разворачивается. При ошибке хранилища частичных данных нет.
func (s *HistoryService) Recent(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.MessageView, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	ctx, span := telemetry.Tracer().Start(ctx, "chat.history")
	defer span.End()
	span.SetAttributes(attribute.String("chat.room_id", string(roomID)), attribute.Int("chat.limit", limit))

	msgs, err := s.store.QueryRecent(ctx, roomID, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		if !errors.Is(err, domain.ErrStore) {
			err = domain.StoreError("query recent", err)
		}
		return nil, err
	}
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	mutable.Reverse(msgs)

	authorIDs := lo.Uniq(lo.Map(msgs, func(m domain.Message, _ int) string { return m.AuthorID }))
	authors := s.profiles.Authors(ctx, authorIDs)

	return lo.Map(msgs, func(m domain.Message, _ int) domain.MessageView {
		return domain.MessageView{Message: m, Author: authors[m.AuthorID]}
	}), nil
}
