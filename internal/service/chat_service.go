package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/cwrk-planet/chat-relay/internal/domain"
	"github.com/cwrk-planet/chat-relay/internal/logger"
	"github.com/cwrk-planet/chat-relay/internal/telemetry"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultMaxContentLength = 2000
	DefaultPersistTimeout   = 5 * time.Second
)

type ChatConfig struct {
	MaxContentLength int
	PersistTimeout   time.Duration
}

type ChatService struct {
	store    MessageStore
	profiles *Profiles
	validate *validator.Validate

	maxContentLength int
	persistTimeout   time.Duration
}

func NewChatService(store MessageStore, profiles *Profiles, cfg ChatConfig) *ChatService {
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = DefaultMaxContentLength
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}
	return &ChatService{
		store:            store,
		profiles:         profiles,
		validate:         validator.New(validator.WithRequiredStructEnabled()),
		maxContentLength: cfg.MaxContentLength,
		persistTimeout:   cfg.PersistTimeout,
	}
}

// Validate проверяет комнату и текст; возвращает нормализованный текст.
func (s *ChatService) Validate(roomID domain.RoomID, content string) (string, error) {
	if !ValidRoom(roomID) {
		return "", domain.ErrInvalidRoom
	}
	text := strings.TrimSpace(content)
	if err := s.validate.Var(text, "required"); err != nil {
		return "", domain.ErrEmptyContent
	}
	if err := s.validate.Var(text, "max="+strconv.Itoa(s.maxContentLength)); err != nil {
		return "", domain.ErrContentTooLong
	}
	return text, nil
}

// Post сохраняет сообщение от имени автора и возвращает его в обогащённом виде.
// Запись идёт в контексте, отвязанном от соединения: принятое сообщение
// дописывается, даже если отправитель уже отключился.
func (s *ChatService) Post(ctx context.Context, author domain.Identity, roomID domain.RoomID, content string) (domain.MessageView, error) {
	text, err := s.Validate(roomID, content)
	if err != nil {
		return domain.MessageView{}, err
	}

	ctx, span := telemetry.Tracer().Start(ctx, "chat.post")
	defer span.End()
	span.SetAttributes(
		attribute.String("chat.room_id", string(roomID)),
		attribute.String("chat.author_id", author.UserID),
	)

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	saved, err := s.store.Append(pctx, domain.Message{
		Content:  text,
		AuthorID: author.UserID,
		RoomID:   roomID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		if !errors.Is(err, domain.ErrStore) {
			err = domain.StoreError("append", err)
		}
		return domain.MessageView{}, err
	}
	span.SetAttributes(attribute.String("chat.message_id", saved.ID))

	logger.FromContext(ctx).Debug("chat message persisted",
		"room", roomID, "author", author.UserID, "msg_id", saved.ID)

	s.profiles.Remember(pctx, author)

	return domain.MessageView{
		Message: saved,
		Author:  s.profiles.Author(pctx, author),
	}, nil
}
