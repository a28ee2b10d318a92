package service

import (
	"context"
	"errors"
	"sync"

	"github.com/cwrk-planet/chat-relay/internal/domain"
	"github.com/cwrk-planet/chat-relay/internal/logger"
)

// Profiles обогащает сообщения данными автора. Обогащение best-effort:
// если профиль не найден или источник недоступен, остаётся то, что известно.
type Profiles struct {
	src ProfileSource

	// последние записанные атрибуты по id автора
	saved sync.Map
}

func NewProfiles(src ProfileSource) *Profiles {
	return &Profiles{src: src}
}

// Remember записывает атрибуты из токена в источник, если он их принимает,
// чтобы история показывала автора так же, как живая рассылка.
// Повторная запись тех же атрибутов пропускается.
func (p *Profiles) Remember(ctx context.Context, id domain.Identity) {
	if p == nil {
		return
	}
	w, ok := p.src.(ProfileWriter)
	if !ok {
		return
	}
	a := id.Author()
	if a.ID == "" || (a.Username == "" && a.Avatar == "") {
		return
	}
	if prev, ok := p.saved.Load(a.ID); ok && prev.(domain.Author) == a {
		return
	}
	if err := w.Put(ctx, a); err != nil {
		logger.FromContext(ctx).Warn("profile upsert failed", "author", a.ID, "err", err)
		return
	}
	p.saved.Store(a.ID, a)
}

// Author: один lookup на сообщение; fallback: атрибуты из токена.
func (p *Profiles) Author(ctx context.Context, id domain.Identity) domain.Author {
	fallback := id.Author()
	if p == nil || p.src == nil {
		return fallback
	}

	a, err := p.src.Lookup(ctx, id.UserID)
	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		return fallback
	case err != nil:
		logger.FromContext(ctx).Warn("profile lookup failed", "author", id.UserID, "err", err)
		return fallback
	}

	a.ID = id.UserID
	if a.Username == "" {
		a.Username = fallback.Username
	}
	if a.Avatar == "" {
		a.Avatar = fallback.Avatar
	}
	return a
}

// Authors: пачкой для истории; для неизвестных авторов возвращается только id.
func (p *Profiles) Authors(ctx context.Context, ids []string) map[string]domain.Author {
	out := make(map[string]domain.Author, len(ids))
	if p != nil && p.src != nil && len(ids) > 0 {
		found, err := p.src.LookupMany(ctx, ids)
		if err != nil {
			logger.FromContext(ctx).Warn("profiles lookup failed", "count", len(ids), "err", err)
		}
		for id, a := range found {
			a.ID = id
			out[id] = a
		}
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			out[id] = domain.Author{ID: id}
		}
	}
	return out
}
