// Package dto: JSON-представления, общие для HTTP и WebSocket.
package dto

import (
	"time"

	"github.com/cwrk-planet/chat-relay/internal/domain"
)

type Author struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Content   string    `json:"content"`
	Author    Author    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

func FromView(v domain.MessageView) Message {
	return Message{
		ID:      v.ID,
		RoomID:  string(v.RoomID),
		Content: v.Content,
		Author: Author{
			ID:       v.Author.ID,
			Username: v.Author.Username,
			Avatar:   v.Author.Avatar,
		},
		CreatedAt: v.CreatedAt.UTC().Truncate(time.Millisecond),
	}
}

func FromViews(vs []domain.MessageView) []Message {
	out := make([]Message, 0, len(vs))
	for _, v := range vs {
		out = append(out, FromView(v))
	}
	return out
}
