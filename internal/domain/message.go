package domain

import "time"

// RoomID: идентификатор комнаты (кампании). Комната существует,
// пока в реестре есть хотя бы одна сессия.
type RoomID string

func (r RoomID) String() string { return string(r) }

type Message struct {
	ID        string    `db:"id"`
	Content   string    `db:"content"`
	AuthorID  string    `db:"author_id"`
	RoomID    RoomID    `db:"room_id"`
	CreatedAt time.Time `db:"created_at"`
}

// Author: отображаемые атрибуты автора из внешнего источника профилей.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// MessageView: сообщение вместе с автором, в таком виде уходит клиентам.
type MessageView struct {
	Message
	Author Author
}
