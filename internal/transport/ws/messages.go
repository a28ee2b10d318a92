package ws

import (
	"encoding/json"
	"strings"

	"github.com/cwrk-planet/chat-relay/internal/domain"
)

// Типы событий клиент -> релей
const (
	TypeJoinRoom     = "joinRoom"
	TypeJoinCampaign = "joinCampaign" // старое имя, payload: строка с id кампании
	TypeLeaveRoom    = "leaveRoom"
	TypeChatMessage  = "chatMessage"
)

// Типы событий релей -> клиент
const (
	TypeNewMessage = "newMessage"
	TypeJoined     = "joined"
	TypeLeft       = "left"
	TypeError      = "error"
)

// Коды ошибок в событии error
const (
	CodeBadRequest       = "bad_request"
	CodeValidation       = "validation"
	CodeNotJoined        = "not_joined"
	CodeStoreUnavailable = "store_unavailable"
)

type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outFrame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// RoomPayload принимает {"roomId": "..."}, {"campaignId": "..."} или просто "...".
type RoomPayload struct {
	RoomID     string `json:"roomId"`
	CampaignID string `json:"campaignId"`
}

type ChatPayload struct {
	RoomID     string `json:"roomId"`
	CampaignID string `json:"campaignId"`
	Content    string `json:"content"`
}

type RoomEventPayload struct {
	RoomID string `json:"roomId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func pickRoom(roomID, campaignID string) domain.RoomID {
	if id := strings.TrimSpace(roomID); id != "" {
		return domain.RoomID(id)
	}
	return domain.RoomID(strings.TrimSpace(campaignID))
}

func decodeRoom(raw json.RawMessage) (domain.RoomID, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return domain.RoomID(strings.TrimSpace(s)), nil
	}
	var p RoomPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", err
	}
	return pickRoom(p.RoomID, p.CampaignID), nil
}

func decodeChat(raw json.RawMessage) (domain.RoomID, string, error) {
	var p ChatPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", "", err
	}
	return pickRoom(p.RoomID, p.CampaignID), p.Content, nil
}

func encode(typ string, payload any) ([]byte, error) {
	return json.Marshal(outFrame{Type: typ, Payload: payload})
}
