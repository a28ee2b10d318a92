package service

import (
	"strings"

	"github.com/cwrk-planet/chat-relay/internal/domain"

	"github.com/go-playground/validator/v10"
)

// roomRule: одно правило для join/leave, отправки и чтения истории.
const roomRule = "required,max=128,printascii"

var roomValidator = validator.New(validator.WithRequiredStructEnabled())

// ValidRoom: 1..128 печатных ASCII-символов (пробелы по краям не считаются).
func ValidRoom(roomID domain.RoomID) bool {
	return roomValidator.Var(strings.TrimSpace(string(roomID)), roomRule) == nil
}
