package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cwrk-planet/chat-relay/internal/domain"
	"github.com/cwrk-planet/chat-relay/internal/logger"
	"github.com/cwrk-planet/chat-relay/internal/service"
	"github.com/cwrk-planet/chat-relay/internal/transport/dto"

	"github.com/go-chi/chi/v5"
)

const rootBanner = "Chat server is running!"

type HistoryReader interface {
	Recent(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.MessageView, error)
}

type Handler struct {
	history HistoryReader
}

func NewHandler(history HistoryReader) *Handler {
	return &Handler{history: history}
}

// GET /
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(rootBanner))
}

// GET /messages/{roomId}?limit=
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	roomID := domain.RoomID(chi.URLParam(r, "roomId"))
	if !service.ValidRoom(roomID) {
		writeError(w, statusFor(domain.ErrInvalidRoom), domain.ErrInvalidRoom.Error())
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	items, err := h.history.Recent(r.Context(), roomID, limit)
	if err != nil {
		logger.FromContext(r.Context()).Error("handler.GetMessages", "room", roomID, "err", err)
		writeError(w, statusFor(err), publicMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, dto.FromViews(items))
}
