package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cwrk-planet/chat-relay/internal/domain"
)

type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", slog.Any("err", err))
	}
}

// writeError: {"error":{"message":...}}
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{"error": envelope{"message": msg}})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAuth):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage не раскрывает внутренние ошибки хранилища.
func publicMessage(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		return "server error"
	}
	return err.Error()
}
