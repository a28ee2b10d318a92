package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-relay/internal/domain"
	httpx "github.com/cwrk-planet/chat-relay/internal/transport/http"

	"github.com/stretchr/testify/require"
)

type fakeHistory struct {
	views    []domain.MessageView
	err      error
	gotRoom  domain.RoomID
	gotLimit int
}

func (f *fakeHistory) Recent(_ context.Context, roomID domain.RoomID, limit int) ([]domain.MessageView, error) {
	f.gotRoom, f.gotLimit = roomID, limit
	if f.err != nil {
		return nil, f.err
	}
	return f.views, nil
}

type fakeWS struct{ hits int }

func (f *fakeWS) HandleWS(w http.ResponseWriter, _ *http.Request) {
	f.hits++
	w.WriteHeader(http.StatusTeapot)
}

func newTestRouter(h *fakeHistory, ws *fakeWS) http.Handler {
	return httpx.NewRouter(httpx.Deps{
		Handler:        httpx.NewHandler(h),
		WS:             ws,
		AllowedOrigins: []string{"http://localhost:5173"},
	})
}

func do(t *testing.T, h http.Handler, req *http.Request) (*http.Response, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	res := rec.Result()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, string(body)
}

func TestRoot(t *testing.T) {
	router := newTestRouter(&fakeHistory{}, &fakeWS{})

	res, body := do(t, router, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, res.Header.Get("Content-Type"), "text/plain")
	require.Equal(t, "Chat server is running!", body)
	require.NotEmpty(t, res.Header.Get(httpx.HeaderRequestID))
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(&fakeHistory{}, &fakeWS{})

	res, body := do(t, router, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, "ok", body)
}

func TestGetMessages_ReturnsOldestFirstJSON(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var views []domain.MessageView
	for i, text := range []string{"a", "b", "c"} {
		views = append(views, domain.MessageView{
			Message: domain.Message{
				ID:        fmt.Sprintf("m%d", i),
				Content:   text,
				AuthorID:  "alice",
				RoomID:    "c1",
				CreatedAt: base.Add(time.Duration(i) * time.Second),
			},
			Author: domain.Author{ID: "alice", Username: "Alice", Avatar: "a.png"},
		})
	}
	hist := &fakeHistory{views: views}
	router := newTestRouter(hist, &fakeWS{})

	res, body := do(t, router, httptest.NewRequest(http.MethodGet, "/messages/c1", nil))

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, domain.RoomID("c1"), hist.gotRoom)
	require.Equal(t, 0, hist.gotLimit)

	var got []struct {
		ID        string    `json:"id"`
		RoomID    string    `json:"roomId"`
		Content   string    `json:"content"`
		CreatedAt time.Time `json:"createdAt"`
		Author    struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Avatar   string `json:"avatar"`
		} `json:"author"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	require.Len(t, got, 3)
	for i, want := range []string{"a", "b", "c"} {
		require.Equal(t, want, got[i].Content)
		require.Equal(t, "c1", got[i].RoomID)
		require.Equal(t, "Alice", got[i].Author.Username)
	}
	require.True(t, got[0].CreatedAt.Before(got[2].CreatedAt))
}

func TestGetMessages_EmptyRoomIsEmptyArray(t *testing.T) {
	router := newTestRouter(&fakeHistory{}, &fakeWS{})

	res, body := do(t, router, httptest.NewRequest(http.MethodGet, "/messages/nobody", nil))

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.JSONEq(t, `[]`, body)
}

func TestGetMessages_InvalidRoomIsBadRequest(t *testing.T) {
	hist := &fakeHistory{}
	router := newTestRouter(hist, &fakeWS{})

	for _, path := range []string{
		"/messages/%D0%BA%D0%B0%D0%BC%D0%BF%D0%B0%D0%BD%D0%B8%D1%8F",
		"/messages/" + strings.Repeat("x", 129),
	} {
		res, body := do(t, router, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusBadRequest, res.StatusCode, path)
		require.JSONEq(t, `{"error":{"message":"validation error: invalid room id"}}`, body)
	}
	require.Empty(t, hist.gotRoom)
}

func TestGetMessages_PassesLimit(t *testing.T) {
	hist := &fakeHistory{}
	router := newTestRouter(hist, &fakeWS{})

	do(t, router, httptest.NewRequest(http.MethodGet, "/messages/c1?limit=10", nil))

	require.Equal(t, 10, hist.gotLimit)
}

func TestGetMessages_StoreFailure(t *testing.T) {
	hist := &fakeHistory{err: domain.StoreError("query recent", errors.New("dial tcp: refused"))}
	router := newTestRouter(hist, &fakeWS{})

	res, body := do(t, router, httptest.NewRequest(http.MethodGet, "/messages/c1", nil))

	require.Equal(t, http.StatusInternalServerError, res.StatusCode)
	require.JSONEq(t, `{"error":{"message":"server error"}}`, body)
}

func TestWSRoutes(t *testing.T) {
	ws := &fakeWS{}
	router := newTestRouter(&fakeHistory{}, ws)

	for _, path := range []string{"/ws", "/socket"} {
		res, _ := do(t, router, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusTeapot, res.StatusCode)
	}
	require.Equal(t, 2, ws.hits)
}

func TestCORS_AllowedOrigin(t *testing.T) {
	router := newTestRouter(&fakeHistory{}, &fakeWS{})

	req := httptest.NewRequest(http.MethodGet, "/messages/c1", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	res, _ := do(t, router, req)
	require.Equal(t, "http://localhost:5173", res.Header.Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/messages/c1", nil)
	req.Header.Set("Origin", "http://evil.example")
	res, _ = do(t, router, req)
	require.Empty(t, res.Header.Get("Access-Control-Allow-Origin"))
}

func TestRequestID_Propagated(t *testing.T) {
	router := newTestRouter(&fakeHistory{}, &fakeWS{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(httpx.HeaderRequestID, "req-42")
	res, _ := do(t, router, req)

	require.Equal(t, "req-42", res.Header.Get(httpx.HeaderRequestID))
}
