package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// WSHandler: апгрейд websocket (ws.Server).
type WSHandler interface {
	HandleWS(w http.ResponseWriter, r *http.Request)
}

type Deps struct {
	Handler        *Handler
	WS             WSHandler
	AllowedOrigins []string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(MiddlewareRequestID)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderRequestID},
		ExposedHeaders:   []string{HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// WS: без логгера ответа и таймаута, соединение живёт долго
	if d.WS != nil {
		r.Get("/ws", d.WS.HandleWS)
		r.Get("/socket", d.WS.HandleWS)
	}

	r.Group(func(pr chi.Router) {
		pr.Use(RequestLogger)
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Get("/", d.Handler.Root)
		pr.Get("/messages/{roomId}", d.Handler.GetMessages)
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
