package http

import (
	"net/http"
	"time"

	"github.com/cwrk-planet/chat-service/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Deps struct {
	Handler        *Handler
	WS             http.HandlerFunc
	AllowedOrigins []string
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httputil.MiddlewareRequestID)
	r.Use(httputil.MiddlewareLogging)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{httputil.HeaderRequestID},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// long-lived, so no timeout
	r.Get("/ws", d.WS)

	r.Group(func(gr chi.Router) {
		gr.Use(middleware.Timeout(30 * time.Second))

		gr.Get("/healthz", d.Handler.Healthz)
		gr.Get("/stats", d.Handler.Stats)
		gr.Get("/rooms/{id}", d.Handler.GetRoom)
	})

	return r
}
