package handlers

import (
	"net/http"
	"time"

	"github.com/XavierBriggs/fortuna/services/livescore/internal/config"
	"github.com/XavierBriggs/fortuna/services/livescore/internal/logging"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// NewRouter wires every route. Admin writes pass through a throttle of
// cfg.MaxWriters concurrent requests.
func NewRouter(h *Handler, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Last-Event-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HandleHealth)
	r.Get("/metrics", h.HandleMetrics)
	r.Get("/ws", h.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/public", h.GetPublic)
		r.Get("/stream", h.HandleStream)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireWriter)
			r.Use(chimiddleware.Throttle(cfg.MaxWriters))

			r.Post("/createMatch", h.CreateMatch)
			r.Post("/startInnings", h.StartInnings)
			r.Post("/addBall", h.AddBall)
			r.Post("/addTeam", h.AddTeam)
			r.Post("/addPlayer", h.AddPlayer)
			r.Post("/resetMatch", h.ResetMatch)
		})
	})

	return r
}

// requestLogger logs one line per request once the handler returns.
// Streams log when the viewer disconnects.
func requestLogger(next http.Handler) http.Handler {
	log := logging.NewLogger("http")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		entry := log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  chimiddleware.GetReqID(r.Context()),
		})
		if ww.Status() >= http.StatusInternalServerError {
			entry.Warn("request completed")
			return
		}
		entry.Debug("request completed")
	})
}
