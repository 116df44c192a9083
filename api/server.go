// Package api exposes the simulator over HTTP for the browser UI: position
// and portfolio queries, buy and sell actions, the notification feed and a
// websocket stream of new notifications.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rustyeddy/papertrade/metrics"
	"github.com/rustyeddy/papertrade/notify"
	"github.com/rustyeddy/papertrade/position"
	"github.com/rustyeddy/papertrade/sim"
)

const maxBodyBytes = 1 << 20

type Config struct {
	RateLimit float64 // mutating requests per second per client, 0 disables
	Burst     int
	Timeout   time.Duration
}

type Server struct {
	engine  *sim.Engine
	feed    *notify.Feed
	metrics *metrics.Metrics
	hub     *Hub
	limiter *limiter
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

func NewServer(engine *sim.Engine, feed *notify.Feed, m *metrics.Metrics, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if m == nil {
		m = metrics.New()
	}
	logger = logger.With(slog.String("component", "api"))

	return &Server{
		engine:  engine,
		feed:    feed,
		metrics: m,
		hub:     NewHub(feed, m, logger),
		limiter: newLimiter(cfg.RateLimit, cfg.Burst),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Hub is the websocket broadcaster. Its Run loop must be started by the
// caller.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)

	r.Get("/health", s.health)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ws", s.hub.HandleWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.Timeout))

			r.Get("/positions", s.listPositions)
			r.Get("/portfolio", s.getPortfolio)
			r.Get("/notifications", s.listNotifications)

			r.Group(func(r chi.Router) {
				r.Use(s.limiter.middleware)

				r.Post("/positions", s.buy)
				r.Post("/positions/sell", s.sell)
				r.Delete("/positions/{id}", s.closePosition)
				r.Post("/notifications/seen", s.markSeen)
			})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, position.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, position.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("err", err),
		)
		writeError(w, "internal error", status)
		return
	}
	writeError(w, err.Error(), status)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
