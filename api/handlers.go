package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rustyeddy/papertrade/id"
	"github.com/rustyeddy/papertrade/notify"
	"github.com/rustyeddy/papertrade/portfolio"
	"github.com/rustyeddy/papertrade/position"
)

type sellRequest struct {
	Ticker   string `json:"ticker"`
	Quantity int    `json:"quantity"`
}

type sellResponse struct {
	Position  position.Position `json:"position"`
	Sold      int               `json:"sold"`
	Remaining int               `json:"remaining"`
	Price     float64           `json:"price"`
	Closed    bool              `json:"closed"`
}

type seenRequest struct {
	IDs []string `json:"ids"` // empty marks everything
}

type notificationsResponse struct {
	Notifications []notify.Notification `json:"notifications"`
	Unseen        int                   `json:"unseen"`
}

// health handles GET /health
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"positions": s.engine.Store().Len(),
		"ticks":     s.engine.Ticks(),
	})
}

// listPositions handles GET /api/v1/positions
func (s *Server) listPositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Store().List())
}

// buy handles POST /api/v1/positions
func (s *Server) buy(w http.ResponseWriter, r *http.Request) {
	var o position.Order
	if !decode(w, r, &o) {
		return
	}

	p, err := s.engine.Buy(r.Context(), o)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// sell handles POST /api/v1/positions/sell
func (s *Server) sell(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.engine.Sell(r.Context(), req.Ticker, req.Quantity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sellResponse{
		Position:  res.Position,
		Sold:      res.Sold,
		Remaining: res.Remaining,
		Price:     res.Price,
		Closed:    res.Full(),
	})
}

// closePosition handles DELETE /api/v1/positions/{id}
func (s *Server) closePosition(w http.ResponseWriter, r *http.Request) {
	positionID := chi.URLParam(r, "id")
	if !id.Valid(positionID) {
		writeError(w, "malformed position id", http.StatusBadRequest)
		return
	}

	p, err := s.engine.ClosePosition(r.Context(), positionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// getPortfolio handles GET /api/v1/portfolio
func (s *Server) getPortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, portfolio.Summarize(s.engine.Store().List(), s.now()))
}

// listNotifications handles GET /api/v1/notifications
func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, notificationsResponse{
		Notifications: s.feed.List(),
		Unseen:        s.feed.Unseen(),
	})
}

// markSeen handles POST /api/v1/notifications/seen
func (s *Server) markSeen(w http.ResponseWriter, r *http.Request) {
	var req seenRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked": s.feed.MarkSeen(req.IDs...)})
}
