// Package server exposes the coordinator over HTTP and WebSocket. The
// browser-side collaborators post navigation, signal and lifecycle events in
// and hold a websocket open per tab to receive risk actions back.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/sentineltk/sentinel/internal/app"
	"github.com/sentineltk/sentinel/internal/logging"
	"github.com/sentineltk/sentinel/internal/model"
	"github.com/sentineltk/sentinel/internal/storage"
	"github.com/sentineltk/sentinel/internal/utils"
)

// Server is the HTTP + WebSocket API surface.
type Server struct {
	cfg         Config
	coordinator *app.Coordinator
	store       storage.Store
	hub         *ActionHub
	router      chi.Router
	upgrader    websocket.Upgrader
	logger      logging.Logger
}

// NewServer wires the API surface over an existing coordinator. hub must be
// the same instance registered as the coordinator's messenger/notifier, or
// websocket subscribers will never see the coordinator's decisions.
func NewServer(cfg Config, coordinator *app.Coordinator, store storage.Store, hub *ActionHub, logger logging.Logger) (*Server, error) {
	if coordinator == nil {
		return nil, errors.New("server: nil coordinator")
	}
	if store == nil {
		return nil, errors.New("server: nil store")
	}
	if hub == nil {
		return nil, errors.New("server: nil action hub")
	}
	if logger == nil {
		return nil, errors.New("server: nil logger")
	}

	s := &Server{
		cfg:         cfg,
		coordinator: coordinator,
		store:       store,
		hub:         hub,
		router:      chi.NewRouter(),
		logger:      logger.With(logging.Field{Key: "component", Value: "server"}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: tighten for production
				return true
			},
		},
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/tabs/{tabID}/navigate", s.optionsHandler("POST"))
	r.Options("/tabs/{tabID}/signals", s.optionsHandler("POST"))
	r.Options("/tabs/{tabID}/override", s.optionsHandler("POST"))
	r.Options("/tabs/{tabID}/redirects", s.optionsHandler("POST"))
	r.Options("/tabs/{tabID}", s.optionsHandler("DELETE"))
	r.Options("/tabs/{tabID}/state", s.optionsHandler("GET"))
	r.Options("/whitelist", s.optionsHandler("GET, POST"))
	r.Options("/whitelist/{domain}", s.optionsHandler("DELETE"))
	r.Options("/report", s.optionsHandler("POST"))
	r.Options("/history", s.optionsHandler("GET"))

	// Tab lifecycle
	r.Post("/tabs/{tabID}/navigate", s.handleNavigate)
	r.Post("/tabs/{tabID}/signals", s.handleSignals)
	r.Post("/tabs/{tabID}/override", s.handleOverride)
	r.Post("/tabs/{tabID}/redirects", s.handleRedirects)
	r.Delete("/tabs/{tabID}", s.handleTabClosed)
	r.Get("/tabs/{tabID}/state", s.handleTabState)

	// Whitelist
	r.Get("/whitelist", s.handleListWhitelist)
	r.Post("/whitelist", s.handleAddWhitelist)
	r.Delete("/whitelist/{domain}", s.handleRemoveWhitelist)

	// Reports and history
	r.Post("/report", s.handleReport)
	r.Get("/history", s.handleHistory)

	// WebSocket push of risk actions per tab
	r.Get("/ws/tabs/{tabID}/actions", s.handleActionsWS)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && r.Method == http.MethodPost {
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			fields = append(fields, logging.Field{Key: "body", Value: string(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func tabIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "tabID"), 10, 64)
}

// --- HTTP handlers ---

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	tabID, err := tabIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tab id")
		return
	}

	var body NavigateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	if err := s.coordinator.Dispatch(r.Context(), model.Event{
		Type:  model.EventNavigationCommitted,
		TabID: tabID,
		URL:   body.URL,
	}); err != nil {
		s.logger.Warn("navigation dispatch failed", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.coordinator.TabSession(tabID))
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	tabID, err := tabIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tab id")
		return
	}

	var signals model.PageSignals
	if err := json.NewDecoder(r.Body).Decode(&signals); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	err = s.coordinator.Dispatch(r.Context(), model.Event{
		Type:    model.EventSignalsReceived,
		TabID:   tabID,
		Signals: &signals,
	})
	if errors.Is(err, app.ErrNoSession) {
		writeError(w, http.StatusNotFound, "no session for tab")
		return
	}
	if err != nil {
		s.logger.Warn("signals dispatch failed", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.coordinator.TabSession(tabID))
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) {
	tabID, err := tabIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tab id")
		return
	}

	err = s.coordinator.Dispatch(r.Context(), model.Event{
		Type:  model.EventUserOverride,
		TabID: tabID,
	})
	if errors.Is(err, app.ErrNoSession) {
		writeError(w, http.StatusNotFound, "no session for tab")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.coordinator.TabSession(tabID))
}

func (s *Server) handleRedirects(w http.ResponseWriter, r *http.Request) {
	tabID, err := tabIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tab id")
		return
	}

	var body RedirectsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	err = s.coordinator.Dispatch(r.Context(), model.Event{
		Type:          model.EventRedirectDetected,
		TabID:         tabID,
		RedirectCount: body.RedirectCount,
		RapidRedirect: body.RapidRedirect,
	})
	if errors.Is(err, app.ErrNoSession) {
		writeError(w, http.StatusNotFound, "no session for tab")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.coordinator.TabSession(tabID))
}

func (s *Server) handleTabClosed(w http.ResponseWriter, r *http.Request) {
	tabID, err := tabIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tab id")
		return
	}

	if err := s.coordinator.Dispatch(r.Context(), model.Event{
		Type:  model.EventTabClosed,
		TabID: tabID,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTabState(w http.ResponseWriter, r *http.Request) {
	tabID, err := tabIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tab id")
		return
	}

	session := s.coordinator.TabSession(tabID)
	if session == nil {
		writeError(w, http.StatusNotFound, "no session for tab")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleListWhitelist(w http.ResponseWriter, r *http.Request) {
	domains, err := s.store.ListWhitelist(r.Context())
	if err != nil {
		s.logger.Warn("listing whitelist", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"domains": domains})
}

func (s *Server) handleAddWhitelist(w http.ResponseWriter, r *http.Request) {
	var body WhitelistRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.Domain == "" {
		writeError(w, http.StatusBadRequest, "domain is required")
		return
	}

	if err := s.coordinator.Dispatch(r.Context(), model.Event{
		Type:   model.EventWhitelistAdded,
		TabID:  body.TabID,
		Domain: body.Domain,
	}); err != nil {
		if errors.Is(err, storage.ErrEmptyDomain) {
			writeError(w, http.StatusBadRequest, "invalid domain")
			return
		}
		s.logger.Warn("adding to whitelist", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"domain": body.Domain})
}

func (s *Server) handleRemoveWhitelist(w http.ResponseWriter, r *http.Request) {
	domain := utils.NormalizeHostname(chi.URLParam(r, "domain"))
	if domain == "" {
		writeError(w, http.StatusBadRequest, "invalid domain")
		return
	}

	if err := s.store.RemoveFromWhitelist(r.Context(), utils.BaseDomain(domain)); err != nil {
		s.logger.Warn("removing from whitelist", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var body ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if body.Domain == "" {
		writeError(w, http.StatusBadRequest, "domain is required")
		return
	}

	err := s.coordinator.Dispatch(r.Context(), model.Event{
		Type:   model.EventReportRequested,
		Domain: body.Domain,
		Reason: body.Reason,
	})
	if errors.Is(err, app.ErrInvalidReason) {
		writeError(w, http.StatusBadRequest, "invalid reason")
		return
	}
	if err != nil {
		s.logger.Warn("submitting report", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"domain": body.Domain, "reason": string(body.Reason)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	days := 7
	if ds := r.URL.Query().Get("days"); ds != "" {
		v, err := strconv.Atoi(ds)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "invalid days")
			return
		}
		days = v
	}

	records, err := s.store.GetScanHistory(r.Context(), days)
	if err != nil {
		s.logger.Warn("reading scan history", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []storage.ScanRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) handleActionsWS(w http.ResponseWriter, r *http.Request) {
	tabID, err := tabIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid tab id")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	ch, cancel := s.hub.Subscribe(tabID)
	defer cancel()

	s.logger.Info("action stream opened", logging.Field{Key: "tab_id", Value: tabID})

	// If the tab already has a verdict, replay it so a late subscriber does
	// not sit behind an overlay with no matching message.
	if session := s.coordinator.TabSession(tabID); session != nil && session.Score != nil {
		action := model.ActionForLevel(session.Score.Level)
		if session.UserOverride {
			action = model.ActionNone
		}
		_ = conn.WriteJSON(ActionMessage{
			Type:   "risk_action",
			TabID:  tabID,
			Action: action,
			Score:  session.Score.Score,
		})
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				// Assume client disconnected.
				return
			}
		}
	}
}
