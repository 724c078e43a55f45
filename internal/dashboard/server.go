// Package dashboard exposes a read-only HTTP surface over the combination
// registry, its aggregated Greek exposure, and the last persisted snapshot,
// for operational visibility into a running engine.
package dashboard

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/combo"
	"github.com/maroonxv/option-strategy-scaffold-sub000/internal/persistence"
)

// CombinationSource is the read-only view into the live combination
// registry the dashboard renders.
type CombinationSource interface {
	GetActive() []*combo.Combination
	ToSnapshot() combo.AggregateSnapshot
}

// GreeksSource supplies the Greek exposure the risk endpoint reports on.
// Computing these numbers requires a live option pricing feed, which the
// dashboard does not own, so the current values are injected rather than
// computed here.
type GreeksSource interface {
	PortfolioGreeks() combo.PortfolioGreeks
	CombinationGreeks() map[string]combo.CombinationGreeks
}

// Config controls the HTTP listener and authentication.
type Config struct {
	Port      int
	AuthToken string
}

// Server is the chi-routed read-only HTTP surface.
type Server struct {
	router       *chi.Mux
	server       *http.Server
	combos       CombinationSource
	greeks       GreeksSource
	repository   *persistence.FileRepository
	strategyName string
	riskChecker  *combo.RiskChecker
	logger       *logrus.Logger
	port         int
	authToken    string
}

// CombinationView is the JSON projection of a Combination.
type CombinationView struct {
	CombinationID      string    `json:"combination_id"`
	CombinationType    string    `json:"combination_type"`
	UnderlyingVTSymbol string    `json:"underlying_vt_symbol"`
	Status             string    `json:"status"`
	CreateTime         time.Time `json:"create_time"`
	LegCount           int       `json:"leg_count"`
	ActiveLegCount     int       `json:"active_leg_count"`
}

// CombinationRiskView reports one combination's Greek exposure and whether
// it currently passes the configured risk bounds.
type CombinationRiskView struct {
	CombinationID string               `json:"combination_id"`
	Greeks        combo.CombinationGreeks `json:"greeks"`
	RiskCheck     combo.RiskCheckResult   `json:"risk_check"`
}

// RiskView is the risk endpoint's full payload: portfolio-level exposure
// plus a per-combination breakdown.
type RiskView struct {
	Portfolio    combo.PortfolioGreeks  `json:"portfolio"`
	Combinations []CombinationRiskView  `json:"combinations"`
	GeneratedAt  time.Time              `json:"generated_at"`
}

// NewServer constructs a dashboard Server. combos and greeks are required;
// repository may be nil, in which case /snapshot reports 503.
func NewServer(cfg Config, combos CombinationSource, greeks GreeksSource, repository *persistence.FileRepository, strategyName string, riskChecker *combo.RiskChecker, logger *logrus.Logger) *Server {
	if combos == nil || greeks == nil || riskChecker == nil {
		panic("dashboard: NewServer requires non-nil combos, greeks and riskChecker")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	s := &Server{
		router:       chi.NewRouter(),
		combos:       combos,
		greeks:       greeks,
		repository:   repository,
		strategyName: strategyName,
		riskChecker:  riskChecker,
		logger:       logger,
		port:         cfg.Port,
		authToken:    cfg.AuthToken,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLoggerMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))
	s.router.Use(middleware.Compress(5))

	register := func(r chi.Router) {
		r.Get("/combinations", s.handleGetCombinations)
		r.Get("/combinations/{id}", s.handleGetCombination)
		r.Get("/risk", s.handleGetRisk)
		r.Get("/snapshot", s.handleGetSnapshot)
	}

	if s.authToken != "" {
		s.router.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			register(r)
		})
	} else {
		register(s.router)
	}

	// Health endpoint is always public.
	s.router.Get("/health", s.handleHealth)
}

func (s *Server) requestLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loggedURL := s.redactTokenFromURL(r.URL)

		logEntry := s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"url":        loggedURL.String(),
			"user_agent": r.UserAgent(),
			"remote_ip":  r.RemoteAddr,
		})

		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)

		logEntry.WithFields(logrus.Fields{
			"status":   wrapped.Status(),
			"bytes":    wrapped.BytesWritten(),
			"duration": time.Since(start),
		}).Info("HTTP Request")
	})
}

func (s *Server) redactTokenFromURL(originalURL *url.URL) *url.URL {
	loggedURL := &url.URL{
		Scheme:   originalURL.Scheme,
		Host:     originalURL.Host,
		Path:     originalURL.Path,
		RawQuery: originalURL.RawQuery,
		Fragment: originalURL.Fragment,
	}

	if originalURL.RawQuery != "" {
		values := originalURL.Query()
		for _, k := range []string{"token", "auth_token"} {
			if values.Has(k) {
				values.Set(k, "[REDACTED]")
			}
		}
		loggedURL.RawQuery = values.Encode()
	}

	return loggedURL
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("X-Auth-Token")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if !s.isValidToken(token) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) isValidToken(token string) bool {
	if len(token) != len(s.authToken) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) == 1
}

// Start runs the HTTP server, blocking until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Infof("Starting dashboard server on port %d", s.port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) handleGetCombinations(w http.ResponseWriter, r *http.Request) {
	active := s.combos.GetActive()
	views := make([]CombinationView, 0, len(active))
	for _, c := range active {
		views = append(views, toCombinationView(c))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetCombination(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, c := range s.combos.GetActive() {
		if c.CombinationID == id {
			s.writeJSON(w, http.StatusOK, toCombinationView(c))
			return
		}
	}
	http.Error(w, "Not Found", http.StatusNotFound)
}

func toCombinationView(c *combo.Combination) CombinationView {
	return CombinationView{
		CombinationID:      c.CombinationID,
		CombinationType:    string(c.CombinationType),
		UnderlyingVTSymbol: c.UnderlyingVTSymbol,
		Status:             string(c.Status),
		CreateTime:         c.CreateTime,
		LegCount:           len(c.Legs),
		ActiveLegCount:     len(c.ActiveLegs()),
	}
}

func (s *Server) handleGetRisk(w http.ResponseWriter, r *http.Request) {
	greeksByID := s.greeks.CombinationGreeks()
	views := make([]CombinationRiskView, 0, len(greeksByID))
	for id, g := range greeksByID {
		views = append(views, CombinationRiskView{
			CombinationID: id,
			Greeks:        g,
			RiskCheck:     s.riskChecker.Check(g),
		})
	}

	s.writeJSON(w, http.StatusOK, RiskView{
		Portfolio:    s.greeks.PortfolioGreeks(),
		Combinations: views,
		GeneratedAt:  time.Now(),
	})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.repository == nil {
		http.Error(w, "snapshot repository not configured", http.StatusServiceUnavailable)
		return
	}

	data, err := s.repository.Load(s.strategyName)
	if err != nil {
		if err == persistence.ErrArchiveNotFound {
			http.Error(w, "no snapshot has been saved yet", http.StatusNotFound)
			return
		}
		s.logger.WithError(err).Error("Failed to load snapshot")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

