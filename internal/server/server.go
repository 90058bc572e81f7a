package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"news_search/internal/display"
	"news_search/internal/loader"
	"news_search/internal/logger"
	"news_search/internal/metrics"
	"news_search/internal/models"
	"news_search/internal/settings"
)

// Pinger is a dependency the health check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the current news list and the search preferences over HTTP.
type Server struct {
	loader   *loader.Loader
	store    settings.Store
	defaults models.Preferences
	metrics  *metrics.Metrics
	pinger   Pinger

	// serializes preference updates so Save and Restart happen in order
	mu sync.Mutex
}

// NewServer wires handlers to the loader and preference store. m may be nil.
func NewServer(l *loader.Loader, store settings.Store, defaults models.Preferences, m *metrics.Metrics) *Server {
	return &Server{loader: l, store: store, defaults: defaults, metrics: m}
}

// SetPinger makes HealthCheck depend on p, typically the database.
func (s *Server) SetPinger(p Pinger) {
	s.pinger = p
}

// Routes registers the handlers and wraps them in request-id and logging
// middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.HealthCheck)
	mux.HandleFunc("GET /api/news", s.GetNews)
	mux.HandleFunc("POST /api/news/refresh", s.Refresh)
	mux.HandleFunc("GET /api/settings", s.GetSettings)
	mux.HandleFunc("PUT /api/settings", s.UpdateSettings)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = LoggingMiddleware(handler)
	handler = RequestIDMiddleware(handler)
	return handler
}

// HealthCheck answers 200 OK, or 503 when the configured database is down.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			http.Error(w, "DB unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Write([]byte("OK"))
}

type newsResponse struct {
	State      loader.State   `json:"state"`
	Message    string         `json:"message,omitempty"`
	Subject    string         `json:"subject"`
	OrderBy    string         `json:"order_by"`
	Generation uint64         `json:"generation"`
	Items      []display.Item `json:"items"`
}

// GetNews returns the result of the latest load as display rows.
func (s *Server) GetNews(w http.ResponseWriter, r *http.Request) {
	res := s.loader.Current()
	writeJSON(w, http.StatusOK, newsResponse{
		State:      res.State,
		Message:    res.State.Message(),
		Subject:    res.Preferences.Subject,
		OrderBy:    res.Preferences.OrderBy,
		Generation: res.Generation,
		Items:      display.FromNewsList(res.Items),
	})
}

// Refresh restarts the load with the stored preferences.
func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefs, err := settings.LoadOrDefault(r.Context(), s.store, s.defaults)
	if err != nil {
		logger.For("server").WithError(err).Error("Failed to load preferences")
		http.Error(w, "Failed to load preferences", http.StatusInternalServerError)
		return
	}
	s.loader.Restart(prefs)
	writeJSON(w, http.StatusAccepted, map[string]uint64{"generation": s.loader.Current().Generation})
}

// GetSettings returns the stored preferences, or the defaults.
func (s *Server) GetSettings(w http.ResponseWriter, r *http.Request) {
	prefs, err := settings.LoadOrDefault(r.Context(), s.store, s.defaults)
	if err != nil {
		logger.For("server").WithError(err).Error("Failed to load preferences")
		http.Error(w, "Failed to load preferences", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// UpdateSettings saves new preferences and, when they differ from the stored
// ones, clears the list and starts a new load.
func (s *Server) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var in models.Preferences
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	prefs, err := settings.Validate(in)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := logger.For("server")
	current, err := settings.LoadOrDefault(r.Context(), s.store, s.defaults)
	if err != nil {
		log.WithError(err).Error("Failed to load preferences")
		http.Error(w, "Failed to load preferences", http.StatusInternalServerError)
		return
	}
	if err := s.store.Save(r.Context(), prefs); err != nil {
		log.WithError(err).Error("Failed to save preferences")
		http.Error(w, "Failed to save preferences", http.StatusInternalServerError)
		return
	}

	if prefs != current {
		log.WithFields(logger.Fields{"subject": prefs.Subject, "order_by": prefs.OrderBy}).Info("Preferences changed, reloading")
		s.loader.Restart(prefs)
	}
	writeJSON(w, http.StatusAccepted, prefs)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.For("server").WithError(err).Warn("Failed to encode response")
	}
}
