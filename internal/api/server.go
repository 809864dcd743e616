// Package api serves the read-only operations API: health, the delivery
// journal and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/NikitaDmitryuk/libria-media-server/internal/database"
	"github.com/NikitaDmitryuk/libria-media-server/internal/logutils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const jsonContentType = "application/json"

const (
	apiV1Prefix    = "/api/v1"
	healthPath     = apiV1Prefix + "/health"
	deliveriesPath = apiV1Prefix + "/deliveries"
	metricsPath    = "/metrics"
)

type Server struct {
	journal database.DeliveryReader
	apiKey  string
	srv     *http.Server
}

// NewServer creates the API server. When apiKey is empty only loopback clients are accepted.
func NewServer(journal database.DeliveryReader, listenAddr, apiKey string) *Server {
	s := &Server{journal: journal, apiKey: apiKey}
	s.srv = &http.Server{
		Addr:              listenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Routes builds the router; exposed for tests.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.authenticate)

	r.Get(healthPath, Health)
	r.Get(deliveriesPath, s.listDeliveries)
	r.Get(deliveriesPath+"/{id}", s.getDelivery)
	r.Method(http.MethodGet, metricsPath, promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func isLoopback(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (*Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), requestID)))
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logutils.Log.WithFields(logrus.Fields{
			"request_id": RequestIDFromContext(r.Context()),
			"path":       r.URL.Path,
		})
		if s.apiKey != "" {
			token := ""
			if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, "Bearer ") {
				token = strings.TrimSpace(ah[len("Bearer "):])
			}
			if token == "" {
				token = r.Header.Get("X-API-Key")
			}
			if token != s.apiKey {
				log.Warn("API request unauthorized")
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		} else if !isLoopback(r) {
			log.WithField("remote_addr", r.RemoteAddr).Warn("API request rejected: non-loopback without API key")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		log.WithField("method", r.Method).Debug("API request")
		next.ServeHTTP(w, r)
	})
}

// Start listens and serves until Shutdown is called.
func (s *Server) Start() error {
	logutils.Log.WithField("addr", s.srv.Addr).Info("API server starting")
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logutils.Log.WithError(err).Warn("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
