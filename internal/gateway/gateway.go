// Package gateway serves the aircraft queries over HTTP.
package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"spotter/internal/adsb"
	"spotter/internal/geo"
	"spotter/internal/query"
	"spotter/internal/registry"
)

// Queries is the read side the gateway exposes
type Queries interface {
	All() map[adsb.ICAO]registry.Entity
	Nearest() *query.Match
	Farthest() *query.Match
	ByID(id string) (registry.Entity, error)
	Count() int
}

// Routes served by the gateway, listed on the status page
var Routes = []string{
	"/airplanes",
	"/airplane/closest",
	"/airplane/furthest",
	"/airplane/{icao}",
}

type handler struct {
	queries  Queries
	observer geo.Point
	logger   *logrus.Entry
}

// New builds the HTTP router
func New(queries Queries, observer geo.Point, logger *logrus.Logger) http.Handler {
	h := &handler{
		queries:  queries,
		observer: observer,
		logger:   logger.WithField("component", "gateway"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", h.handleHome)
	r.Get("/airplanes", h.handleAll)
	r.Get("/airplane/closest", h.handleClosest)
	r.Get("/airplane/furthest", h.handleFurthest)
	r.Get("/airplane/{icao}", h.handleByID)

	return r
}

// NewServer wraps a handler in an http.Server with sane timeouts
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (h *handler) handleHome(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	b.WriteString("Spotter - ADS-B processor and web server providing information in json format\n\n")
	b.WriteString("==[Info]==========\n")
	fmt.Fprintf(&b, "Lat: %v\n", h.observer.Latitude)
	fmt.Fprintf(&b, "Long: %v\n", h.observer.Longitude)
	fmt.Fprintf(&b, "Airplanes tracked: %d\n\n", h.queries.Count())
	b.WriteString("==[Protocol]=====\n")
	for _, route := range Routes {
		b.WriteString(route)
		b.WriteByte('\n')
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}

func (h *handler) handleAll(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.queries.All())
}

func (h *handler) handleClosest(w http.ResponseWriter, r *http.Request) {
	h.respondMatch(w, h.queries.Nearest())
}

func (h *handler) handleFurthest(w http.ResponseWriter, r *http.Request) {
	h.respondMatch(w, h.queries.Farthest())
}

// respondMatch writes [icao, entity], or null when nothing qualifies
func (h *handler) respondMatch(w http.ResponseWriter, m *query.Match) {
	if m == nil {
		h.respondJSON(w, http.StatusOK, nil)
		return
	}
	h.respondJSON(w, http.StatusOK, *m)
}

func (h *handler) handleByID(w http.ResponseWriter, r *http.Request) {
	entity, err := h.queries.ByID(chi.URLParam(r, "icao"))
	switch {
	case errors.Is(err, adsb.ErrInvalidICAO):
		h.respondError(w, http.StatusBadRequest, err)
	case errors.Is(err, query.ErrNotFound):
		h.respondError(w, http.StatusNotFound, err)
	case err != nil:
		h.respondError(w, http.StatusInternalServerError, err)
	default:
		h.respondJSON(w, http.StatusOK, entity)
	}
}

// respondJSON writes data as JSON
func (h *handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (h *handler) respondError(w http.ResponseWriter, status int, err error) {
	h.respondJSON(w, status, map[string]string{"error": err.Error()})
}

// requestLogger emits one log entry per request
func requestLogger(logger *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.WithFields(logrus.Fields{
					"method":     r.Method,
					"path":       r.URL.Path,
					"status":     ww.Status(),
					"bytes":      ww.BytesWritten(),
					"duration":   time.Since(start),
					"request_id": middleware.GetReqID(r.Context()),
					"remote":     r.RemoteAddr,
				}).Debug("HTTP request")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
