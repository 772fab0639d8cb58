// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/dayflow/internal/app"
	"github.com/okian/dayflow/internal/domain/activity"
	"github.com/okian/dayflow/internal/domain/forecast"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Categories() []activity.Category
	Forecast(ctx context.Context, strategy string, partial []activity.Category, count int) ([]forecast.Forecast, error)
	Sample(ctx context.Context, block int, from activity.Category) (activity.Category, error)
	Probabilities(ctx context.Context, block int, from activity.Category) ([]float64, error)
}

// Server wires HTTP routes for the model API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	categoriesHandler *CategoriesHandler
	forecastHandler   *ForecastHandler
	sampleHandler     *SampleHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		categoriesHandler: NewCategoriesHandler(deps),
		forecastHandler:   NewForecastHandler(deps),
		sampleHandler:     NewSampleHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/categories", MetricsMiddleware(s.categoriesHandler.HandleCategories, "categories"))
	mux.HandleFunc("/forecast", MetricsMiddleware(s.forecastHandler.HandleForecast, "forecast"))
	mux.HandleFunc("/sample", MetricsMiddleware(s.sampleHandler.HandleSample, "sample"))
}

// categoryJSON is the wire shape of a category.
type categoryJSON struct {
	Code  uint8  `json:"code"`
	Label string `json:"label"`
}

func toCategoryJSON(c activity.Category) categoryJSON {
	return categoryJSON{Code: c.Code(), Label: c.Label()}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError maps service and domain errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, forecast.ErrInvalidPartialDay),
		errors.Is(err, forecast.ErrInvalidCount),
		errors.Is(err, service.ErrUnknownStrategy),
		errors.Is(err, service.ErrInvalidCategory):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrBlockOutOfRange):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
