package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/okian/dayflow/internal/domain/activity"
	"github.com/okian/dayflow/internal/domain/forecast"
)

// maxForecastBody caps the POST /forecast payload.
const maxForecastBody = 1 << 16

// ForecastDependencies defines the interface for forecast operations.
type ForecastDependencies interface {
	Forecast(ctx context.Context, strategy string, partial []activity.Category, count int) ([]forecast.Forecast, error)
}

// ForecastHandler handles forecast requests.
type ForecastHandler struct {
	deps ForecastDependencies
}

// NewForecastHandler creates a new forecast handler.
func NewForecastHandler(deps ForecastDependencies) *ForecastHandler {
	return &ForecastHandler{deps: deps}
}

// forecastRequest is the POST /forecast body. Codes are plain integers.
type forecastRequest struct {
	Partial  []int  `json:"partial"`
	Count    int    `json:"count"`
	Strategy string `json:"strategy"`
}

func (f forecastRequest) categories() ([]activity.Category, error) {
	out := make([]activity.Category, len(f.Partial))
	for i, code := range f.Partial {
		if code < 0 || code > int(activity.MaxCode) {
			return nil, fmt.Errorf("%w: partial[%d] = %d", ErrBadRequest, i, code)
		}
		out[i] = activity.Category(code)
	}
	return out, nil
}

type forecastJSON struct {
	Initial    []categoryJSON `json:"initial"`
	Prediction []categoryJSON `json:"prediction"`
	Confidence float64        `json:"confidence"`
}

type forecastResponse struct {
	ID        string         `json:"id"`
	Forecasts []forecastJSON `json:"forecasts"`
}

func toJSON(cs []activity.Category) []categoryJSON {
	out := make([]categoryJSON, len(cs))
	for i, c := range cs {
		out[i] = toCategoryJSON(c)
	}
	return out
}

// HandleForecast handles POST /forecast requests.
func (h *ForecastHandler) HandleForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}

	var req forecastRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxForecastBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	partial, err := req.categories()
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out, err := h.deps.Forecast(r.Context(), req.Strategy, partial, req.Count)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := forecastResponse{ID: uuid.NewString(), Forecasts: make([]forecastJSON, len(out))}
	for i, f := range out {
		resp.Forecasts[i] = forecastJSON{
			Initial:    toJSON(f.Initial),
			Prediction: toJSON(f.Prediction),
			Confidence: f.Confidence,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
