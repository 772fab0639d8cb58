package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/dayflow/internal/domain/activity"
)

// SampleDependencies defines the interface for single-step sampling.
type SampleDependencies interface {
	Sample(ctx context.Context, block int, from activity.Category) (activity.Category, error)
	Probabilities(ctx context.Context, block int, from activity.Category) ([]float64, error)
}

// SampleHandler handles sample requests.
type SampleHandler struct {
	deps SampleDependencies
}

// NewSampleHandler creates a new sample handler.
func NewSampleHandler(deps SampleDependencies) *SampleHandler {
	return &SampleHandler{deps: deps}
}

type sampleResponse struct {
	Block         int          `json:"block"`
	From          categoryJSON `json:"from"`
	Next          categoryJSON `json:"next"`
	Probabilities []float64    `json:"probabilities"`
}

// HandleSample handles GET /sample?block=i&from=c requests.
func (h *SampleHandler) HandleSample(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	block, err := strconv.Atoi(q.Get("block"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: block: %w", ErrBadRequest, err))
		return
	}
	code, err := strconv.ParseUint(q.Get("from"), 10, 8)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: from: %w", ErrBadRequest, err))
		return
	}
	from := activity.Category(code)

	probs, err := h.deps.Probabilities(r.Context(), block, from)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	next, err := h.deps.Sample(r.Context(), block, from)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sampleResponse{
		Block:         block,
		From:          toCategoryJSON(from),
		Next:          toCategoryJSON(next),
		Probabilities: probs,
	})
}
