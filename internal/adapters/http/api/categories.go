package api

import (
	"net/http"

	"github.com/okian/dayflow/internal/domain/activity"
)

// CategoriesDependencies defines the interface for listing categories.
type CategoriesDependencies interface {
	Categories() []activity.Category
}

// CategoriesHandler handles category listing requests.
type CategoriesHandler struct {
	deps CategoriesDependencies
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(deps CategoriesDependencies) *CategoriesHandler {
	return &CategoriesHandler{deps: deps}
}

// HandleCategories handles GET /categories requests. The sentinel is never
// listed.
func (h *CategoriesHandler) HandleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", ErrMethodNotAllowed)
		return
	}
	cats := h.deps.Categories()
	out := make([]categoryJSON, 0, len(cats))
	for _, c := range cats {
		out = append(out, toCategoryJSON(c))
	}
	writeJSON(w, http.StatusOK, out)
}
