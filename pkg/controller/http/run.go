package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagship/pkg/domain/interfaces"
	"github.com/m-mizutani/tagship/pkg/domain/types"
)

// RunHandler serves recorded runs
type RunHandler struct {
	releaseUC interfaces.ReleaseUseCase
}

// NewRunHandler creates a new RunHandler
func NewRunHandler(releaseUC interfaces.ReleaseUseCase) *RunHandler {
	return &RunHandler{releaseUC: releaseUC}
}

// Get returns one run by ID
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := types.RunID(chi.URLParam(r, "id"))

	run, err := h.releaseUC.GetRun(ctx, id)
	if err != nil {
		if goerr.HasTag(err, types.ErrTagNotFound) {
			writeError(ctx, w, goerr.New("run not found"), http.StatusNotFound)
			return
		}
		ctxlog.From(ctx).Error("Failed to get run", "run_id", id, "error", err)
		writeError(ctx, w, goerr.New("failed to get run"), http.StatusInternalServerError)
		return
	}

	writeJSON(ctx, w, run, http.StatusOK)
}
