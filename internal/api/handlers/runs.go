package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/akuvvet/Automatisierung/internal/api/middleware"
	"github.com/akuvvet/Automatisierung/internal/infra/bigquery"
	"github.com/rs/zerolog"
)

// RunLister reads tracked runs.
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]*bigquery.RunRow, error)
}

// RunsHandler lists tracked reconciliation runs.
type RunsHandler struct {
	lister RunLister
	log    zerolog.Logger
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(lister RunLister, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{lister: lister, log: log}
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	runs, err := h.lister.RecentRuns(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*bigquery.RunRow{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}
