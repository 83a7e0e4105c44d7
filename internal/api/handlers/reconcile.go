package handlers

import (
	"errors"
	"net/http"
	"path/filepath"

	"github.com/akuvvet/Automatisierung/internal/api/middleware"
	"github.com/akuvvet/Automatisierung/internal/domain"
	"github.com/akuvvet/Automatisierung/internal/logger"
	"github.com/akuvvet/Automatisierung/internal/pipeline"
	"github.com/akuvvet/Automatisierung/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ReconcileHandler runs reconciliations synchronously and serves results.
type ReconcileHandler struct {
	rec       Reconciler
	uploadDir string
	resultDir string
	maxUpload int64
	log       zerolog.Logger
}

// NewReconcileHandler creates a handler. maxUpload limits the request body
// in bytes; zero disables the limit.
func NewReconcileHandler(rec Reconciler, uploadDir, resultDir string, maxUpload int64, log zerolog.Logger) *ReconcileHandler {
	return &ReconcileHandler{
		rec:       rec,
		uploadDir: uploadDir,
		resultDir: resultDir,
		maxUpload: maxUpload,
		log:       log,
	}
}

// ProcessResponse is the reply of a successful reconciliation.
type ProcessResponse struct {
	Status     string          `json:"status"`
	Message    string          `json:"message"`
	RunID      string          `json:"run_id"`
	Download   string          `json:"download"`
	ArchiveURI string          `json:"archive_uri,omitempty"`
	Stats      domain.RunStats `json:"stats"`
}

// Process handles POST /process and POST /api/reconcile
func (h *ReconcileHandler) Process(w http.ResponseWriter, r *http.Request) {
	log := logFor(r, h.log)

	uploads, status, err := saveUploads(w, r, h.uploadDir, h.maxUpload)
	if err != nil {
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Msg("Failed to save uploads")
			middleware.WriteError(w, status, "failed to save uploads")
			return
		}
		middleware.WriteError(w, status, err.Error())
		return
	}

	ctx := logger.WithContext(r.Context(), log)
	result, err := h.rec.Run(ctx, pipeline.Request{
		RosterPath:    uploads.RosterPath,
		StatementPath: uploads.StatementPath,
		OutputDir:     h.resultDir,
	})
	if err != nil {
		status, msg := runErrorStatus(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Msg("Reconciliation failed")
		}
		middleware.WriteError(w, status, msg)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, ProcessResponse{
		Status:     "ok",
		Message:    "reconciliation finished",
		RunID:      result.RunID,
		Download:   "/results/" + filepath.Base(result.OutputPath),
		ArchiveURI: result.ArchiveURI,
		Stats:      result.Stats,
	})
}

// Download handles GET /results/{filename}
func (h *ReconcileHandler) Download(w http.ResponseWriter, r *http.Request) {
	path, err := storage.ResolveResult(h.resultDir, chi.URLParam(r, "filename"))
	if errors.Is(err, storage.ErrInvalidName) {
		middleware.WriteError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "file not found")
		return
	}
	serveWorkbook(w, r, path)
}
