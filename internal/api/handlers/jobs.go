package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/akuvvet/Automatisierung/internal/api/middleware"
	"github.com/akuvvet/Automatisierung/internal/jobs"
	"github.com/akuvvet/Automatisierung/internal/logger"
	"github.com/akuvvet/Automatisierung/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store     jobs.JobStore
	publisher jobs.Publisher
	uploadDir string
	resultDir string
	maxUpload int64
	log       zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, publisher jobs.Publisher, uploadDir, resultDir string, maxUpload int64, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store:     store,
		publisher: publisher,
		uploadDir: uploadDir,
		resultDir: resultDir,
		maxUpload: maxUpload,
		log:       log,
	}
}

// JobResultPath is the download path of a job's result workbook.
func JobResultPath(jobID string) string {
	return "/api/jobs/" + jobID + "/result"
}

// EnqueueJob handles POST /api/jobs
func (h *JobsHandler) EnqueueJob(w http.ResponseWriter, r *http.Request) {
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

	jobID := uuid.NewString()
	job := &jobs.ReconcileJob{
		JobID:         jobID,
		RosterPath:    uploads.RosterPath,
		StatementPath: uploads.StatementPath,
		RosterName:    uploads.RosterName,
		StatementName: uploads.StatementName,
		OutputDir:     filepath.Join(h.resultDir, jobID),
	}

	if err := h.publisher.PublishReconcile(r.Context(), job); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue reconciliation job")
		middleware.WriteError(w, http.StatusServiceUnavailable, "failed to enqueue job")
		return
	}

	log.Info().Str("job_id", job.JobID).Msg("Reconciliation job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// JobResult handles GET /api/jobs/{id}/result
func (h *JobsHandler) JobResult(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if job.Status != jobs.JobStatusCompleted || job.Result == nil {
		middleware.WriteError(w, http.StatusConflict, fmt.Sprintf("job is %s", job.Status))
		return
	}
	serveWorkbook(w, r, job.Result.OutputPath)
}

func (h *JobsHandler) lookup(w http.ResponseWriter, r *http.Request) (*jobs.ReconcileJob, bool) {
	jobID := chi.URLParam(r, "id")
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "job not found")
			return nil, false
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to get job")
		return nil, false
	}
	return job, true
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if jobsList == nil {
		jobsList = []*jobs.ReconcileJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// NewJobProcessor returns the queue handler that runs reconciliation jobs.
func NewJobProcessor(rec Reconciler, log zerolog.Logger) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.ReconcileJob) error {
		jobLog := log.With().Str("job_id", job.JobID).Logger()
		ctx = logger.WithContext(ctx, jobLog)

		result, err := rec.Run(ctx, pipeline.Request{
			RosterPath:    job.RosterPath,
			StatementPath: job.StatementPath,
			OutputDir:     job.OutputDir,
		})
		if err != nil {
			jobLog.Warn().Err(err).Msg("Reconciliation job failed")
			return err
		}

		job.Result = &jobs.JobResult{
			RunID:      result.RunID,
			OutputPath: result.OutputPath,
			Download:   JobResultPath(job.JobID),
			ArchiveURI: result.ArchiveURI,
			Stats:      result.Stats,
		}
		return nil
	}
}
