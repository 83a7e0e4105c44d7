// Package handlers implements the HTTP endpoints of the reconciliation
// service.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/akuvvet/Automatisierung/internal/api/middleware"
	"github.com/akuvvet/Automatisierung/internal/pipeline"
	"github.com/akuvvet/Automatisierung/internal/storage"
	"github.com/akuvvet/Automatisierung/internal/workbook"
	"github.com/rs/zerolog"
)

// Multipart field names of the two uploads.
const (
	RosterField    = "excel"
	StatementField = "konto"
)

const msgUploadsRequired = "roster and statement uploads are required"

var errUploadsRequired = errors.New(msgUploadsRequired)

// Reconciler runs one reconciliation.
type Reconciler interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Uploads are the saved input files of a request.
type Uploads struct {
	RosterPath    string
	RosterName    string
	StatementPath string
	StatementName string
}

// saveUploads reads the roster and statement parts of a multipart request
// into dir.
func saveUploads(w http.ResponseWriter, r *http.Request, dir string, maxBytes int64) (*Uploads, int, error) {
	if maxBytes > 0 {
		if r.ContentLength > maxBytes {
			return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", maxBytes)
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", tooLarge.Limit)
		}
		return nil, http.StatusBadRequest, errUploadsRequired
	}

	roster, rosterHeader, err := r.FormFile(RosterField)
	if err != nil {
		return nil, http.StatusBadRequest, errUploadsRequired
	}
	defer roster.Close()

	statement, statementHeader, err := r.FormFile(StatementField)
	if err != nil {
		return nil, http.StatusBadRequest, errUploadsRequired
	}
	defer statement.Close()

	u := &Uploads{RosterName: rosterHeader.Filename, StatementName: statementHeader.Filename}
	if u.RosterPath, err = saveFile(dir, rosterHeader, roster); err != nil {
		return nil, http.StatusInternalServerError, err
	}
	if u.StatementPath, err = saveFile(dir, statementHeader, statement); err != nil {
		return nil, http.StatusInternalServerError, err
	}
	return u, 0, nil
}

func saveFile(dir string, header *multipart.FileHeader, f multipart.File) (string, error) {
	path, err := storage.SaveUpload(dir, header.Filename, f)
	if err != nil {
		return "", fmt.Errorf("save %s: %w", header.Filename, err)
	}
	return path, nil
}

// runErrorStatus maps a pipeline error to an HTTP status and message.
func runErrorStatus(err error) (int, string) {
	var missing *workbook.MissingColumnsError
	switch {
	case errors.As(err, &missing):
		return http.StatusBadRequest, missing.Error()
	case errors.Is(err, pipeline.ErrRosterUnreadable), errors.Is(err, pipeline.ErrStatementUnreadable):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "reconciliation cancelled"
	}
	return http.StatusInternalServerError, "reconciliation failed"
}

// serveWorkbook streams a result workbook as an attachment.
func serveWorkbook(w http.ResponseWriter, r *http.Request, path string) {
	f, err := os.Open(path)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "file not found")
		return
	}
	defer f.Close()

	modTime := time.Time{}
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}

	name := filepath.Base(path)
	w.Header().Set("Content-Type", storage.XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, modTime, f)
}

func logFor(r *http.Request, log zerolog.Logger) zerolog.Logger {
	if id := middleware.GetRequestID(r.Context()); id != "" {
		return log.With().Str("request_id", id).Logger()
	}
	return log
}
