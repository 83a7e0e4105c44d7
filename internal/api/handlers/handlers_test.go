package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/akuvvet/Automatisierung/internal/domain"
	"github.com/akuvvet/Automatisierung/internal/infra/bigquery"
	"github.com/akuvvet/Automatisierung/internal/jobs"
	"github.com/akuvvet/Automatisierung/internal/jobs/inmemory"
	"github.com/akuvvet/Automatisierung/internal/pipeline"
	"github.com/akuvvet/Automatisierung/internal/storage"
	"github.com/akuvvet/Automatisierung/internal/workbook"
	"github.com/rs/zerolog"
)

// mockReconciler is a mock implementation of Reconciler.
type mockReconciler struct {
	runFunc func(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

func (m *mockReconciler) Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	return m.runFunc(ctx, req)
}

// mockPublisher is a mock implementation of jobs.Publisher.
type mockPublisher struct {
	publishFunc func(ctx context.Context, job *jobs.ReconcileJob) error
}

func (m *mockPublisher) PublishReconcile(ctx context.Context, job *jobs.ReconcileJob) error {
	return m.publishFunc(ctx, job)
}

func (m *mockPublisher) Close() error { return nil }

// mockRunLister is a mock implementation of RunLister.
type mockRunLister struct {
	recentFunc func(ctx context.Context, limit int) ([]*bigquery.RunRow, error)
}

func (m *mockRunLister) RecentRuns(ctx context.Context, limit int) ([]*bigquery.RunRow, error) {
	return m.recentFunc(ctx, limit)
}

type testEnv struct {
	uploadDir string
	resultDir string
	store     *inmemory.Store
	router    http.Handler
}

func newTestEnv(t *testing.T, rec Reconciler, pub jobs.Publisher, runs RunLister, maxUpload int64) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		uploadDir: filepath.Join(root, "uploads"),
		resultDir: filepath.Join(root, "results"),
		store:     inmemory.NewStore(),
	}
	if err := os.MkdirAll(env.resultDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if pub == nil {
		pub = &mockPublisher{publishFunc: func(ctx context.Context, job *jobs.ReconcileJob) error {
			job.Status = jobs.JobStatusPending
			job.CreatedAt = time.Now()
			return env.store.SaveJob(ctx, job)
		}}
	}

	cfg := RouterConfig{
		Reconcile:      NewReconcileHandler(rec, env.uploadDir, env.resultDir, maxUpload, zerolog.Nop()),
		Jobs:           NewJobsHandler(env.store, pub, env.uploadDir, env.resultDir, maxUpload, zerolog.Nop()),
		AllowedOrigins: []string{"*"},
		Log:            zerolog.Nop(),
	}
	if runs != nil {
		cfg.Runs = NewRunsHandler(runs, zerolog.Nop())
	}
	env.router = NewRouter(cfg)
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// uploadRequest builds a multipart request; empty contents omit the part.
func uploadRequest(t *testing.T, path, roster, statement string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if roster != "" {
		fw, err := mw.CreateFormFile(RosterField, "mieter.xlsx")
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(fw, roster)
	}
	if statement != "" {
		fw, err := mw.CreateFormFile(StatementField, "konto.csv")
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(fw, statement)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
}

func okReconciler(t *testing.T, resultName string) *mockReconciler {
	return &mockReconciler{runFunc: func(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
		roster, err := os.ReadFile(req.RosterPath)
		if err != nil {
			t.Errorf("roster upload not saved: %v", err)
		}
		if string(roster) != "roster-bytes" {
			t.Errorf("roster content = %q", roster)
		}
		if !strings.HasSuffix(req.StatementPath, "-konto.csv") {
			t.Errorf("statement path = %q", req.StatementPath)
		}
		return &pipeline.Result{
			RunID:      "run-1",
			OutputPath: filepath.Join(req.OutputDir, resultName),
			Stats:      domain.RunStats{Transactions: 5, Written: 3, Duplicates: 0, NoMonth: 1},
		}, nil
	}}
}

func TestProcess_Success(t *testing.T) {
	for _, path := range []string{"/process", "/api/reconcile"} {
		t.Run(path, func(t *testing.T) {
			var gotDir string
			inner := okReconciler(t, "mieten_abgleich_20240305.xlsx")
			rec := &mockReconciler{runFunc: func(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
				gotDir = req.OutputDir
				return inner.Run(ctx, req)
			}}
			env := newTestEnv(t, rec, nil, nil, 0)

			resp := env.do(uploadRequest(t, path, "roster-bytes", "a;b"))
			if resp.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", resp.Code, resp.Body.String())
			}
			if gotDir != env.resultDir {
				t.Errorf("output dir = %q, want %q", gotDir, env.resultDir)
			}

			var body ProcessResponse
			decode(t, resp, &body)
			if body.Status != "ok" || body.Message != "reconciliation finished" {
				t.Errorf("body = %+v", body)
			}
			if body.Download != "/results/mieten_abgleich_20240305.xlsx" {
				t.Errorf("download = %q", body.Download)
			}
			if body.Stats.Written != 3 || body.Stats.NoMonth != 1 {
				t.Errorf("stats = %+v", body.Stats)
			}
		})
	}
}

func TestProcess_MissingUploads(t *testing.T) {
	rec := &mockReconciler{runFunc: func(context.Context, pipeline.Request) (*pipeline.Result, error) {
		t.Error("reconciler called without uploads")
		return nil, nil
	}}
	env := newTestEnv(t, rec, nil, nil, 0)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"no statement", uploadRequest(t, "/process", "roster-bytes", "")},
		{"no roster", uploadRequest(t, "/process", "", "a;b")},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/process", strings.NewReader("{}"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(tt.req)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.Code)
			}
			var body map[string]string
			decode(t, resp, &body)
			if body["status"] != "error" || body["message"] != "roster and statement uploads are required" {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestProcess_TooLarge(t *testing.T) {
	rec := &mockReconciler{runFunc: func(context.Context, pipeline.Request) (*pipeline.Result, error) {
		t.Error("reconciler called for oversized upload")
		return nil, nil
	}}
	env := newTestEnv(t, rec, nil, nil, 64)

	resp := env.do(uploadRequest(t, "/process", strings.Repeat("x", 1024), "a;b"))
	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", resp.Code)
	}
}

func TestProcess_ErrorMapping(t *testing.T) {
	missing := &workbook.MissingColumnsError{Columns: []string{"Betrag", "Wertstellung"}}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "missing columns",
			err:        fmt.Errorf("pipeline step 2 (read_statement) failed: %w", missing),
			wantStatus: http.StatusBadRequest,
			wantMsg:    "statement is missing required columns: Betrag, Wertstellung",
		},
		{
			name:       "statement unreadable",
			err:        fmt.Errorf("step: %w: %w", pipeline.ErrStatementUnreadable, workbook.ErrUnsupportedFormat),
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "roster unreadable",
			err:        fmt.Errorf("step: %w: zip: not a valid zip file", pipeline.ErrRosterUnreadable),
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:       "internal",
			err:        errors.New("disk full"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "reconciliation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &mockReconciler{runFunc: func(context.Context, pipeline.Request) (*pipeline.Result, error) {
				return nil, tt.err
			}}
			env := newTestEnv(t, rec, nil, nil, 0)

			resp := env.do(uploadRequest(t, "/process", "roster-bytes", "a;b"))
			if resp.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.Code, tt.wantStatus)
			}
			var body map[string]string
			decode(t, resp, &body)
			if body["status"] != "error" {
				t.Errorf("body = %v", body)
			}
			if tt.wantMsg != "" && body["message"] != tt.wantMsg {
				t.Errorf("message = %q, want %q", body["message"], tt.wantMsg)
			}
		})
	}
}

func TestDownload(t *testing.T) {
	env := newTestEnv(t, okReconciler(t, "x.xlsx"), nil, nil, 0)
	if err := os.WriteFile(filepath.Join(env.resultDir, "mieten_abgleich_20240305.xlsx"), []byte("PK-data"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("existing", func(t *testing.T) {
		resp := env.do(httptest.NewRequest(http.MethodGet, "/results/mieten_abgleich_20240305.xlsx", nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("status = %d", resp.Code)
		}
		if ct := resp.Header().Get("Content-Type"); ct != storage.XLSXContentType {
			t.Errorf("content type = %q", ct)
		}
		if cd := resp.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") || !strings.Contains(cd, "mieten_abgleich_20240305.xlsx") {
			t.Errorf("content disposition = %q", cd)
		}
		if resp.Body.String() != "PK-data" {
			t.Errorf("body = %q", resp.Body.String())
		}
	})

	t.Run("missing", func(t *testing.T) {
		resp := env.do(httptest.NewRequest(http.MethodGet, "/results/other.xlsx", nil))
		if resp.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.Code)
		}
		if ct := resp.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
	})

	t.Run("separator", func(t *testing.T) {
		resp := env.do(httptest.NewRequest(http.MethodGet, `/results/..%5Csecret.xlsx`, nil))
		if resp.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.Code)
		}
	})
}

func TestHealthAndIndex(t *testing.T) {
	env := newTestEnv(t, okReconciler(t, "x.xlsx"), nil, nil, 0)

	resp := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("health status = %d", resp.Code)
	}
	if got := strings.TrimSpace(resp.Body.String()); got != `{"ok":true,"service":"mieten-abgleich"}` {
		t.Errorf("health body = %s", got)
	}

	resp = env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	var index struct {
		Service   string   `json:"service"`
		Endpoints []string `json:"endpoints"`
	}
	decode(t, resp, &index)
	if index.Service != ServiceName || len(index.Endpoints) == 0 {
		t.Errorf("index = %+v", index)
	}
	for _, e := range index.Endpoints {
		if e == "GET /api/runs" {
			t.Error("runs endpoint listed without tracking")
		}
	}

	resp = env.do(httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	if resp.Code != http.StatusNotFound {
		t.Errorf("runs status without tracking = %d, want 404", resp.Code)
	}
}

func TestJobs(t *testing.T) {
	env := newTestEnv(t, okReconciler(t, "x.xlsx"), nil, nil, 0)

	resp := env.do(uploadRequest(t, "/api/jobs", "roster-bytes", "a;b"))
	if resp.Code != http.StatusAccepted {
		t.Fatalf("enqueue status = %d, body = %s", resp.Code, resp.Body.String())
	}
	var accepted map[string]string
	decode(t, resp, &accepted)
	jobID := accepted["job_id"]
	if jobID == "" || accepted["status"] != string(jobs.JobStatusPending) {
		t.Fatalf("accepted = %v", accepted)
	}

	stored, err := env.store.GetJob(context.Background(), jobID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.OutputDir != filepath.Join(env.resultDir, jobID) {
		t.Errorf("output dir = %q", stored.OutputDir)
	}
	if stored.RosterName != "mieter.xlsx" || stored.StatementName != "konto.csv" {
		t.Errorf("names = %q/%q", stored.RosterName, stored.StatementName)
	}

	t.Run("get", func(t *testing.T) {
		resp := env.do(httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("status = %d", resp.Code)
		}
		var job map[string]any
		decode(t, resp, &job)
		if job["job_id"] != jobID {
			t.Errorf("job = %v", job)
		}
		if _, leaked := job["RosterPath"]; leaked {
			t.Error("server path leaked in job JSON")
		}
	})

	t.Run("unknown", func(t *testing.T) {
		resp := env.do(httptest.NewRequest(http.MethodGet, "/api/jobs/nope", nil))
		if resp.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.Code)
		}
	})

	t.Run("list", func(t *testing.T) {
		resp := env.do(httptest.NewRequest(http.MethodGet, "/api/jobs?status=pending&limit=10", nil))
		var body struct {
			Jobs  []map[string]any `json:"jobs"`
			Count int              `json:"count"`
		}
		decode(t, resp, &body)
		if body.Count != 1 || len(body.Jobs) != 1 {
			t.Errorf("list = %+v", body)
		}
	})

	t.Run("result before completion", func(t *testing.T) {
		resp := env.do(httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID+"/result", nil))
		if resp.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", resp.Code)
		}
	})

	t.Run("result after completion", func(t *testing.T) {
		out := filepath.Join(stored.OutputDir, "mieten_abgleich_20240305.xlsx")
		if err := os.MkdirAll(stored.OutputDir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(out, []byte("PK"), 0o644); err != nil {
			t.Fatal(err)
		}
		stored.Status = jobs.JobStatusCompleted
		stored.Result = &jobs.JobResult{OutputPath: out, Download: JobResultPath(jobID)}
		if err := env.store.SaveJob(context.Background(), stored); err != nil {
			t.Fatal(err)
		}

		resp := env.do(httptest.NewRequest(http.MethodGet, "/api/jobs/"+jobID+"/result", nil))
		if resp.Code != http.StatusOK || resp.Body.String() != "PK" {
			t.Errorf("status = %d, body = %q", resp.Code, resp.Body.String())
		}
	})
}

func TestEnqueueJob_PublishError(t *testing.T) {
	pub := &mockPublisher{publishFunc: func(context.Context, *jobs.ReconcileJob) error {
		return errors.New("queue is closed")
	}}
	env := newTestEnv(t, okReconciler(t, "x.xlsx"), pub, nil, 0)

	resp := env.do(uploadRequest(t, "/api/jobs", "roster-bytes", "a;b"))
	if resp.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.Code)
	}
}

func TestJobProcessor(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		proc := NewJobProcessor(okReconciler(t, "mieten_abgleich_20240305.xlsx"), zerolog.Nop())
		dir := t.TempDir()
		rosterPath := filepath.Join(dir, "r.xlsx")
		if err := os.WriteFile(rosterPath, []byte("roster-bytes"), 0o644); err != nil {
			t.Fatal(err)
		}
		job := &jobs.ReconcileJob{
			JobID:         "job-1",
			RosterPath:    rosterPath,
			StatementPath: filepath.Join(dir, "abc-konto.csv"),
			OutputDir:     filepath.Join(dir, "job-1"),
		}
		if err := proc(context.Background(), job); err != nil {
			t.Fatalf("processor error = %v", err)
		}
		if job.Result == nil {
			t.Fatal("result not set")
		}
		if job.Result.Download != "/api/jobs/job-1/result" || job.Result.RunID != "run-1" {
			t.Errorf("result = %+v", job.Result)
		}
		if job.Result.OutputPath != filepath.Join(dir, "job-1", "mieten_abgleich_20240305.xlsx") {
			t.Errorf("output = %q", job.Result.OutputPath)
		}
	})

	t.Run("failure", func(t *testing.T) {
		want := fmt.Errorf("wrapped: %w", pipeline.ErrStatementUnreadable)
		rec := &mockReconciler{runFunc: func(context.Context, pipeline.Request) (*pipeline.Result, error) {
			return nil, want
		}}
		job := &jobs.ReconcileJob{JobID: "job-2"}
		err := NewJobProcessor(rec, zerolog.Nop())(context.Background(), job)
		if !errors.Is(err, pipeline.ErrStatementUnreadable) {
			t.Errorf("error = %v", err)
		}
		if job.Result != nil {
			t.Error("result set for failed job")
		}
	})
}

func TestListRuns(t *testing.T) {
	var gotLimit int
	lister := &mockRunLister{recentFunc: func(_ context.Context, limit int) ([]*bigquery.RunRow, error) {
		gotLimit = limit
		return []*bigquery.RunRow{{RunID: "run-1", Status: bigquery.StatusSuccess}}, nil
	}}
	env := newTestEnv(t, okReconciler(t, "x.xlsx"), nil, lister, 0)

	resp := env.do(httptest.NewRequest(http.MethodGet, "/api/runs?limit=5", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if gotLimit != 5 {
		t.Errorf("limit = %d, want 5", gotLimit)
	}
	var body struct {
		Count int `json:"count"`
	}
	decode(t, resp, &body)
	if body.Count != 1 {
		t.Errorf("count = %d", body.Count)
	}

	failing := &mockRunLister{recentFunc: func(context.Context, int) ([]*bigquery.RunRow, error) {
		return nil, errors.New("bq down")
	}}
	env = newTestEnv(t, okReconciler(t, "x.xlsx"), nil, failing, 0)
	resp = env.do(httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.Code)
	}
}
