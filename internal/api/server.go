// Package api exposes the pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/export"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/pipeline"
	"github.com/sells-group/prospect-cli/internal/quota"
	"github.com/sells-group/prospect-cli/internal/store"
	"github.com/sells-group/prospect-cli/internal/telemetry"
)

const maxBodyBytes = 1 << 20

// Runner starts and resumes pipeline runs and reports the request limits
// it enforces.
type Runner interface {
	Run(ctx context.Context, tenant string, req pipeline.Request) (*pipeline.Result, error)
	Resume(ctx context.Context, tenant, runID string) (*pipeline.Result, error)
	Limits() quota.Limits
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Server wires HTTP handlers for the pipeline API.
type Server struct {
	runner  Runner
	store   store.Store
	origins []string
}

// New constructs the API server.
func New(runner Runner, st store.Store, allowedOrigins []string) *Server {
	return &Server{runner: runner, store: st, origins: allowedOrigins}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Mount("/metrics", telemetry.Handler())
	r.Get("/v1/limits", s.handleLimits)

	r.Route("/v1/tenants/{tenant}", func(r chi.Router) {
		r.Post("/pipelines", s.handleRun)
		r.Get("/pipelines", s.handleListRuns)
		r.Get("/pipelines/{id}", s.handleGetRun)
		r.Post("/pipelines/{id}/resume", s.handleResume)
		r.Get("/leads", s.handleListLeads)
		r.Get("/leads/export.xlsx", s.handleExportLeads)
		r.Get("/leads/{id}", s.handleGetLead)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRun runs a pipeline synchronously. The run is detached from the
// request context: a client that stops waiting does not stop the run.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req pipeline.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := s.runner.Run(context.WithoutCancel(r.Context()), chi.URLParam(r, "tenant"), req)
	s.writeResult(w, res, err)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	res, err := s.runner.Resume(context.WithoutCancel(r.Context()), chi.URLParam(r, "tenant"), chi.URLParam(r, "id"))
	s.writeResult(w, res, err)
}

type resultError struct {
	Error string `json:"error"`
	*pipeline.Result
}

func (s *Server) writeResult(w http.ResponseWriter, res *pipeline.Result, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, pipeline.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, quota.ErrQuotaExceeded):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "run not found")
	case errors.Is(err, pipeline.ErrNotResumable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, pipeline.ErrSearchFailed):
		writeJSON(w, http.StatusBadGateway, resultError{Error: err.Error(), Result: res})
	default:
		zap.L().Error("api: pipeline run failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, resultError{Error: err.Error(), Result: res})
	}
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) || (err == nil && run.TenantID != chi.URLParam(r, "tenant")) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := paging(w, r)
	if !ok {
		return
	}
	runs, err := s.store.ListRuns(r.Context(), store.RunFilter{
		TenantID: chi.URLParam(r, "tenant"),
		Status:   model.RunStatus(r.URL.Query().Get("status")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		s.internalError(w, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleLimits(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Limits())
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	leads, ok := s.listLeads(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leads": leads})
}

// handleExportLeads serves the same page as handleListLeads as a workbook.
func (s *Server) handleExportLeads(w http.ResponseWriter, r *http.Request) {
	leads, ok := s.listLeads(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="leads.xlsx"`)
	if err := export.WriteXLSX(w, leads); err != nil {
		zap.L().Error("api: write xlsx", zap.Error(err))
	}
}

func (s *Server) handleGetLead(w http.ResponseWriter, r *http.Request) {
	lead, err := s.store.GetLead(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) || (err == nil && lead.TenantID != chi.URLParam(r, "tenant")) {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// listLeads reads one page of the tenant's leads ranked by final score.
func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) ([]model.Lead, bool) {
	limit, offset, ok := paging(w, r)
	if !ok {
		return nil, false
	}
	var classes []model.Classification
	for _, c := range r.URL.Query()["classification"] {
		classes = append(classes, model.ParseClassification(c))
	}
	leads, err := s.store.ListLeads(r.Context(), store.LeadFilter{
		TenantID:        chi.URLParam(r, "tenant"),
		Classifications: classes,
		ByFinalScore:    true,
		Limit:           limit,
		Offset:          offset,
	})
	if err != nil {
		s.internalError(w, err)
		return nil, false
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	return leads, true
}

func paging(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &limit}, {"offset", &offset}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, p.name+" must be a non-negative integer")
			return 0, 0, false
		}
		*p.dst = n
	}
	return limit, offset, true
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	zap.L().Error("api: request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
