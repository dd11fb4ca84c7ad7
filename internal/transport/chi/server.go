package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/flagdex/internal/domain"
	domentity "github.com/kailas-cloud/flagdex/internal/domain/entity"
	"github.com/kailas-cloud/flagdex/internal/domain/listing"
	flaguc "github.com/kailas-cloud/flagdex/internal/usecase/flag"
	healthuc "github.com/kailas-cloud/flagdex/internal/usecase/health"
	repairuc "github.com/kailas-cloud/flagdex/internal/usecase/repair"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the flag API on a chi router.
type Server struct {
	flags         *flaguc.Service
	repair        *repairuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	flags *flaguc.Service,
	repair *repairuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		flags:  flags,
		repair: repair,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotAuthenticated, http.StatusUnauthorized, ErrorResponseCodeNotAuthenticated),
		sentinelHandler(domain.ErrForbidden, http.StatusForbidden, ErrorResponseCodeForbidden),
		sentinelHandler(domain.ErrEntityNotFound, http.StatusNotFound, ErrorResponseCodeEntityNotFound),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorResponseCodeBadRequest),
		sentinelHandler(domain.ErrStoreUnavailable, http.StatusServiceUnavailable, ErrorResponseCodeStoreUnavailable),
	}
	return s
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorResponseCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorResponseCodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Use(ActorMiddleware)

		r.Route("/entities/{id}", func(r chi.Router) {
			r.Post("/flag", s.MarkFlag)
			r.Delete("/flag", s.UnmarkFlag)
			r.Put("/flag", s.SetFlag)
			r.Get("/flag", s.GetFlag)
			r.Post("/flag/toggle", s.ToggleFlag)

			r.Post("/delete", s.EntityDeleted)
			r.Post("/restore", s.EntityRestored)
			r.Post("/purge", s.EntityPurged)
		})

		r.Get("/flagged", s.ListFlagged)
		r.Get("/scopes/{scope}/flagged", s.ListScopeFlagged)

		r.Post("/admin/reindex", s.Reindex)
		r.Post("/admin/reindex/{id}", s.ReindexEntity)
	})
}

// MarkFlag handles POST /v1/entities/{id}/flag.
func (s *Server) MarkFlag(w http.ResponseWriter, r *http.Request) {
	out, err := s.flags.Set(r.Context(), chi.URLParam(r, "id"), true, ActorFromContext(r.Context()))
	s.writeOutcome(w, out, err)
}

// UnmarkFlag handles DELETE /v1/entities/{id}/flag.
func (s *Server) UnmarkFlag(w http.ResponseWriter, r *http.Request) {
	out, err := s.flags.Set(r.Context(), chi.URLParam(r, "id"), false, ActorFromContext(r.Context()))
	s.writeOutcome(w, out, err)
}

// SetFlag handles PUT /v1/entities/{id}/flag.
func (s *Server) SetFlag(w http.ResponseWriter, r *http.Request) {
	var req SetFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	out, err := s.flags.Set(r.Context(), chi.URLParam(r, "id"), req.Desired(), ActorFromContext(r.Context()))
	s.writeOutcome(w, out, err)
}

// ToggleFlag handles POST /v1/entities/{id}/flag/toggle.
func (s *Server) ToggleFlag(w http.ResponseWriter, r *http.Request) {
	out, err := s.flags.Toggle(r.Context(), chi.URLParam(r, "id"), ActorFromContext(r.Context()))
	s.writeOutcome(w, out, err)
}

// GetFlag handles GET /v1/entities/{id}/flag.
func (s *Server) GetFlag(w http.ResponseWriter, r *http.Request) {
	out, err := s.flags.Status(r.Context(), chi.URLParam(r, "id"))
	s.writeOutcome(w, out, err)
}

// EntityDeleted handles POST /v1/entities/{id}/delete.
func (s *Server) EntityDeleted(w http.ResponseWriter, r *http.Request) {
	out, err := s.flags.Delete(r.Context(), chi.URLParam(r, "id"))
	s.writeOutcome(w, out, err)
}

// EntityRestored handles POST /v1/entities/{id}/restore.
func (s *Server) EntityRestored(w http.ResponseWriter, r *http.Request) {
	out, err := s.flags.Restore(r.Context(), chi.URLParam(r, "id"))
	s.writeOutcome(w, out, err)
}

// EntityPurged handles POST /v1/entities/{id}/purge.
func (s *Server) EntityPurged(w http.ResponseWriter, r *http.Request) {
	out, err := s.flags.Purge(r.Context(), chi.URLParam(r, "id"))
	s.writeOutcome(w, out, err)
}

// ListFlagged handles GET /v1/flagged.
func (s *Server) ListFlagged(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, "")
}

// ListScopeFlagged handles GET /v1/scopes/{scope}/flagged.
func (s *Server) ListScopeFlagged(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, chi.URLParam(r, "scope"))
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, scope string) {
	q, err := queryFromRequest(r, scope)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	page, err := s.flags.List(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]FlaggedItem, len(page.Items))
	for i, it := range page.Items {
		items[i] = FlaggedItem{EntityID: it.EntityID, FlaggedAt: it.FlaggedAt.UTC()}
	}
	resp := FlaggedListResponse{
		Items:   items,
		HasMore: page.NextCursor != "",
		Total:   page.Total,
	}
	if page.NextCursor != "" {
		resp.NextCursor = &page.NextCursor
	}
	writeJSON(w, http.StatusOK, resp)
}

// Reindex handles POST /v1/admin/reindex.
func (s *Server) Reindex(w http.ResponseWriter, r *http.Request) {
	report, err := s.repair.Run(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReindexResponse{
		Scanned: report.Scanned,
		Fixed:   report.Fixed,
		Failed:  report.Failed,
		Stale:   report.Stale,
	})
}

// ReindexEntity handles POST /v1/admin/reindex/{id}.
func (s *Server) ReindexEntity(w http.ResponseWriter, r *http.Request) {
	rep, err := s.repair.Reconcile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	fixed := rep.Fixed
	if fixed == nil {
		fixed = []string{}
	}
	writeJSON(w, http.StatusOK, ReconcileResponse{EntityID: rep.EntityID, Vanished: rep.Vanished, Fixed: fixed})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) writeOutcome(w http.ResponseWriter, out domentity.Outcome, err error) {
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FlagResponse{
		EntityID: out.EntityID,
		ParentID: out.ParentID,
		Flagged:  out.Flagged,
		Changed:  out.Changed,
	})
}

func queryFromRequest(r *http.Request, scope string) (listing.Query, error) {
	params := r.URL.Query()

	order, err := listing.ParseOrder(params.Get("order"))
	if err != nil {
		return listing.Query{}, err
	}

	q := listing.Query{Scope: scope, Cursor: params.Get("cursor"), Order: order}
	if raw := params.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return listing.Query{}, domain.ErrInvalidRequest
		}
		q.Limit = limit
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotAuthenticated,
		domain.ErrForbidden,
		domain.ErrEntityNotFound,
		domain.ErrInvalidRequest,
		domain.ErrStoreUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		if status == http.StatusServiceUnavailable {
			w.Header().Set("Retry-After", "1")
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}
