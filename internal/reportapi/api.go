package reportapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/kawacukennedy/civicsense/internal/notify/authority"
	"github.com/kawacukennedy/civicsense/internal/report"
)

// ReportService defines the business operations reportapi needs.
type ReportService interface {
	Submit(ctx context.Context, in report.IngestInput) (*report.Report, error)
	Get(ctx context.Context, id string) (*report.Report, bool, error)
	List(ctx context.Context, f report.Filter) ([]*report.Report, error)
	Activities(ctx context.Context, reportID string) ([]*report.Activity, error)
	Apply(ctx context.Context, id string, action report.Action, actor report.Actor, in report.ActionInput) (*report.Report, error)
	RetryVerification(ctx context.Context, id string) (*report.Report, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger   log.Logger
	svc      ReportService
	composer *authority.Composer
	metrics  *report.Metrics
	validate *validator.Validate
}

// New creates a new API handler. metrics may be nil.
func New(logger log.Logger, svc ReportService, composer *authority.Composer, metrics *report.Metrics) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("report service is required"))
	}
	if composer == nil {
		composer = authority.New()
	}
	return &API{
		logger:   logger,
		svc:      svc,
		composer: composer,
		metrics:  metrics,
		validate: validator.New(),
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/reports", a.handleIngestReport)
		r.Get("/reports", a.handleListReports)
		r.Get("/reports/{id}", a.handleGetReport)
		r.Get("/reports/{id}/activities", a.handleListActivities)
		r.Get("/reports/{id}/message", a.handleComposeMessage)
		r.Post("/reports/{id}/claim", a.handleAction(report.ActionClaim))
		r.Post("/reports/{id}/resolve", a.handleAction(report.ActionResolve))
		r.Post("/reports/{id}/confirm", a.handleAction(report.ActionConfirm))
		r.Post("/reports/{id}/verify", a.handleRetryVerification)
	})
}

func (a *API) handleGetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("civicsense.report.id", id))

	rep, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to get report", "id", id)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}

	span.SetAttributes(attribute.String("civicsense.report.status", string(rep.Status)))

	writeJSON(w, http.StatusOK, rep)
}

func (a *API) handleListActivities(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	acts, err := a.svc.Activities(r.Context(), id)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}
	if acts == nil {
		acts = []*report.Activity{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": acts})
}

// handleRetryVerification re-runs verification for a report stuck in
// created after an oracle outage. Safe to call repeatedly.
func (a *API) handleRetryVerification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("civicsense.report.id", id))

	rep, err := a.svc.RetryVerification(r.Context(), id)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

// writeError maps the domain error taxonomy to status codes.
func (a *API) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, report.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, report.ErrNotFound):
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	case errors.Is(err, report.ErrPreconditionFailed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, report.ErrUnsupportedChannel):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, report.ErrOracleUnavailable):
		http.Error(w, `{"error":"verification temporarily unavailable"}`, http.StatusServiceUnavailable)
	default:
		a.logger.Error(ctx, err, "request failed")
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
