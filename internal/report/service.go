package report

import (
	"context"
	"errors"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// Service is the business boundary for report triage operations.
type Service struct {
	store   Store
	engine  *Engine
	logger  log.Logger
	metrics *Metrics

	// syncVerify makes Submit run verification inline instead of
	// dispatching it. Used by tests and batch tooling.
	syncVerify bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSyncVerification makes Submit complete verification before
// returning instead of dispatching it asynchronously.
func WithSyncVerification() ServiceOption {
	return func(s *Service) { s.syncVerify = true }
}

// NewService creates a new report service. metrics may be nil.
func NewService(store Store, engine *Engine, logger log.Logger, metrics *Metrics, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	s := &Service{
		store:   store,
		engine:  engine,
		logger:  logger,
		metrics: metrics,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submit ingests a raw report and dispatches verification. The report is
// returned in created state immediately; scoring and the
// created->verified (or ->duplicate) transition follow through the same
// guarded path as any other action.
func (s *Service) Submit(ctx context.Context, in IngestInput) (*Report, error) {
	r, err := s.engine.Ingest(ctx, in)
	if err != nil {
		s.observeIngest("rejected")
		return nil, err
	}
	s.observeIngest("accepted")

	s.logger.Info(ctx, "report ingested",
		"report_id", r.ID,
		"anonymous", r.Anonymous,
		"media_refs", len(r.MediaRefs),
	)

	if s.syncVerify {
		if _, err := s.runVerification(ctx, r.ID); err != nil {
			return nil, err
		}
		return s.getOrSelf(ctx, r)
	}

	// pass only the ID to avoid sharing the report pointer with the goroutine.
	go func(id string) {
		_, _ = s.runVerification(context.WithoutCancel(ctx), id)
	}(r.ID)

	return r, nil
}

// Get retrieves a report by ID.
func (s *Service) Get(ctx context.Context, id string) (*Report, bool, error) {
	return s.store.Get(ctx, id)
}

// List queries reports by filter, ordered by priority score descending
// then creation time descending.
func (s *Service) List(ctx context.Context, f Filter) ([]*Report, error) {
	return s.store.Query(ctx, f)
}

// Activities returns the audit log for a report, newest first.
func (s *Service) Activities(ctx context.Context, reportID string) ([]*Activity, error) {
	if _, ok, err := s.store.Get(ctx, reportID); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrNotFound
	}
	return s.store.Activities(ctx, reportID)
}

// Apply validates and applies one lifecycle action.
func (s *Service) Apply(ctx context.Context, id string, action Action, actor Actor, in ActionInput) (*Report, error) {
	r, err := s.engine.Apply(ctx, id, action, actor, in)
	s.observeTransition(string(action), err)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "lifecycle action applied",
		"report_id", r.ID,
		"action", string(action),
		"actor_id", actor.ID,
		"status", string(r.Status),
	)
	return r, nil
}

// RetryVerification re-runs verification for a report still in created
// state, e.g. after the oracle recovered.
func (s *Service) RetryVerification(ctx context.Context, id string) (*Report, error) {
	return s.runVerification(ctx, id)
}

func (s *Service) runVerification(ctx context.Context, id string) (*Report, error) {
	L := s.logger.With("report_id", id)
	start := time.Now()

	r, err := s.engine.CompleteVerification(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, ErrOracleUnavailable):
			s.observeVerification("oracle_unavailable", start)
			L.Warn(ctx, "verification deferred, oracle unavailable", "error", err.Error())
		case errors.Is(err, ErrPreconditionFailed):
			s.observeVerification("superseded", start)
		default:
			s.observeVerification("error", start)
			L.Error(ctx, err, "verification failed")
		}
		return nil, err
	}

	outcome := "verified"
	if r.IsDuplicate {
		outcome = "duplicate"
	}
	s.observeVerification(outcome, start)
	if s.metrics != nil {
		s.metrics.PriorityScore.Observe(float64(r.PriorityScore))
	}

	L.Info(ctx, "verification complete",
		"status", string(r.Status),
		"verification_score", r.VerificationScore,
		"priority_score", r.PriorityScore,
		"priority_level", string(r.PriorityLevel),
		"is_duplicate", r.IsDuplicate,
	)
	return r, nil
}

func (s *Service) getOrSelf(ctx context.Context, r *Report) (*Report, error) {
	fresh, ok, err := s.store.Get(ctx, r.ID)
	if err != nil || !ok {
		return r, nil //nolint:nilerr // the ingested value is still a valid answer
	}
	return fresh, nil
}

func (s *Service) observeIngest(result string) {
	if s.metrics != nil {
		s.metrics.IngestsTotal.WithLabelValues(result).Inc()
	}
}

func (s *Service) observeTransition(action string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case errors.Is(err, ErrPreconditionFailed):
		outcome = "precondition_failed"
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	s.metrics.TransitionsTotal.WithLabelValues(action, outcome).Inc()
}

func (s *Service) observeVerification(outcome string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.VerificationsTotal.WithLabelValues(outcome).Inc()
	s.metrics.VerificationDuration.Observe(time.Since(start).Seconds())
	if outcome == "duplicate" {
		s.metrics.DuplicatesTotal.Inc()
	}
}
