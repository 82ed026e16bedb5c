package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"
)

const (
	MaxTitleLen       = 140
	MaxDescriptionLen = 2000

	// initialPriorityScore is the neutral score a report carries before
	// verification produces a real one.
	initialPriorityScore = 50

	// duplicateScanLimit bounds how many open reports one duplicate check
	// will compare against.
	duplicateScanLimit = 500
)

// IngestInput is a raw report submission.
type IngestInput struct {
	Title       string
	Description string
	Lat         float64
	Lng         float64
	AccuracyM   float64
	Anonymous   bool
	ReporterID  string
	MediaRefs   []string
}

// ActionInput carries the optional payload of a lifecycle action.
type ActionInput struct {
	Notes string
}

// Engine orchestrates the triage core: location privacy, the
// verification oracle, duplicate detection, priority scoring, and the
// lifecycle state machine, over the storage collaborator.
type Engine struct {
	store    Store
	oracle   Oracle
	scorer   *Scorer
	detector *Detector
	logger   log.Logger

	publicPrecision   int
	corroborationBump float64
}

// EngineConfig holds the engine's policy knobs.
type EngineConfig struct {
	PublicPrecision   int     // decimal places of the public coordinate
	CorroborationBump float64 // verification score increase per confirmation
}

// DefaultEngineConfig returns the production defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		PublicPrecision:   DefaultPublicPrecision,
		CorroborationBump: 0.05,
	}
}

// NewEngine creates a triage engine with the given dependencies. oracle
// may be nil, in which case verification never completes and reports
// stay in created until one is wired.
func NewEngine(store Store, oracle Oracle, scorer *Scorer, detector *Detector, cfg EngineConfig, logger log.Logger) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		store:             store,
		oracle:            oracle,
		scorer:            scorer,
		detector:          detector,
		logger:            logger,
		publicPrecision:   cfg.PublicPrecision,
		corroborationBump: cfg.CorroborationBump,
	}
}

// Ingest validates a submission, applies the location privacy transform,
// and persists the report in created state together with its first
// activity record. Verification is a separate follow-up step so a
// failing oracle cannot fail ingestion.
func (e *Engine) Ingest(ctx context.Context, in IngestInput) (*Report, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if len(title) > MaxTitleLen {
		return nil, fmt.Errorf("%w: title exceeds %d characters", ErrInvalidInput, MaxTitleLen)
	}
	if len(in.Description) > MaxDescriptionLen {
		return nil, fmt.Errorf("%w: description exceeds %d characters", ErrInvalidInput, MaxDescriptionLen)
	}
	if err := ValidateCoordinate(in.Lat, in.Lng); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	pubLat, pubLng := PublicCoordinate(in.Lat, in.Lng, e.publicPrecision)

	r := &Report{
		ID:            ulid.Make().String(),
		Title:         title,
		Description:   in.Description,
		RawLat:        in.Lat,
		RawLng:        in.Lng,
		Lat:           pubLat,
		Lng:           pubLng,
		AccuracyM:     in.AccuracyM,
		Anonymous:     in.Anonymous,
		ReporterID:    in.ReporterID,
		MediaRefs:     in.MediaRefs,
		PriorityScore: initialPriorityScore,
		PriorityLevel: PriorityMedium,
		Status:        StatusCreated,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	a := newActivity(r.ID, in.ReporterID, "created", nil, now)
	if err := e.store.Create(ctx, r, &a); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	return r, nil
}

// CompleteVerification runs the oracle and duplicate detection for a
// report in created state and drives it to verified or duplicate through
// the guarded transitions. It is idempotent: a report that already left
// created is returned unchanged, and an oracle failure leaves the report
// in created, unscored, safe to retry.
func (e *Engine) CompleteVerification(ctx context.Context, id string) (*Report, error) {
	r, ok, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: report %s", ErrNotFound, id)
	}
	if r.Status != StatusCreated {
		return r, nil
	}

	score, labels, err := e.oracle.Infer(ctx, r.MediaRefs, r.Title+" "+r.Description)
	if err != nil {
		if errors.Is(err, ErrOracleUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, err)
	}

	now := time.Now().UTC()

	// Detection sees the candidate with its freshly inferred labels so
	// the content signal has something to compare.
	candidate := *r
	candidate.VerificationScore = score
	candidate.VerificationLabels = labels

	dupOf, err := e.findDuplicate(ctx, &candidate)
	if err != nil {
		return nil, err
	}

	var next Report
	var act Activity
	if dupOf != "" {
		next, act, err = MarkDuplicate(candidate, dupOf, e.scorer, now)
	} else {
		next, act, err = ApplyVerification(*r, score, labels, e.scorer, now)
	}
	if err != nil {
		return nil, err
	}

	if err := e.store.Commit(ctx, &next, &act); err != nil {
		return nil, fmt.Errorf("commit verification: %w", err)
	}
	return &next, nil
}

// Apply looks up the report, validates and applies one lifecycle action
// for the given actor, and commits the transition with its activity
// record. A losing concurrent transition surfaces as
// ErrPreconditionFailed from the commit.
func (e *Engine) Apply(ctx context.Context, id string, action Action, actor Actor, in ActionInput) (*Report, error) {
	r, ok, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: report %s", ErrNotFound, id)
	}

	now := time.Now().UTC()

	var next Report
	var act Activity
	switch action {
	case ActionClaim:
		next, act, err = Claim(*r, actor, in.Notes, now)
	case ActionResolve:
		next, act, err = Resolve(*r, actor, in.Notes, now)
	case ActionConfirm:
		next, act, err = Confirm(*r, actor, e.corroborationBump, e.scorer, now)
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, action)
	}
	if err != nil {
		return nil, err
	}

	if err := e.store.Commit(ctx, &next, &act); err != nil {
		return nil, fmt.Errorf("commit %s: %w", action, err)
	}
	return &next, nil
}

func (e *Engine) findDuplicate(ctx context.Context, candidate *Report) (string, error) {
	if e.detector == nil {
		return "", nil
	}
	open, err := e.store.Query(ctx, Filter{Limit: duplicateScanLimit})
	if err != nil {
		return "", fmt.Errorf("query open reports: %w", err)
	}
	return e.detector.FindDuplicate(candidate, open), nil
}
