package report

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Lifecycle transitions are pure: each takes a report value and returns
// the transitioned value plus the activity record describing it, leaving
// the input untouched. Persistence of both together is the store's job,
// which is what makes the commit-report-and-log-atomically requirement
// enforceable. A guard failure returns ErrPreconditionFailed and the
// zero values; nothing is logged for a rejected transition.

// ApplyVerification moves a created report to verified with the oracle's
// score and labels, recomputing priority. Retrying verification on a
// report that already left created fails the guard, which is what makes
// oracle retries idempotent.
func ApplyVerification(r Report, score float64, labels []string, scorer *Scorer, now time.Time) (Report, Activity, error) {
	if r.Status != StatusCreated {
		return Report{}, Activity{}, fmt.Errorf("%w: cannot verify report in status %q", ErrPreconditionFailed, r.Status)
	}

	ps, level, err := scorer.Score(score, labels, false, nil)
	if err != nil {
		return Report{}, Activity{}, err
	}

	r.Status = StatusVerified
	r.VerificationScore = score
	r.VerificationLabels = labels
	r.PriorityScore = ps
	r.PriorityLevel = level
	r.UpdatedAt = now

	return r, newActivity(r.ID, "", "verified", map[string]string{
		"score": fmt.Sprintf("%.2f", score),
	}, now), nil
}

// MarkDuplicate moves a created or verified report to the duplicate
// terminal state, linking it to the report it duplicates and forcing
// priority into the low band. The original stays actionable.
func MarkDuplicate(r Report, duplicateOf string, scorer *Scorer, now time.Time) (Report, Activity, error) {
	if r.Status != StatusCreated && r.Status != StatusVerified {
		return Report{}, Activity{}, fmt.Errorf("%w: cannot mark duplicate in status %q", ErrPreconditionFailed, r.Status)
	}
	if duplicateOf == "" || duplicateOf == r.ID {
		return Report{}, Activity{}, fmt.Errorf("%w: duplicate_of must reference a different report", ErrInvalidInput)
	}

	ps, level, err := scorer.Score(r.VerificationScore, r.VerificationLabels, true, nil)
	if err != nil {
		return Report{}, Activity{}, err
	}

	r.Status = StatusDuplicate
	r.IsDuplicate = true
	r.DuplicateOf = duplicateOf
	r.PriorityScore = ps
	r.PriorityLevel = level
	r.UpdatedAt = now

	return r, newActivity(r.ID, "", "duplicate", map[string]string{
		"duplicate_of": duplicateOf,
	}, now), nil
}

// Claim assigns a verified, unassigned report to an actor with resolver
// capability.
func Claim(r Report, actor Actor, notes string, now time.Time) (Report, Activity, error) {
	if !actor.CanResolve() {
		return Report{}, Activity{}, fmt.Errorf("%w: actor %q lacks resolver capability", ErrPreconditionFailed, actor.ID)
	}
	if r.Status != StatusVerified {
		return Report{}, Activity{}, fmt.Errorf("%w: cannot claim report in status %q", ErrPreconditionFailed, r.Status)
	}
	if r.AssignedTo != "" {
		return Report{}, Activity{}, fmt.Errorf("%w: report already assigned", ErrPreconditionFailed)
	}

	r.Status = StatusInProgress
	r.AssignedTo = actor.ID
	r.UpdatedAt = now

	details := map[string]string{}
	if notes != "" {
		details["notes"] = notes
	}
	return r, newActivity(r.ID, actor.ID, "claimed", details, now), nil
}

// Resolve closes an in-progress report. Only the current assignee may
// resolve; ResolvedAt is set exactly once, here.
func Resolve(r Report, actor Actor, notes string, now time.Time) (Report, Activity, error) {
	if r.Status != StatusInProgress {
		return Report{}, Activity{}, fmt.Errorf("%w: cannot resolve report in status %q", ErrPreconditionFailed, r.Status)
	}
	if r.AssignedTo != actor.ID {
		return Report{}, Activity{}, fmt.Errorf("%w: report assigned to another resolver", ErrPreconditionFailed)
	}

	r.Status = StatusResolved
	r.ResolvedAt = now
	r.UpdatedAt = now

	details := map[string]string{}
	if notes != "" {
		details["resolution_notes"] = notes
	}
	return r, newActivity(r.ID, actor.ID, "resolved", details, now), nil
}

// Confirm records a corroboration by a citizen other than the original
// reporter. Status is unchanged; the verification score is adjusted
// upward by bump (capped at 1) and priority is recomputed.
func Confirm(r Report, actor Actor, bump float64, scorer *Scorer, now time.Time) (Report, Activity, error) {
	if r.Status != StatusVerified && r.Status != StatusInProgress {
		return Report{}, Activity{}, fmt.Errorf("%w: cannot confirm report in status %q", ErrPreconditionFailed, r.Status)
	}
	if actor.ID == "" || actor.ID == r.ReporterID {
		return Report{}, Activity{}, fmt.Errorf("%w: confirmation requires a distinct citizen", ErrPreconditionFailed)
	}

	score := r.VerificationScore + bump
	if score > 1 {
		score = 1
	}

	ps, level, err := scorer.Score(score, r.VerificationLabels, false, nil)
	if err != nil {
		return Report{}, Activity{}, err
	}

	r.VerificationScore = score
	r.Corroborations++
	r.PriorityScore = ps
	r.PriorityLevel = level
	r.UpdatedAt = now

	return r, newActivity(r.ID, actor.ID, "confirmed", map[string]string{
		"corroborations": fmt.Sprintf("%d", r.Corroborations),
	}, now), nil
}

func newActivity(reportID, actorID, action string, details map[string]string, now time.Time) Activity {
	if len(details) == 0 {
		details = nil
	}
	return Activity{
		ID:        ulid.Make().String(),
		ReportID:  reportID,
		ActorID:   actorID,
		Action:    action,
		Details:   details,
		CreatedAt: now,
	}
}
