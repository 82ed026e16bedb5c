package report

import "time"

// Status tracks where a report is in its lifecycle.
type Status string

const (
	// StatusCreated means submitted, not yet verified
	StatusCreated Status = "created"

	// StatusVerified means the verification oracle has scored the report
	StatusVerified Status = "verified"

	// StatusInProgress means a resolver has claimed the report
	StatusInProgress Status = "in_progress"

	// StatusResolved means the assigned resolver closed the report
	StatusResolved Status = "resolved"

	// StatusDuplicate means the report describes an already-open issue
	StatusDuplicate Status = "duplicate"
)

// PriorityLevel is the qualitative band derived from the priority score.
type PriorityLevel string

const (
	PriorityLow    PriorityLevel = "low"
	PriorityMedium PriorityLevel = "medium"
	PriorityHigh   PriorityLevel = "high"
)

// Action is a lifecycle event an actor can apply to a report.
type Action string

const (
	ActionClaim   Action = "claim"
	ActionResolve Action = "resolve"
	ActionConfirm Action = "confirm"
)

// Role is an actor capability supplied by the identity collaborator.
type Role string

const (
	RoleCitizen  Role = "citizen"
	RoleResolver Role = "resolver"
	RoleAdmin    Role = "admin"
)

// Actor is the identity applying a lifecycle action. The core never
// validates credentials; it trusts the identity layer upstream.
type Actor struct {
	ID   string
	Role Role
}

// CanResolve reports whether the actor may claim and resolve reports.
func (a Actor) CanResolve() bool {
	return a.Role == RoleResolver || a.Role == RoleAdmin
}

// Report is a single citizen-submitted issue tracked through its lifecycle.
//
// RawLat/RawLng are the exact coordinates as submitted and are never
// serialized; Lat/Lng carry the privacy-rounded public coordinate.
type Report struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	RawLat      float64  `json:"-"`
	RawLng      float64  `json:"-"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	AccuracyM   float64  `json:"accuracy_m,omitempty"`
	Anonymous   bool     `json:"anonymous"`
	MediaRefs   []string `json:"media_refs,omitempty"`

	VerificationScore  float64  `json:"verification_score"`
	VerificationLabels []string `json:"verification_labels,omitempty"`
	Corroborations     int      `json:"corroborations"`

	PriorityScore int           `json:"priority_score"`
	PriorityLevel PriorityLevel `json:"priority_level"`

	IsDuplicate bool   `json:"is_duplicate"`
	DuplicateOf string `json:"duplicate_of,omitempty"`

	Status     Status `json:"status"`
	ReporterID string `json:"reporter_id,omitempty"`
	AssignedTo string `json:"assigned_to,omitempty"`

	// Version is bumped by every committed transition; the store uses it
	// to serialize concurrent mutation of the same report.
	Version int64 `json:"-"`

	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ResolvedAt time.Time `json:"resolved_at,omitzero"`
}

// Open reports whether the report is still an active triage candidate.
func (r *Report) Open() bool {
	return !r.IsDuplicate && r.Status != StatusResolved && r.Status != StatusDuplicate
}

// Activity is one immutable audit entry for one lifecycle action.
// Appended atomically with the transition it records, never mutated.
type Activity struct {
	ID        string            `json:"id"`
	ReportID  string            `json:"report_id"`
	ActorID   string            `json:"actor_id,omitempty"`
	Action    string            `json:"action"`
	Details   map[string]string `json:"details,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
