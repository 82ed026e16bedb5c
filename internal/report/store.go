package report

import "context"

// Filter narrows a report listing. Bounding box coordinates apply to the
// public (rounded) coordinate, never the raw one.
type Filter struct {
	MinLat, MinLng float64
	MaxLat, MaxLng float64
	HasBBox        bool

	Status      Status
	MinPriority int

	Limit  int
	Offset int
}

// Store is the persistence interface for reports. Create and Commit
// persist the report and its activity record atomically: a transition is
// never observable with the report committed but the log entry missing,
// or vice versa.
//
// Commit checks the report's Version against the stored row and bumps it
// on success; a mismatch means a concurrent transition won and surfaces
// as ErrPreconditionFailed. Reports are independent units of
// concurrency, so no cross-report coordination is needed.
type Store interface {
	Create(ctx context.Context, r *Report, a *Activity) error
	Get(ctx context.Context, id string) (*Report, bool, error)
	Query(ctx context.Context, f Filter) ([]*Report, error)
	Commit(ctx context.Context, r *Report, a *Activity) error
	Activities(ctx context.Context, reportID string) ([]*Activity, error)
}
