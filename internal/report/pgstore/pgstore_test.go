package pgstore_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kawacukennedy/civicsense/internal/postgres"
	"github.com/kawacukennedy/civicsense/internal/report"
	"github.com/kawacukennedy/civicsense/internal/report/pgstore"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("CIVICSENSE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CIVICSENSE_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("postgres.NewPool: %v", err)
	}
	t.Cleanup(pool.Close)
	s, err := pgstore.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	return s
}

func newTestReport() (*report.Report, *report.Activity) {
	now := time.Now().Truncate(time.Microsecond).UTC()
	id := ulid.Make().String()
	r := &report.Report{
		ID:                 id,
		Title:              "Streetlight out on Elm St",
		Description:        "Dark corner by the school",
		RawLat:             40.758896,
		RawLng:             -73.985130,
		Lat:                40.7589,
		Lng:                -73.9851,
		AccuracyM:          12,
		Anonymous:          true,
		MediaRefs:          []string{"media/abc123"},
		VerificationScore:  0,
		VerificationLabels: nil,
		PriorityScore:      50,
		PriorityLevel:      report.PriorityMedium,
		Status:             report.StatusCreated,
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	a := &report.Activity{
		ID:        ulid.Make().String(),
		ReportID:  id,
		Action:    "created",
		CreatedAt: now,
	}
	return r, a
}

func TestCreateAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	r, a := newTestReport()
	if err := s.Create(ctx, r, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, ok, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get returned ok=false, want true")
	}
	if got.Title != r.Title {
		t.Errorf("title = %q, want %q", got.Title, r.Title)
	}
	if got.RawLat != r.RawLat || got.Lat != r.Lat {
		t.Errorf("coordinates = (%v, %v), want (%v, %v)", got.RawLat, got.Lat, r.RawLat, r.Lat)
	}
	if got.Version != 1 {
		t.Errorf("version = %d, want 1", got.Version)
	}
	if len(got.MediaRefs) != 1 || got.MediaRefs[0] != "media/abc123" {
		t.Errorf("media refs = %v", got.MediaRefs)
	}
	if !got.CreatedAt.Equal(r.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, r.CreatedAt)
	}

	if _, ok, err := s.Get(ctx, "nonexistent"); err != nil || ok {
		t.Errorf("Get missing = %v, %v, want false, nil", ok, err)
	}
}

func TestCommitBumpsVersion(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	r, a := newTestReport()
	if err := s.Create(ctx, r, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	now := time.Now().Truncate(time.Microsecond).UTC()
	r.Status = report.StatusVerified
	r.VerificationScore = 0.8
	r.VerificationLabels = []string{"streetlight"}
	r.PriorityScore = 71
	r.PriorityLevel = report.PriorityHigh
	r.UpdatedAt = now
	act := &report.Activity{
		ID:        ulid.Make().String(),
		ReportID:  r.ID,
		Action:    "verified",
		Details:   map[string]string{"score": "0.80"},
		CreatedAt: now,
	}
	if err := s.Commit(ctx, r, act); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if r.Version != 2 {
		t.Errorf("version after commit = %d, want 2", r.Version)
	}

	got, _, err := s.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != report.StatusVerified || got.Version != 2 {
		t.Errorf("stored = %q v%d, want verified v2", got.Status, got.Version)
	}
	if len(got.VerificationLabels) != 1 || got.VerificationLabels[0] != "streetlight" {
		t.Errorf("labels = %v", got.VerificationLabels)
	}
}

func TestCommitConflicts(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	r, a := newTestReport()
	if err := s.Create(ctx, r, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	stale := *r // version 1

	now := time.Now().Truncate(time.Microsecond).UTC()
	r.Status = report.StatusVerified
	act := &report.Activity{ID: ulid.Make().String(), ReportID: r.ID, Action: "verified", CreatedAt: now}
	if err := s.Commit(ctx, r, act); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	stale.Status = report.StatusDuplicate
	staleAct := &report.Activity{ID: ulid.Make().String(), ReportID: stale.ID, Action: "duplicate", CreatedAt: now}
	if err := s.Commit(ctx, &stale, staleAct); !errors.Is(err, report.ErrPreconditionFailed) {
		t.Fatalf("stale commit err = %v, want ErrPreconditionFailed", err)
	}

	missing, missingAct := newTestReport()
	if err := s.Commit(ctx, missing, missingAct); !errors.Is(err, report.ErrNotFound) {
		t.Fatalf("missing commit err = %v, want ErrNotFound", err)
	}
}

func TestQueryFilters(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	high, highAct := newTestReport()
	high.PriorityScore = 95
	high.PriorityLevel = report.PriorityHigh
	high.Status = report.StatusVerified
	if err := s.Create(ctx, high, highAct); err != nil {
		t.Fatalf("Create high: %v", err)
	}

	low, lowAct := newTestReport()
	low.PriorityScore = 5
	low.PriorityLevel = report.PriorityLow
	// Far away from the other fixture.
	low.Lat, low.Lng = 51.5, -0.1
	if err := s.Create(ctx, low, lowAct); err != nil {
		t.Fatalf("Create low: %v", err)
	}

	got, err := s.Query(ctx, report.Filter{MinPriority: 90, Limit: 500})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !containsID(got, high.ID) || containsID(got, low.ID) {
		t.Errorf("MinPriority filter: got %d reports, high present=%v low present=%v",
			len(got), containsID(got, high.ID), containsID(got, low.ID))
	}

	got, err = s.Query(ctx, report.Filter{
		HasBBox: true,
		MinLat:  40.75, MaxLat: 40.76,
		MinLng: -74.0, MaxLng: -73.9,
		Limit: 500,
	})
	if err != nil {
		t.Fatalf("Query bbox: %v", err)
	}
	if containsID(got, low.ID) {
		t.Error("bbox filter returned out-of-box report")
	}

	got, err = s.Query(ctx, report.Filter{Status: report.StatusVerified, Limit: 500})
	if err != nil {
		t.Fatalf("Query status: %v", err)
	}
	for _, r := range got {
		if r.Status != report.StatusVerified {
			t.Errorf("status filter returned %q", r.Status)
		}
	}

	// Ordering: priority descending.
	got, err = s.Query(ctx, report.Filter{Limit: 500})
	if err != nil {
		t.Fatalf("Query all: %v", err)
	}
	for i := 1; i < len(got); i++ {
		if got[i].PriorityScore > got[i-1].PriorityScore {
			t.Errorf("order broken at %d: %d after %d", i, got[i].PriorityScore, got[i-1].PriorityScore)
		}
	}
}

func TestActivitiesNewestFirst(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	r, a := newTestReport()
	if err := s.Create(ctx, r, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	now := time.Now().Truncate(time.Microsecond).UTC().Add(time.Minute)
	r.Status = report.StatusVerified
	act := &report.Activity{ID: ulid.Make().String(), ReportID: r.ID, Action: "verified", CreatedAt: now}
	if err := s.Commit(ctx, r, act); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	acts, err := s.Activities(ctx, r.ID)
	if err != nil {
		t.Fatalf("Activities: %v", err)
	}
	if len(acts) != 2 {
		t.Fatalf("activities = %d entries, want 2", len(acts))
	}
	if acts[0].Action != "verified" || acts[1].Action != "created" {
		t.Errorf("order = %q, %q, want newest first", acts[0].Action, acts[1].Action)
	}
}

func containsID(rs []*report.Report, id string) bool {
	for _, r := range rs {
		if r.ID == id {
			return true
		}
	}
	return false
}
