package report

import (
	"fmt"
	"testing"
	"time"
)

func openReport(id string, lat, lng float64, labels []string, createdAt time.Time) *Report {
	return &Report{
		ID:                 id,
		RawLat:             lat,
		RawLng:             lng,
		VerificationLabels: labels,
		Status:             StatusVerified,
		CreatedAt:          createdAt,
	}
}

func TestFindDuplicate(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	det := NewDetector(DefaultDuplicatePolicy(), nil)

	// ~0.0001 degrees latitude is about 11m.
	base := openReport("existing", 40.7589, -73.9851, []string{"pothole"}, now.Add(-1*time.Hour))
	cand := openReport("candidate", 40.75891, -73.98511, []string{"pothole"}, now)

	if got := det.FindDuplicate(cand, []*Report{base}); got != "existing" {
		t.Errorf("FindDuplicate = %q, want %q", got, "existing")
	}
}

func TestFindDuplicateOutsideRadius(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	det := NewDetector(DefaultDuplicatePolicy(), nil)

	// ~0.01 degrees latitude is about 1.1km, far outside the 100m radius.
	far := openReport("far", 40.7689, -73.9851, []string{"pothole"}, now.Add(-1*time.Hour))
	cand := openReport("candidate", 40.7589, -73.9851, []string{"pothole"}, now)

	if got := det.FindDuplicate(cand, []*Report{far}); got != "" {
		t.Errorf("FindDuplicate = %q, want no match", got)
	}
}

func TestFindDuplicateOutsideWindow(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	det := NewDetector(DefaultDuplicatePolicy(), nil)

	stale := openReport("stale", 40.7589, -73.9851, []string{"pothole"}, now.Add(-72*time.Hour))
	cand := openReport("candidate", 40.7589, -73.9851, []string{"pothole"}, now)

	if got := det.FindDuplicate(cand, []*Report{stale}); got != "" {
		t.Errorf("FindDuplicate = %q, want no match", got)
	}
}

func TestFindDuplicateDissimilarContent(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	det := NewDetector(DefaultDuplicatePolicy(), nil)

	// Same spot, completely different labels. Location alone contributes
	// at most 0.4, below the 0.6 acceptance threshold.
	other := openReport("other", 40.7589, -73.9851, []string{"graffiti"}, now.Add(-1*time.Hour))
	cand := openReport("candidate", 40.7589, -73.9851, []string{"flood"}, now)

	if got := det.FindDuplicate(cand, []*Report{other}); got != "" {
		t.Errorf("FindDuplicate = %q, want no match", got)
	}
}

func TestFindDuplicateSkipsClosedAndSelf(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	det := NewDetector(DefaultDuplicatePolicy(), nil)

	resolved := openReport("resolved", 40.7589, -73.9851, []string{"pothole"}, now.Add(-1*time.Hour))
	resolved.Status = StatusResolved
	dup := openReport("dup", 40.7589, -73.9851, []string{"pothole"}, now.Add(-1*time.Hour))
	dup.Status = StatusDuplicate
	cand := openReport("candidate", 40.7589, -73.9851, []string{"pothole"}, now)

	if got := det.FindDuplicate(cand, []*Report{resolved, dup, cand}); got != "" {
		t.Errorf("FindDuplicate = %q, want no match against closed reports or self", got)
	}
}

func TestFindDuplicateTieBreaksEarliest(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	det := NewDetector(DefaultDuplicatePolicy(), nil)

	older := openReport("older", 40.7589, -73.9851, []string{"pothole"}, now.Add(-2*time.Hour))
	newer := openReport("newer", 40.7589, -73.9851, []string{"pothole"}, now.Add(-1*time.Hour))
	cand := openReport("candidate", 40.7589, -73.9851, []string{"pothole"}, now)

	// Identical position and labels give identical scores; the earliest
	// open report wins regardless of input order.
	for _, open := range [][]*Report{{older, newer}, {newer, older}} {
		if got := det.FindDuplicate(cand, open); got != "older" {
			t.Errorf("FindDuplicate = %q, want %q", got, "older")
		}
	}
}

func TestFindDuplicateMediaSimilarity(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	// No label overlap, so only the hash comparator can push the content
	// signal over the threshold.
	sim := func(a, b string) float64 {
		if a == b {
			return 1
		}
		return 0
	}
	det := NewDetector(DefaultDuplicatePolicy(), sim)

	other := openReport("other", 40.7589, -73.9851, []string{"graffiti"}, now.Add(-1*time.Hour))
	other.MediaRefs = []string{"hash-a"}
	cand := openReport("candidate", 40.7589, -73.9851, []string{"flood"}, now)
	cand.MediaRefs = []string{"hash-a", "hash-b"}

	if got := det.FindDuplicate(cand, []*Report{other}); got != "other" {
		t.Errorf("FindDuplicate = %q, want %q", got, "other")
	}
}

func TestJaccard(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b []string
		want float64
	}{
		{[]string{"pothole"}, []string{"pothole"}, 1},
		{[]string{"pothole"}, []string{"flood"}, 0},
		{[]string{"pothole", "flood"}, []string{"pothole"}, 0.5},
		{nil, []string{"pothole"}, 0},
		{nil, nil, 0},
		{[]string{"a", "a", "b"}, []string{"a"}, 0.5},
	}
	for i, tt := range tests {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			t.Parallel()
			if got := jaccard(tt.a, tt.b); got != tt.want {
				t.Errorf("jaccard(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDistanceM(t *testing.T) {
	t.Parallel()

	// One degree of latitude is about 111.2km.
	d := distanceM(40, -73, 41, -73)
	if d < 110_000 || d > 112_500 {
		t.Errorf("distanceM one degree latitude = %v, want ~111km", d)
	}

	if d := distanceM(40.7589, -73.9851, 40.7589, -73.9851); d != 0 {
		t.Errorf("distanceM same point = %v, want 0", d)
	}
}
