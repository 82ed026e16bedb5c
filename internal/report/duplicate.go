package report

import (
	"time"

	"github.com/golang/geo/s2"
)

// earthRadiusM converts great-circle angles to meters.
const earthRadiusM = 6371010.0

// SimilarityFunc compares two perceptual hashes and returns a similarity
// in [0,1]. The hash comparison is an opaque external utility; the
// detector only consumes its output.
type SimilarityFunc func(hashA, hashB string) float64

// DuplicatePolicy holds the duplicate-detection knobs.
type DuplicatePolicy struct {
	// RadiusM bounds the spatial search around the candidate.
	RadiusM float64

	// Window bounds how far back an open report can have been created
	// and still count as the same real-world issue.
	Window time.Duration

	// LocationWeight and ContentWeight combine the two similarity
	// signals; AcceptThreshold is the combined score a match must clear.
	LocationWeight  float64
	ContentWeight   float64
	AcceptThreshold float64
}

// DefaultDuplicatePolicy returns the production defaults.
func DefaultDuplicatePolicy() DuplicatePolicy {
	return DuplicatePolicy{
		RadiusM:         100,
		Window:          48 * time.Hour,
		LocationWeight:  0.4,
		ContentWeight:   0.6,
		AcceptThreshold: 0.60,
	}
}

// Detector decides whether a new report is a near-duplicate of an
// existing open report.
type Detector struct {
	policy     DuplicatePolicy
	similarity SimilarityFunc
}

// NewDetector creates a detector. similarity may be nil, in which case
// media hashes are ignored and only label overlap drives the content
// signal.
func NewDetector(policy DuplicatePolicy, similarity SimilarityFunc) *Detector {
	return &Detector{policy: policy, similarity: similarity}
}

// FindDuplicate compares the candidate against the given open reports
// and returns the id of the most similar one whose combined
// location+content similarity clears the acceptance threshold, or ""
// when nothing does. Ties are broken by earliest CreatedAt, so the
// result is deterministic for identical inputs regardless of the order
// the open reports are supplied in.
func (d *Detector) FindDuplicate(candidate *Report, open []*Report) string {
	var (
		bestID      string
		bestScore   float64
		bestCreated time.Time
	)

	for _, other := range open {
		if other.ID == candidate.ID || !other.Open() {
			continue
		}
		age := candidate.CreatedAt.Sub(other.CreatedAt)
		if age < 0 || age > d.policy.Window {
			continue
		}

		dist := distanceM(candidate.RawLat, candidate.RawLng, other.RawLat, other.RawLng)
		if dist > d.policy.RadiusM {
			continue
		}

		locScore := 1 - dist/d.policy.RadiusM
		score := d.policy.LocationWeight*locScore + d.policy.ContentWeight*d.contentSimilarity(candidate, other)
		if score < d.policy.AcceptThreshold {
			continue
		}

		if score > bestScore || (score == bestScore && other.CreatedAt.Before(bestCreated)) {
			bestID = other.ID
			bestScore = score
			bestCreated = other.CreatedAt
		}
	}

	return bestID
}

// contentSimilarity is the label Jaccard overlap, raised by the best
// perceptual-hash similarity across the two media sets when a hash
// comparator is configured.
func (d *Detector) contentSimilarity(a, b *Report) float64 {
	sim := jaccard(a.VerificationLabels, b.VerificationLabels)
	if d.similarity == nil {
		return sim
	}
	for _, ha := range a.MediaRefs {
		for _, hb := range b.MediaRefs {
			if s := d.similarity(ha, hb); s > sim {
				sim = s
			}
		}
	}
	return sim
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, l := range a {
		set[l] = true
	}
	inter := 0
	union := len(set)
	seen := make(map[string]bool, len(b))
	for _, l := range b {
		if seen[l] {
			continue
		}
		seen[l] = true
		if set[l] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

// distanceM is the great-circle distance in meters between two
// lat/lng pairs.
func distanceM(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)
	return p1.Distance(p2).Radians() * earthRadiusM
}
