package report

import (
	"fmt"
	"math"
)

// PriorityPolicy holds the scoring knobs. The weighting is policy, not
// mechanism, so every constant here is configuration with a documented
// default rather than a literal baked into the algorithm.
type PriorityPolicy struct {
	// VerificationWeight and LabelWeight split the base score between the
	// oracle's confidence and the severity of the detected labels.
	VerificationWeight float64
	LabelWeight        float64

	// LabelSeverity maps a content label to its severity in [0,1]. Labels
	// not listed score DefaultLabelSeverity.
	LabelSeverity        map[string]float64
	DefaultLabelSeverity float64

	// FactorWeights maps a contextual factor name (e.g. a location
	// sensitivity signal) to its weight. Factors not listed use
	// DefaultFactorWeight.
	FactorWeights       map[string]float64
	DefaultFactorWeight float64

	// DuplicateCap is the ceiling applied to duplicates so they always
	// land in the low band without being deleted.
	DuplicateCap int

	// MediumMin and HighMin are the band thresholds. Boundary values
	// belong to the higher band.
	MediumMin int
	HighMin   int
}

// DefaultPriorityPolicy returns the production defaults.
func DefaultPriorityPolicy() PriorityPolicy {
	return PriorityPolicy{
		VerificationWeight: 0.7,
		LabelWeight:        0.3,
		LabelSeverity: map[string]float64{
			"flood":       1.0,
			"fire":        1.0,
			"gas_leak":    1.0,
			"downed_line": 0.9,
			"water_main":  0.8,
			"pothole":     0.7,
			"streetlight": 0.5,
			"graffiti":    0.3,
			"litter":      0.2,
		},
		DefaultLabelSeverity: 0.5,
		FactorWeights: map[string]float64{
			"severity_category":    0.6,
			"location_sensitivity": 0.4,
		},
		DefaultFactorWeight: 0.5,
		DuplicateCap:        10,
		MediumMin:           40,
		HighMin:             70,
	}
}

// Scorer derives a 0-100 priority score and level from verification
// output and contextual factors.
type Scorer struct {
	policy PriorityPolicy
}

// NewScorer creates a scorer with the given policy.
func NewScorer(policy PriorityPolicy) *Scorer {
	return &Scorer{policy: policy}
}

// Score combines verification confidence, label severity, and contextual
// factors into a weighted sum normalized to [0,100]. Every weight is
// non-negative, so raising any input never lowers the score. Duplicates
// are capped into the low band regardless of other inputs.
//
// A verification score or contextual factor outside [0,1] is rejected
// with ErrInvalidInput rather than clamped, so upstream bugs surface.
func (s *Scorer) Score(verificationScore float64, labels []string, isDuplicate bool, factors map[string]float64) (int, PriorityLevel, error) {
	if verificationScore < 0 || verificationScore > 1 || math.IsNaN(verificationScore) {
		return 0, "", fmt.Errorf("%w: verification score %v outside [0,1]", ErrInvalidInput, verificationScore)
	}
	for name, v := range factors {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return 0, "", fmt.Errorf("%w: contextual factor %q value %v outside [0,1]", ErrInvalidInput, name, v)
		}
	}

	num := s.policy.VerificationWeight*verificationScore + s.policy.LabelWeight*s.labelSeverity(labels)
	den := s.policy.VerificationWeight + s.policy.LabelWeight
	for name, v := range factors {
		w := s.policy.DefaultFactorWeight
		if fw, ok := s.policy.FactorWeights[name]; ok {
			w = fw
		}
		num += w * v
		den += w
	}

	score := 0
	if den > 0 {
		score = int(math.Round(100 * num / den))
	}
	if score > 100 {
		score = 100
	}

	if isDuplicate && score > s.policy.DuplicateCap {
		score = s.policy.DuplicateCap
	}

	return score, s.Level(score), nil
}

// Level maps a score to its band. Boundary values belong to the higher band.
func (s *Scorer) Level(score int) PriorityLevel {
	switch {
	case score >= s.policy.HighMin:
		return PriorityHigh
	case score >= s.policy.MediumMin:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// labelSeverity is the maximum severity among the detected labels, so
// adding a label can only raise the score.
func (s *Scorer) labelSeverity(labels []string) float64 {
	max := 0.0
	for _, l := range labels {
		sev := s.policy.DefaultLabelSeverity
		if v, ok := s.policy.LabelSeverity[l]; ok {
			sev = v
		}
		if sev > max {
			max = sev
		}
	}
	return max
}
