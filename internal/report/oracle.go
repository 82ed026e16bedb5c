package report

import (
	"context"
	"time"
)

// Oracle is the verification collaborator: given a report's media
// references and text, it returns a veracity score in [0,1] and the set
// of detected content labels. This core defines the contract only; the
// inference itself is external. Implementations report failure as (or
// wrapping) ErrOracleUnavailable so callers can leave the report in
// created and retry.
type Oracle interface {
	Infer(ctx context.Context, mediaRefs []string, text string) (score float64, labels []string, err error)
}

// InstrumentOracle wraps an oracle with per-call metrics. metrics may be
// nil, in which case the oracle is returned unwrapped.
func InstrumentOracle(o Oracle, m *Metrics) Oracle {
	if m == nil {
		return o
	}
	return &instrumentedOracle{inner: o, metrics: m}
}

type instrumentedOracle struct {
	inner   Oracle
	metrics *Metrics
}

func (o *instrumentedOracle) Infer(ctx context.Context, mediaRefs []string, text string) (float64, []string, error) {
	start := time.Now()
	score, labels, err := o.inner.Infer(ctx, mediaRefs, text)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	o.metrics.OracleCallsTotal.WithLabelValues(outcome).Inc()
	o.metrics.OracleDuration.Observe(time.Since(start).Seconds())

	return score, labels, err
}
