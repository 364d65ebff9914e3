package score

import (
	"time"

	"github.com/ppiankov/citeguard/internal/model"
)

// Aggregator folds verified citations into an AnalysisReport
type Aggregator struct {
	ids model.IDGenerator
	now func() time.Time
}

// NewAggregator creates an aggregator. A nil generator falls back to UUIDs
// and a nil clock to time.Now in UTC.
func NewAggregator(ids model.IDGenerator, now func() time.Time) *Aggregator {
	if ids == nil {
		ids = model.UUIDGenerator{}
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Aggregator{ids: ids, now: now}
}

// Aggregate counts verdicts in a single pass and computes the trust score.
// The citation slice is copied so the report never aliases caller memory.
func (a *Aggregator) Aggregate(results []model.VerifiedCitation) model.AnalysisReport {
	report := model.AnalysisReport{
		ID:             a.ids.NewID(),
		CreatedAt:      a.now(),
		TotalCitations: len(results),
		Citations:      make([]model.VerifiedCitation, len(results)),
	}
	copy(report.Citations, results)

	for _, c := range results {
		switch c.Verdict {
		case model.VerdictVerified:
			report.VerifiedCount++
		case model.VerdictHallucinated:
			report.HallucinatedCount++
		default:
			report.AmbiguousCount++
		}
	}

	report.OverallTrustScore = model.TrustScore(report.VerifiedCount, report.TotalCitations)
	return report
}
