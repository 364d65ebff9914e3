package model

import (
	"fmt"
	"math"
	"time"
)

// AnalysisReport is the aggregate over one pipeline run.
// Citations keep input order; they are never regrouped by verdict.
type AnalysisReport struct {
	ID                string             `json:"id"`
	CreatedAt         time.Time          `json:"created_at"`
	Source            string             `json:"source,omitempty"` // File or URL the citations came from
	TotalCitations    int                `json:"total_citations"`
	VerifiedCount     int                `json:"verified_count"`
	HallucinatedCount int                `json:"hallucinated_count"`
	AmbiguousCount    int                `json:"ambiguous_count"`
	OverallTrustScore int                `json:"overall_trust_score"` // 0-100
	Citations         []VerifiedCitation `json:"citations"`
}

// TrustScore returns round(verified/total*100), or 0 for an empty run
func TrustScore(verified, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(verified) / float64(total) * 100))
}

// CheckInvariants validates the report counters against its citations
func (r AnalysisReport) CheckInvariants() error {
	if r.TotalCitations != len(r.Citations) {
		return fmt.Errorf("report %s: total %d but %d citations", r.ID, r.TotalCitations, len(r.Citations))
	}
	if r.VerifiedCount+r.HallucinatedCount > r.TotalCitations {
		return fmt.Errorf("report %s: verified+hallucinated exceeds total", r.ID)
	}
	if want := TrustScore(r.VerifiedCount, r.TotalCitations); r.OverallTrustScore != want {
		return fmt.Errorf("report %s: trust score %d, want %d", r.ID, r.OverallTrustScore, want)
	}
	for _, c := range r.Citations {
		if err := c.CheckInvariants(); err != nil {
			return err
		}
	}
	return nil
}

// Summary is a one-line description used by the CLI and history listings
func (r AnalysisReport) Summary() string {
	return fmt.Sprintf("%d citations: %d verified, %d hallucinated, %d ambiguous (trust %d/100)",
		r.TotalCitations, r.VerifiedCount, r.HallucinatedCount, r.AmbiguousCount, r.OverallTrustScore)
}
