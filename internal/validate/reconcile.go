package validate

import (
	"fmt"
	"math"

	"github.com/ppiankov/citeguard/internal/model"
	"github.com/ppiankov/citeguard/internal/score"
)

const (
	doiResolver           = "https://doi.org/"
	unknownPublishedDate  = "Unknown"
	groundedPublishedDate = "Verified Existing"
)

// Reconciler turns verification signals into final citation records
type Reconciler struct {
	threshold  float64
	groundConf int
	ids        model.IDGenerator
}

// NewReconciler creates a reconciler. Zero thresholds take the defaults
// (similarity above 0.85, grounding confidence 95) and a nil generator
// falls back to UUIDs.
func NewReconciler(cfg model.ReconcileConfig, ids model.IDGenerator) *Reconciler {
	threshold := cfg.SimilarityThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = 0.85
	}
	groundConf := cfg.GroundingConfidence
	if groundConf <= 0 || groundConf > 100 {
		groundConf = 95
	}
	if ids == nil {
		ids = model.UUIDGenerator{}
	}
	return &Reconciler{threshold: threshold, groundConf: groundConf, ids: ids}
}

// Reconcile decides the verdict. A metadata match above the similarity
// threshold wins, then a positive grounding signal, else the citation is
// judged fabricated.
func (r *Reconciler) Reconcile(c model.CandidateCitation, meta *model.MetadataSignal, ground model.GroundingSignal) model.VerifiedCitation {
	out := r.base(c)

	if meta != nil {
		if sim := score.TitleSimilarity(c.Title, meta.Title); sim > r.threshold {
			url := meta.URL
			if url == "" && meta.DOI != "" {
				url = doiResolver + meta.DOI
			}
			published := meta.PublishedDate
			if published == "" {
				published = unknownPublishedDate
			}

			out.Verdict = model.VerdictVerified
			out.ConfidenceScore = max(1, int(math.Round(sim*100)))
			out.DatabaseMatch = &model.DatabaseMatch{
				Source:        model.SourceMetadataIndex,
				DOI:           meta.DOI,
				Title:         meta.Title,
				URL:           url,
				PublishedDate: published,
			}
			out.AnalysisNotes = fmt.Sprintf(
				"Verified against canonical Crossref metadata (title similarity %d%%).", out.ConfidenceScore)
			return out
		}
	}

	if ground.Verified {
		title := ground.Title
		if title == "" {
			title = c.Title
		}

		out.Verdict = model.VerdictVerified
		out.ConfidenceScore = r.groundConf
		out.DatabaseMatch = &model.DatabaseMatch{
			Source:        model.SourceWebGrounding,
			Title:         title,
			URL:           ground.URL,
			PublishedDate: groundedPublishedDate,
		}
		out.AnalysisNotes = "Found on the open web through search grounding. " + ground.Snippet
		return out
	}

	out.Verdict = model.VerdictHallucinated
	out.ConfidenceScore = 0
	out.AnalysisNotes = "Zero positive signals from the metadata index and open-web grounding. " +
		"This citation is likely fabricated."
	return out
}

// Ambiguous builds the record for a candidate whose verification failed
func (r *Reconciler) Ambiguous(c model.CandidateCitation, reason string) model.VerifiedCitation {
	out := r.base(c)
	out.Verdict = model.VerdictAmbiguous
	out.ConfidenceScore = 0
	out.AnalysisNotes = "Verification could not be completed due to a network error"
	if reason != "" {
		out.AnalysisNotes += ": " + reason
	}
	return out
}

func (r *Reconciler) base(c model.CandidateCitation) model.VerifiedCitation {
	return model.VerifiedCitation{
		ID:           r.ids.NewID(),
		OriginalText: c.OriginalText,
		Title:        c.Title,
		Author:       c.Author,
		Year:         c.Year,
	}
}
