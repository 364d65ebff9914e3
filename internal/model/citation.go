package model

import "fmt"

// CandidateCitation is an unverified reference produced by the extractor.
// Any field may be empty when the extractor could not determine it.
type CandidateCitation struct {
	OriginalText string `json:"original_text"`
	Title        string `json:"title"`
	Author       string `json:"author"`
	Year         string `json:"year"`
	DOI          string `json:"doi,omitempty"`
}

// Verdict is the tri-state outcome of verification
type Verdict string

const (
	VerdictVerified     Verdict = "VERIFIED"
	VerdictHallucinated Verdict = "HALLUCINATED"
	VerdictAmbiguous    Verdict = "AMBIGUOUS"
)

// MatchSource names the source that confirmed a citation
type MatchSource string

const (
	SourceMetadataIndex MatchSource = "metadata-index"
	SourceWebGrounding  MatchSource = "web-grounding"
	SourceNone          MatchSource = "none"
)

// DatabaseMatch is the canonical record a verified citation was matched to
type DatabaseMatch struct {
	Source        MatchSource `json:"source"`
	DOI           string      `json:"doi,omitempty"`
	Title         string      `json:"title"`
	URL           string      `json:"url,omitempty"`
	PublishedDate string      `json:"published_date"`
}

// VerifiedCitation is the final, immutable record for one candidate
type VerifiedCitation struct {
	ID              string         `json:"id"`
	OriginalText    string         `json:"original_text"`
	Title           string         `json:"title"`
	Author          string         `json:"author"`
	Year            string         `json:"year"`
	Verdict         Verdict        `json:"verdict"`
	ConfidenceScore int            `json:"confidence_score"` // 0-100
	DatabaseMatch   *DatabaseMatch `json:"database_match,omitempty"`
	AnalysisNotes   string         `json:"analysis_notes"`
}

// CheckInvariants reports the first violated verdict invariant, if any.
// HALLUCINATED citations carry zero confidence and a match exists only for VERIFIED ones.
func (c VerifiedCitation) CheckInvariants() error {
	switch c.Verdict {
	case VerdictVerified, VerdictHallucinated, VerdictAmbiguous:
	default:
		return fmt.Errorf("citation %s: unknown verdict %q", c.ID, c.Verdict)
	}
	if c.ConfidenceScore < 0 || c.ConfidenceScore > 100 {
		return fmt.Errorf("citation %s: confidence %d out of range", c.ID, c.ConfidenceScore)
	}
	if c.Verdict == VerdictHallucinated && c.ConfidenceScore != 0 {
		return fmt.Errorf("citation %s: hallucinated with confidence %d", c.ID, c.ConfidenceScore)
	}
	if (c.DatabaseMatch != nil) != (c.Verdict == VerdictVerified) {
		return fmt.Errorf("citation %s: database match presence does not fit verdict %s", c.ID, c.Verdict)
	}
	return nil
}
