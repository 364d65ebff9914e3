package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/citeguard/internal/model"
)

// Renderer writes analysis reports to disk and the terminal
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a new renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the report as indented JSON
func (r *Renderer) RenderJSON(report *model.AnalysisReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return writeFile(path, append(data, '\n'))
}

// RenderMarkdown writes the report as a Markdown document
func (r *Renderer) RenderMarkdown(report *model.AnalysisReport, path string) error {
	return writeFile(path, []byte(r.Markdown(report)))
}

// Markdown formats the report as Markdown
func (r *Renderer) Markdown(report *model.AnalysisReport) string {
	var b strings.Builder

	b.WriteString("# Citation Report\n\n")
	if report.Source != "" {
		fmt.Fprintf(&b, "**Source:** %s  \n", report.Source)
	}
	fmt.Fprintf(&b, "**Report:** `%s`  \n", report.ID)
	fmt.Fprintf(&b, "**Generated:** %s\n\n", report.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Trust score | %d/100 |\n", report.OverallTrustScore)
	fmt.Fprintf(&b, "| Citations | %d |\n", report.TotalCitations)
	fmt.Fprintf(&b, "| Verified | %d |\n", report.VerifiedCount)
	fmt.Fprintf(&b, "| Hallucinated | %d |\n", report.HallucinatedCount)
	fmt.Fprintf(&b, "| Ambiguous | %d |\n\n", report.AmbiguousCount)

	if len(report.Citations) > 0 {
		b.WriteString("## Citations\n\n")
		for i, c := range report.Citations {
			fmt.Fprintf(&b, "### %d. %s %s\n\n", i+1, verdictMarker(c.Verdict), mdEscape(displayTitle(c)))
			fmt.Fprintf(&b, "- **Verdict:** %s (confidence %d)\n", c.Verdict, c.ConfidenceScore)
			if c.Author != "" || c.Year != "" {
				fmt.Fprintf(&b, "- **Cited as:** %s\n", mdEscape(strings.TrimSpace(c.Author+" "+parenthesize(c.Year))))
			}
			if m := c.DatabaseMatch; m != nil {
				fmt.Fprintf(&b, "- **Matched:** %s via %s", mdEscape(m.Title), m.Source)
				if m.URL != "" {
					fmt.Fprintf(&b, " (<%s>)", m.URL)
				}
				b.WriteString("\n")
				if m.DOI != "" {
					fmt.Fprintf(&b, "- **DOI:** %s\n", m.DOI)
				}
				fmt.Fprintf(&b, "- **Published:** %s\n", m.PublishedDate)
			}
			fmt.Fprintf(&b, "- **Notes:** %s\n", c.AnalysisNotes)
			if c.OriginalText != "" && c.OriginalText != c.Title {
				fmt.Fprintf(&b, "\n> %s\n", mdEscape(c.OriginalText))
			}
			b.WriteString("\n")
		}
	}

	if r.includeFooter {
		b.WriteString("---\n\n")
		b.WriteString("*A verified citation exists in a bibliographic index or on the open web. ")
		b.WriteString("It does not mean the source supports the claim it is cited for.*\n")
	}

	return b.String()
}

// RenderSummary prints a short summary to w
func (r *Renderer) RenderSummary(w io.Writer, report *model.AnalysisReport) {
	fmt.Fprintf(w, "\nTrust score: %d/100\n", report.OverallTrustScore)
	fmt.Fprintf(w, "%s\n", report.Summary())

	for _, c := range report.Citations {
		if c.Verdict == model.VerdictVerified {
			continue
		}
		fmt.Fprintf(w, "  %s %s: %s\n", verdictMarker(c.Verdict), c.Verdict, displayTitle(c))
	}
}

func verdictMarker(v model.Verdict) string {
	switch v {
	case model.VerdictVerified:
		return "✓"
	case model.VerdictHallucinated:
		return "✗"
	default:
		return "?"
	}
}

func displayTitle(c model.VerifiedCitation) string {
	if c.Title != "" {
		return c.Title
	}
	if c.OriginalText != "" {
		return c.OriginalText
	}
	return "(untitled)"
}

func parenthesize(s string) string {
	if s == "" {
		return ""
	}
	return "(" + s + ")"
}

var mdReplacer = strings.NewReplacer("\n", " ", "|", "\\|", "*", "\\*", "_", "\\_")

func mdEscape(s string) string {
	return mdReplacer.Replace(s)
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
