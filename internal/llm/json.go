package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/citeguard/internal/model"
)

// StripCodeFences removes a surrounding markdown code block, if any
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	endIdx := len(lines)
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	if len(lines) < 2 {
		return ""
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}

// looseString accepts a JSON string, number, boolean or null
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
	case len(data) > 0 && data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
	case len(data) > 0 && (data[0] == '[' || data[0] == '{'):
		// Author lists come back as arrays now and then; keep the first name
		var list []looseString
		if err := json.Unmarshal(data, &list); err == nil {
			if len(list) > 0 {
				*s = list[0]
			}
			return nil
		}
		*s = ""
	default:
		*s = looseString(strings.Trim(string(data), `"`))
	}
	return nil
}

type rawCitation struct {
	OriginalText looseString `json:"original_text"`
	Title        looseString `json:"title"`
	Author       looseString `json:"author"`
	Year         looseString `json:"year"`
	DOI          looseString `json:"doi"`
}

// ParseCitations decodes the extractor's answer. Both {"citations": [...]}
// and a bare array are accepted, as is a fenced code block around either.
// Records with neither a title nor original text are dropped.
func ParseCitations(text string) ([]model.CandidateCitation, error) {
	text = StripCodeFences(text)
	if text == "" {
		return nil, fmt.Errorf("empty extractor response")
	}

	var raws []rawCitation
	if strings.HasPrefix(text, "[") {
		if err := json.Unmarshal([]byte(text), &raws); err != nil {
			return nil, fmt.Errorf("parse citations: %w", err)
		}
	} else {
		var wrapped struct {
			Citations []rawCitation `json:"citations"`
		}
		if err := json.Unmarshal([]byte(text), &wrapped); err != nil {
			return nil, fmt.Errorf("parse citations: %w", err)
		}
		raws = wrapped.Citations
	}

	out := make([]model.CandidateCitation, 0, len(raws))
	for _, r := range raws {
		c := model.CandidateCitation{
			OriginalText: clean(r.OriginalText),
			Title:        clean(r.Title),
			Author:       clean(r.Author),
			Year:         normalizeYear(clean(r.Year)),
			DOI:          clean(r.DOI),
		}
		if c.Title == "" && c.OriginalText == "" {
			continue
		}
		if c.OriginalText == "" {
			c.OriginalText = c.Title
		}
		out = append(out, c)
	}
	return out, nil
}

func clean(s looseString) string {
	v := strings.TrimSpace(string(s))
	switch strings.ToLower(v) {
	case "null", "none", "n/a", "unknown":
		return ""
	}
	return v
}

// normalizeYear turns 2017.0 into 2017 and leaves anything else alone
func normalizeYear(y string) string {
	if f, err := strconv.ParseFloat(y, 64); err == nil && f == float64(int(f)) {
		return strconv.Itoa(int(f))
	}
	return y
}
