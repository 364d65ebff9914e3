package score

import (
	"strings"
	"unicode"
)

// DefaultSimilarity is returned when neither title contains the other.
// It leans permissive on purpose and is not a measured similarity.
const DefaultSimilarity = 0.5

// TitleSimilarity compares two titles and returns a score in [0,1].
//
// Both titles are normalized first (see NormalizeTitle). Identical titles
// score 1.0; when one contains the other the score is the length ratio
// shorter/longer; anything else scores DefaultSimilarity.
func TitleSimilarity(a, b string) float64 {
	na := NormalizeTitle(a)
	nb := NormalizeTitle(b)

	if na == nb {
		return 1.0
	}

	shorter, longer := na, nb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	if len(longer) == 0 {
		return 1.0
	}

	if strings.Contains(longer, shorter) {
		return float64(len(shorter)) / float64(len(longer))
	}

	return DefaultSimilarity
}

// NormalizeTitle lowercases s, drops everything except ASCII word characters
// and whitespace, collapses whitespace runs to single spaces and trims.
func NormalizeTitle(s string) string {
	s = strings.ToLower(s)

	var buf strings.Builder
	buf.Grow(len(s))
	for _, r := range s {
		switch {
		case isWordRune(r):
			buf.WriteRune(r)
		case unicode.IsSpace(r):
			buf.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(buf.String()), " ")
}

func isWordRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
