package llm

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ppiankov/citeguard/internal/model"
)

// Extractor turns documents into candidate citations and reformats
// citations, on top of any Provider
type Extractor struct {
	provider Provider
	maxChars int
	logger   *zap.Logger
}

// NewExtractor creates an extractor. Documents longer than maxChars runes
// are truncated before extraction; maxChars <= 0 disables truncation.
func NewExtractor(provider Provider, maxChars int, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{provider: provider, maxChars: maxChars, logger: logger}
}

// ProviderName returns the backing provider's name
func (e *Extractor) ProviderName() string {
	if e.provider == nil {
		return ""
	}
	return e.provider.Name()
}

// ExtractCitations returns the citations found in text, in document order
func (e *Extractor) ExtractCitations(ctx context.Context, text string) ([]model.CandidateCitation, error) {
	if e.provider == nil {
		return nil, fmt.Errorf("no LLM provider configured")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if e.maxChars > 0 && utf8.RuneCountInString(text) > e.maxChars {
		e.logger.Warn("document truncated for extraction",
			zap.Int("runes", utf8.RuneCountInString(text)),
			zap.Int("limit", e.maxChars),
		)
		text = string([]rune(text)[:e.maxChars])
	}

	answer, err := e.provider.Generate(ctx, GenerateRequest{
		System: extractionSystem,
		Prompt: BuildExtractionPrompt(text),
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s extraction: %w", e.provider.Name(), err)
	}

	citations, err := ParseCitations(answer)
	if err != nil {
		return nil, fmt.Errorf("%s extraction: %w", e.provider.Name(), err)
	}

	e.logger.Debug("citations extracted",
		zap.String("provider", e.provider.Name()),
		zap.Int("count", len(citations)),
	)
	return citations, nil
}

// FormatCitation rewrites a citation in the given style (APA, MLA, ...)
func (e *Extractor) FormatCitation(ctx context.Context, citation, style string) (string, error) {
	if e.provider == nil {
		return "", fmt.Errorf("no LLM provider configured")
	}
	if strings.TrimSpace(citation) == "" {
		return "", fmt.Errorf("empty citation")
	}
	if style == "" {
		style = "APA"
	}

	answer, err := e.provider.Generate(ctx, GenerateRequest{
		System:    formatSystem,
		Prompt:    BuildFormatPrompt(citation, style),
		MaxTokens: 512,
	})
	if err != nil {
		return "", fmt.Errorf("%s formatting: %w", e.provider.Name(), err)
	}

	formatted := strings.TrimSpace(StripCodeFences(answer))
	if formatted == "" {
		return "", fmt.Errorf("%s formatting: empty response", e.provider.Name())
	}
	return formatted, nil
}
