package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider is a text-generation backend used for citation extraction and
// citation formatting
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate returns the model's text answer to req
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GenerateRequest is one prompt/answer exchange
type GenerateRequest struct {
	// System is the system instruction
	System string

	// Prompt is the user message
	Prompt string

	// JSON asks the backend for a JSON-only answer when it supports it
	JSON bool

	// MaxTokens limits the response length
	MaxTokens int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "gemini", "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "gemini",
		Model:     "gemini-2.5-flash",
		Timeout:   120,
		MaxTokens: 8192,
	}
}

const extractionSystem = `You extract bibliographic references from documents. You never invent references and never correct them: copy titles, authors, years and DOIs exactly as written, even when they look wrong.`

// BuildExtractionPrompt constructs the citation extraction prompt
func BuildExtractionPrompt(text string) string {
	return fmt.Sprintf(`Extract every bibliographic citation or reference from the document below.

Return a JSON object of this exact shape and nothing else:
{"citations": [{"original_text": "...", "title": "...", "author": "...", "year": "...", "doi": "..."}]}

RULES:
1. "original_text" is the citation exactly as it appears in the document.
2. "author" is the first author's surname, or the author string as written.
3. Use an empty string for any field you cannot determine.
4. "doi" is only filled when the document shows a DOI.
5. If the document has no citations, return {"citations": []}.

DOCUMENT:
%s`, text)
}

const formatSystem = `You format bibliographic citations. You only restyle what you are given and never add facts that are not present.`

// BuildFormatPrompt constructs the citation reformatting prompt
func BuildFormatPrompt(citation, style string) string {
	return fmt.Sprintf(`Rewrite this citation in %s style. Keep every fact as given; leave out parts that are missing.
Answer with the formatted citation only, on a single line, with no commentary.

CITATION:
%s`, style, strings.TrimSpace(citation))
}
