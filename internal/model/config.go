package model

import "time"

// Config holds every tunable of a citeguard run
type Config struct {
	HTTP      HTTPConfig      `yaml:"http" mapstructure:"http"`
	Crossref  CrossrefConfig  `yaml:"crossref" mapstructure:"crossref"`
	Grounding GroundingConfig `yaml:"grounding" mapstructure:"grounding"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	History   HistoryConfig   `yaml:"history" mapstructure:"history"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
}

// HTTPConfig configures outbound HTTP clients
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// CrossrefConfig configures the metadata index client
type CrossrefConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	Mailto            string  `yaml:"mailto,omitempty" mapstructure:"mailto"` // Joins the Crossref polite pool
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// GroundingConfig configures the web grounding client
type GroundingConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	Model             string  `yaml:"model" mapstructure:"model"`
	APIKey            string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// LLMConfig configures the citation extraction service
type LLMConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // gemini, openai, anthropic, ollama
	Model    string `yaml:"model" mapstructure:"model"`
	APIKey   string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL  string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout  int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxChars int    `yaml:"max_chars" mapstructure:"max_chars"`
}

// BatchConfig configures group scheduling
type BatchConfig struct {
	GroupSize  int           `yaml:"group_size" mapstructure:"group_size"`
	GroupDelay time.Duration `yaml:"group_delay" mapstructure:"group_delay"`
	Isolation  string        `yaml:"isolation" mapstructure:"isolation"` // group or member
	Workers    int           `yaml:"workers" mapstructure:"workers"`     // Documents processed at once by `batch`
}

// RetryPolicyConfig is one retry budget
type RetryPolicyConfig struct {
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
}

// RetryConfig holds the retry budgets per call class
type RetryConfig struct {
	Verification RetryPolicyConfig `yaml:"verification" mapstructure:"verification"`
	Extraction   RetryPolicyConfig `yaml:"extraction" mapstructure:"extraction"`
	Formatting   RetryPolicyConfig `yaml:"formatting" mapstructure:"formatting"`
	CallTimeout  time.Duration     `yaml:"call_timeout" mapstructure:"call_timeout"`
}

// ReconcileConfig holds the verdict thresholds
type ReconcileConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	GroundingConfidence int     `yaml:"grounding_confidence" mapstructure:"grounding_confidence"`
}

// CacheConfig configures the lookup cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir,omitempty" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// HistoryConfig configures the local report history
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path,omitempty" mapstructure:"path"`
}

// OutputConfig configures report rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "citeguard/0.1 (+https://github.com/ppiankov/citeguard)",
			MaxBodyBytes:  5_000_000,
			RespectRobots: true,
		},
		Crossref: CrossrefConfig{
			BaseURL:           "https://api.crossref.org",
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Grounding: GroundingConfig{
			BaseURL:           "https://generativelanguage.googleapis.com",
			Model:             "gemini-2.5-flash",
			RequestsPerSecond: 2,
			Burst:             2,
		},
		LLM: LLMConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			Timeout:  120,
			MaxChars: 60_000,
		},
		Batch: BatchConfig{
			GroupSize:  2,
			GroupDelay: 2 * time.Second,
			Isolation:  "group",
			Workers:    2,
		},
		Retry: RetryConfig{
			Verification: RetryPolicyConfig{MaxRetries: 5, BaseDelay: time.Second},
			Extraction:   RetryPolicyConfig{MaxRetries: 5, BaseDelay: time.Second},
			Formatting:   RetryPolicyConfig{MaxRetries: 2, BaseDelay: 500 * time.Millisecond},
			CallTimeout:  60 * time.Second,
		},
		Reconcile: ReconcileConfig{
			SimilarityThreshold: 0.85,
			GroundingConfidence: 95,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
	}
}
