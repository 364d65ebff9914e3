package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/citeguard/internal/model"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDecodeConfig_Defaults(t *testing.T) {
	v := viper.New()
	if err := configureViper(v); err != nil {
		t.Fatal(err)
	}

	cfg, err := decodeConfig(v, envMap(nil))
	if err != nil {
		t.Fatalf("decodeConfig failed: %v", err)
	}

	want := model.DefaultConfig()
	if cfg.Batch != want.Batch || cfg.Reconcile != want.Reconcile || cfg.Retry != want.Retry {
		t.Errorf("defaults not preserved:\n got %+v\nwant %+v", cfg, want)
	}
	if cfg.HTTP.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.HTTP.Timeout)
	}
}

func TestDecodeConfig_EnvOverrides(t *testing.T) {
	t.Setenv("CITEGUARD_LLM_PROVIDER", "openai")
	t.Setenv("CITEGUARD_BATCH_GROUP_DELAY", "500ms")
	t.Setenv("CITEGUARD_RECONCILE_SIMILARITY_THRESHOLD", "0.9")
	t.Setenv("CITEGUARD_CROSSREF_MAILTO", "ops@example.com")

	v := viper.New()
	if err := configureViper(v); err != nil {
		t.Fatal(err)
	}

	cfg, err := decodeConfig(v, envMap(map[string]string{"OPENAI_API_KEY": "sk-test"}))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.LLM.Provider != "openai" || cfg.LLM.APIKey != "sk-test" {
		t.Errorf("expected openai with fallback key, got %+v", cfg.LLM)
	}
	if cfg.Batch.GroupDelay != 500*time.Millisecond {
		t.Errorf("expected 500ms group delay, got %v", cfg.Batch.GroupDelay)
	}
	if cfg.Reconcile.SimilarityThreshold != 0.9 {
		t.Errorf("expected threshold 0.9, got %v", cfg.Reconcile.SimilarityThreshold)
	}
	if cfg.Crossref.Mailto != "ops@example.com" {
		t.Errorf("expected mailto from env, got %q", cfg.Crossref.Mailto)
	}
}

func TestDecodeConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "batch:\n  group_size: 4\n  isolation: member\nllm:\n  provider: ollama\n  model: llama3.1:8b\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	if err := configureViper(v); err != nil {
		t.Fatal(err)
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatal(err)
	}

	cfg, err := decodeConfig(v, envMap(map[string]string{"OLLAMA_BASE_URL": "http://gpu-box:11434"}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Batch.GroupSize != 4 || cfg.Batch.Isolation != "member" {
		t.Errorf("file values not applied: %+v", cfg.Batch)
	}
	if cfg.Batch.GroupDelay != 2*time.Second {
		t.Errorf("unset keys should keep defaults, got %v", cfg.Batch.GroupDelay)
	}
	if cfg.LLM.BaseURL != "http://gpu-box:11434" {
		t.Errorf("expected OLLAMA_BASE_URL fallback, got %q", cfg.LLM.BaseURL)
	}
}

func TestApplyKeyFallbacks(t *testing.T) {
	cfg := model.DefaultConfig()
	applyKeyFallbacks(cfg, envMap(map[string]string{"GOOGLE_API_KEY": "g-key"}))
	if cfg.LLM.APIKey != "g-key" || cfg.Grounding.APIKey != "g-key" {
		t.Errorf("expected Google key for gemini extraction and grounding, got %q / %q", cfg.LLM.APIKey, cfg.Grounding.APIKey)
	}

	cfg = model.DefaultConfig()
	cfg.LLM.Provider = "anthropic"
	cfg.Grounding.APIKey = "explicit"
	applyKeyFallbacks(cfg, envMap(map[string]string{"ANTHROPIC_API_KEY": "a-key", "GEMINI_API_KEY": "g-key"}))
	if cfg.LLM.APIKey != "a-key" {
		t.Errorf("expected Anthropic key, got %q", cfg.LLM.APIKey)
	}
	if cfg.Grounding.APIKey != "explicit" {
		t.Errorf("explicit grounding key must win, got %q", cfg.Grounding.APIKey)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".citeguard", "config.yaml")
	if err := writeDefaultConfig(path); err != nil {
		t.Fatalf("writeDefaultConfig failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var cfg model.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if cfg.Batch.GroupSize != 2 || cfg.Crossref.BaseURL != "https://api.crossref.org" {
		t.Errorf("unexpected written config %+v", cfg)
	}

	if err := writeDefaultConfig(path); err == nil {
		t.Error("expected an error when the file already exists")
	}
}

func TestRedacted(t *testing.T) {
	cfg := model.DefaultConfig()
	cfg.LLM.APIKey = "sk-1234567890abcd"
	cfg.Grounding.APIKey = "short"

	out := redacted(cfg)
	if out.LLM.APIKey != "sk-1****abcd" || out.Grounding.APIKey != "****" {
		t.Errorf("unexpected masking %q / %q", out.LLM.APIKey, out.Grounding.APIKey)
	}
	if cfg.LLM.APIKey != "sk-1234567890abcd" {
		t.Error("redacted must not modify the original")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"https://example.com/blog/post?id=3": "example.com_blog_post_id=3",
		"drafts/essay one.txt":               "drafts_essay-one",
		"notes.md":                           "notes",
		"https://":                           "report",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUniqueSlug(t *testing.T) {
	used := map[string]int{}
	got := []string{uniqueSlug(used, "a"), uniqueSlug(used, "a"), uniqueSlug(used, "b"), uniqueSlug(used, "a")}
	want := []string{"a", "a-2", "b", "a-3"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("uniqueSlug #%d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestReadCandidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "citations.json")
	content := `[{"title":"Attention Is All You Need","author":"Vaswani","year":2017,"doi":"10.48550/arXiv.1706.03762"}]`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := readCandidates(path)
	if err != nil {
		t.Fatalf("readCandidates failed: %v", err)
	}
	if len(got) != 1 || got[0].Year != "2017" || got[0].DOI != "10.48550/arXiv.1706.03762" {
		t.Errorf("unexpected candidates %+v", got)
	}
}
