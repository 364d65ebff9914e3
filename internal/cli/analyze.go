package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/citeguard/internal/database"
	"github.com/ppiankov/citeguard/internal/model"
	"github.com/ppiankov/citeguard/internal/pipeline"
)

var (
	outJSON      string
	outMD        string
	runTimeout   time.Duration
	llmProvider  string
	llmModel     string
	groupSize    int
	isolation    string
	noCache      bool
	noRobots     bool
	noFooter     bool
	noHistory    bool
	mailto       string
	minTrustExit int
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|url>",
	Short: "Extract and verify every citation in a document",
	Long: `Analyze reads a text or HTML document (local file or URL), extracts the
references it cites with an LLM, and verifies each one:

- DOI lookup and bibliographic search against Crossref
- Web search grounding for works outside Crossref
- Title similarity against the canonical record

Example:
  citeguard analyze essay.txt
  citeguard analyze https://example.com/post --json report.json --md report.md
  citeguard analyze draft.html --provider openai --model gpt-4o-mini`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	// Output flags
	analyzeCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	analyzeCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	analyzeCmd.Flags().IntVar(&minTrustExit, "min-trust", 0, "exit with an error when the trust score is below this value")

	addRunFlags(analyzeCmd)
	addLLMFlags(analyzeCmd)
}

// addRunFlags registers the verification flags shared by analyze, verify and batch
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&runTimeout, "timeout", 10*time.Minute, "overall timeout")
	cmd.Flags().IntVar(&groupSize, "group-size", 0, "citations verified concurrently per group (default from config)")
	cmd.Flags().StringVar(&isolation, "isolation", "", "failure isolation: group or member (default from config)")
	cmd.Flags().StringVar(&mailto, "mailto", "", "contact address for the Crossref polite pool")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the lookup cache")
	cmd.Flags().BoolVar(&noRobots, "no-robots", false, "ignore robots.txt when fetching URLs")
	cmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the report in the local history")
}

// addLLMFlags registers the extraction provider flags
func addLLMFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&llmProvider, "provider", "", "LLM provider (gemini, openai, anthropic, ollama)")
	cmd.Flags().StringVar(&llmModel, "model", "", "LLM model name")
}

// applyRunFlags overrides config values with the flags the user set
func applyRunFlags(cmd *cobra.Command, cfg *model.Config) {
	flags := cmd.Flags()
	if flags.Changed("group-size") {
		cfg.Batch.GroupSize = groupSize
	}
	if flags.Changed("isolation") {
		cfg.Batch.Isolation = isolation
	}
	if flags.Changed("mailto") {
		cfg.Crossref.Mailto = mailto
	}
	if flags.Changed("no-cache") {
		cfg.Cache.Enabled = !noCache
	}
	if flags.Changed("no-robots") {
		cfg.HTTP.RespectRobots = !noRobots
	}
	if flags.Changed("no-footer") {
		cfg.Output.IncludeFooter = !noFooter
	}
	if flags.Changed("no-history") {
		cfg.History.Enabled = !noHistory
	}
	if flags.Lookup("provider") != nil && flags.Changed("provider") {
		cfg.LLM.Provider = llmProvider
		cfg.LLM.APIKey = ""
		applyKeyFallbacks(cfg, os.Getenv)
	}
	if flags.Lookup("model") != nil && flags.Changed("model") {
		cfg.LLM.Model = llmModel
	}
}

// commandContext returns a context cancelled by the timeout or Ctrl-C
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// progressPrinter reports group progress on stderr in verbose mode
func progressPrinter(cfg *model.Config) pipeline.Option {
	return pipeline.WithProgress(func(done, total int) {
		if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "  verified %d/%d citations\n", done, total)
		}
	})
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	source := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	ctx, cancel := commandContext(runTimeout)
	defer cancel()

	p, err := pipeline.NewPipeline(ctx, cfg, pipeline.WithLogger(logger), progressPrinter(cfg))
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}
	defer func() { _ = p.Close() }()

	if !p.HasExtractor() {
		return fmt.Errorf("analyze needs an LLM provider for extraction (set llm.provider or --provider); use 'citeguard verify' for pre-extracted citations")
	}

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "Analyzing: %s\n", source)
		fmt.Fprintf(os.Stderr, "Provider:  %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
		fmt.Fprintln(os.Stderr)
	}

	report, err := p.AnalyzeSource(ctx, source)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoCitations) {
			return fmt.Errorf("%s: no citations could be extracted", source)
		}
		return fmt.Errorf("analysis failed: %w", err)
	}

	return finishReport(cfg, logger, report, outJSON, outMD)
}

// finishReport renders outputs, records history and applies --min-trust
func finishReport(cfg *model.Config, logger *zap.Logger, report *model.AnalysisReport, jsonPath, mdPath string) error {
	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter)

	if jsonPath != "" {
		if err := renderer.RenderJSON(report, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}
	if mdPath != "" {
		if err := renderer.RenderMarkdown(report, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	recordHistory(cfg, logger, report)
	renderer.RenderSummary(os.Stdout, report)

	if minTrustExit > 0 && report.OverallTrustScore < minTrustExit {
		return fmt.Errorf("trust score %d is below --min-trust %d", report.OverallTrustScore, minTrustExit)
	}
	return nil
}

// openHistory opens the history database, or returns nil when history is off
func openHistory(cfg *model.Config, logger *zap.Logger) (*database.DB, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	path := cfg.History.Path
	if path == "" {
		var err error
		if path, err = database.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return database.Open(path, logger)
}

// recordHistory stores the report; failures only warn
func recordHistory(cfg *model.Config, logger *zap.Logger, report *model.AnalysisReport) {
	db, err := openHistory(cfg, logger)
	if err != nil {
		logger.Warn("history unavailable", zap.Error(err))
		return
	}
	if db == nil {
		return
	}
	defer func() { _ = db.Close() }()

	if err := db.SaveReport(report); err != nil {
		logger.Warn("failed to record report", zap.String("report_id", report.ID), zap.Error(err))
	}
}
