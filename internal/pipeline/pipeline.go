// Package pipeline wires extraction, verification and aggregation into a
// single analysis run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/citeguard/internal/cache"
	"github.com/ppiankov/citeguard/internal/crossref"
	"github.com/ppiankov/citeguard/internal/extract"
	"github.com/ppiankov/citeguard/internal/grounding"
	"github.com/ppiankov/citeguard/internal/llm"
	"github.com/ppiankov/citeguard/internal/model"
	"github.com/ppiankov/citeguard/internal/retry"
	"github.com/ppiankov/citeguard/internal/score"
	"github.com/ppiankov/citeguard/internal/util"
	"github.com/ppiankov/citeguard/internal/validate"
	"github.com/ppiankov/citeguard/internal/worker"
)

// ErrNoCitations is returned when a document yields no candidate citations,
// including when extraction itself fails
var ErrNoCitations = errors.New("no citations found")

// ErrNoExtractor is returned when text analysis is requested without an LLM provider
var ErrNoExtractor = errors.New("no LLM provider configured for citation extraction")

// Extractor turns free text into candidate citations
type Extractor interface {
	ProviderName() string
	ExtractCitations(ctx context.Context, text string) ([]model.CandidateCitation, error)
	FormatCitation(ctx context.Context, citation, style string) (string, error)
}

// Pipeline orchestrates a complete analysis run
type Pipeline struct {
	extractor    Extractor // nil when no provider is configured
	scheduler    *worker.BatchScheduler
	aggregator   *score.Aggregator
	extractRetry *retry.Invoker
	formatRetry  *retry.Invoker
	fetcher      *Fetcher
	logger       *zap.Logger
	closers      []io.Closer
}

type options struct {
	logger    *zap.Logger
	ids       model.IDGenerator
	now       func() time.Time
	sleep     retry.Sleeper
	jitter    retry.JitterFunc
	progress  func(done, total int)
	extractor Extractor
}

// Option configures a Pipeline
type Option func(*options)

// WithLogger sets the structured logger shared by every component
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithIDGenerator sets the source of citation and report identifiers
func WithIDGenerator(ids model.IDGenerator) Option {
	return func(o *options) {
		o.ids = ids
	}
}

// WithClock sets the report timestamp source
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithSleeper replaces every backoff and pacing sleep
func WithSleeper(s retry.Sleeper) Option {
	return func(o *options) {
		o.sleep = s
	}
}

// WithJitter replaces the retry jitter source
func WithJitter(j retry.JitterFunc) Option {
	return func(o *options) {
		o.jitter = j
	}
}

// WithProgress registers a per-group progress callback
func WithProgress(fn func(done, total int)) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithExtractor overrides the extractor built from the LLM config
func WithExtractor(e Extractor) Option {
	return func(o *options) {
		o.extractor = e
	}
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(ctx context.Context, cfg *model.Config, opts ...Option) (*Pipeline, error) {
	o := options{
		logger: zap.NewNop(),
		ids:    model.UUIDGenerator{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pipeline{logger: o.logger}

	lookupCache, err := newLookupCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	var cacheTTL time.Duration
	if lookupCache != nil {
		cacheTTL = cfg.Cache.DiskTTL
	}

	limiter := worker.NewLimiter(0, 0)
	if err := limiter.SetHostRate(cfg.Crossref.BaseURL, cfg.Crossref.RequestsPerSecond, cfg.Crossref.Burst); err != nil {
		return nil, fmt.Errorf("crossref rate: %w", err)
	}
	if err := limiter.SetHostRate(cfg.Grounding.BaseURL, cfg.Grounding.RequestsPerSecond, cfg.Grounding.Burst); err != nil {
		return nil, fmt.Errorf("grounding rate: %w", err)
	}

	httpClient := util.NewHTTPClient(cfg.HTTP)

	index := crossref.New(crossref.Options{
		BaseURL:      cfg.Crossref.BaseURL,
		Mailto:       cfg.Crossref.Mailto,
		UserAgent:    cfg.HTTP.UserAgent,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		HTTPClient:   httpClient,
		Limiter:      limiter,
		Cache:        lookupCache,
		CacheTTL:     cacheTTL,
	})
	grounder := grounding.New(grounding.Options{
		BaseURL:      cfg.Grounding.BaseURL,
		Model:        cfg.Grounding.Model,
		APIKey:       cfg.Grounding.APIKey,
		MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		HTTPClient:   httpClient,
		Limiter:      limiter,
		Cache:        lookupCache,
		CacheTTL:     cacheTTL,
	})
	if !grounder.Enabled() {
		o.logger.Warn("web grounding disabled: no API key configured")
	}

	verifyRetry := newInvoker(cfg.Retry.Verification, cfg.Retry.CallTimeout, o)
	p.extractRetry = newInvoker(cfg.Retry.Extraction, cfg.Retry.CallTimeout, o)
	p.formatRetry = newInvoker(cfg.Retry.Formatting, cfg.Retry.CallTimeout, o)

	verifier := validate.NewVerifier(index, grounder, verifyRetry, o.logger)
	reconciler := validate.NewReconciler(cfg.Reconcile, o.ids)

	schedOpts := []worker.SchedulerOption{worker.WithSchedulerLogger(o.logger)}
	if o.sleep != nil {
		schedOpts = append(schedOpts, worker.WithPacingSleeper(o.sleep))
	}
	if o.progress != nil {
		schedOpts = append(schedOpts, worker.WithProgress(o.progress))
	}
	p.scheduler = worker.NewBatchScheduler(verifier, reconciler, worker.SchedulerConfig{
		GroupSize:  cfg.Batch.GroupSize,
		GroupDelay: cfg.Batch.GroupDelay,
		Isolation:  worker.ParseIsolation(cfg.Batch.Isolation),
	}, schedOpts...)

	p.aggregator = score.NewAggregator(o.ids, o.now)
	p.fetcher = NewFetcher(cfg.HTTP, limiter)

	p.extractor = o.extractor
	if p.extractor == nil {
		provider, err := llm.NewProvider(ctx, llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
		if err != nil {
			return nil, fmt.Errorf("LLM provider: %w", err)
		}
		if provider != nil {
			if c, ok := provider.(io.Closer); ok {
				p.closers = append(p.closers, c)
			}
			p.extractor = llm.NewExtractor(provider, cfg.LLM.MaxChars, o.logger)
		}
	}

	return p, nil
}

func newInvoker(policy model.RetryPolicyConfig, callTimeout time.Duration, o options) *retry.Invoker {
	invOpts := []retry.Option{retry.WithLogger(o.logger)}
	if o.sleep != nil {
		invOpts = append(invOpts, retry.WithSleeper(o.sleep))
	}
	if o.jitter != nil {
		invOpts = append(invOpts, retry.WithJitter(o.jitter))
	}
	return retry.New(retry.Policy{
		MaxRetries:  policy.MaxRetries,
		BaseDelay:   policy.BaseDelay,
		CallTimeout: callTimeout,
	}, invOpts...)
}

func newLookupCache(cfg model.CacheConfig) (cache.Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Dir == "" {
		return cache.NewMemoryCache(cfg.MemoryTTL, 10*time.Minute), nil
	}
	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("cache dir: %w", err)
	}
	return cache.NewLayeredCache(cfg.MemoryTTL, dir, cfg.DiskTTL), nil
}

// HasExtractor reports whether free-text analysis is available
func (p *Pipeline) HasExtractor() bool {
	return p.extractor != nil
}

// RunPipeline verifies candidates and aggregates the results into a report.
// Individual verification failures become AMBIGUOUS records; the only error
// is cancellation of ctx, in which case no report is produced.
func (p *Pipeline) RunPipeline(ctx context.Context, candidates []model.CandidateCitation) (*model.AnalysisReport, error) {
	start := time.Now()

	results, err := p.scheduler.Run(ctx, candidates)
	if err != nil {
		p.logger.Warn("analysis cancelled",
			zap.Int("completed", len(results)),
			zap.Int("total", len(candidates)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("verify citations: %w", err)
	}

	report := p.aggregator.Aggregate(results)

	p.logger.Info("analysis complete",
		zap.String("report_id", report.ID),
		zap.Int("total", report.TotalCitations),
		zap.Int("verified", report.VerifiedCount),
		zap.Int("hallucinated", report.HallucinatedCount),
		zap.Int("ambiguous", report.AmbiguousCount),
		zap.Int("trust_score", report.OverallTrustScore),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &report, nil
}

// Extract pulls candidate citations out of text through the retry budget
// for extraction
func (p *Pipeline) Extract(ctx context.Context, text string) ([]model.CandidateCitation, error) {
	if p.extractor == nil {
		return nil, ErrNoExtractor
	}
	return retry.Value(ctx, p.extractRetry, "extract.citations", func(ctx context.Context) ([]model.CandidateCitation, error) {
		return p.extractor.ExtractCitations(ctx, text)
	})
}

// Analyze extracts citations from text and verifies them. A failed or
// empty extraction yields ErrNoCitations and no report.
func (p *Pipeline) Analyze(ctx context.Context, text string) (*model.AnalysisReport, error) {
	candidates, err := p.Extract(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Warn("citation extraction failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrNoCitations, err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoCitations
	}

	p.logger.Debug("extracted candidates",
		zap.String("provider", p.extractor.ProviderName()),
		zap.Int("count", len(candidates)),
	)
	return p.RunPipeline(ctx, candidates)
}

// AnalyzeSource loads a file or URL and analyzes its text
func (p *Pipeline) AnalyzeSource(ctx context.Context, source string) (*model.AnalysisReport, error) {
	doc, err := retry.Value(ctx, p.extractRetry, "document.load", func(ctx context.Context) (extract.Document, error) {
		return p.fetcher.Load(ctx, source)
	})
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", source, err)
	}
	if doc.Text == "" {
		return nil, fmt.Errorf("%s: %w", source, ErrNoCitations)
	}

	p.logger.Debug("document loaded",
		zap.String("source", source),
		zap.String("title", doc.Title),
		zap.Int("chars", len(doc.Text)),
		zap.Int("links", len(doc.Links)),
	)

	text := doc.Text
	if appendix := extract.DOIAppendix(doc.Links); appendix != "" {
		text += "\n\n" + appendix
	}

	report, err := p.Analyze(ctx, text)
	if err != nil {
		return nil, err
	}
	report.Source = source
	return report, nil
}

// Format rewrites a citation in the given style through the smaller
// formatting retry budget
func (p *Pipeline) Format(ctx context.Context, citation, style string) (string, error) {
	if p.extractor == nil {
		return "", ErrNoExtractor
	}
	return retry.Value(ctx, p.formatRetry, "format.citation", func(ctx context.Context) (string, error) {
		return p.extractor.FormatCitation(ctx, citation, style)
	})
}

// Close releases provider clients
func (p *Pipeline) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
