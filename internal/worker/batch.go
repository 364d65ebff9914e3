package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/citeguard/internal/model"
	"github.com/ppiankov/citeguard/internal/retry"
)

// Verifier fetches the raw signals for one candidate
type Verifier interface {
	Verify(ctx context.Context, c model.CandidateCitation) (*model.MetadataSignal, model.GroundingSignal, error)
}

// Reconciler turns signals into final records
type Reconciler interface {
	Reconcile(c model.CandidateCitation, meta *model.MetadataSignal, ground model.GroundingSignal) model.VerifiedCitation
	Ambiguous(c model.CandidateCitation, reason string) model.VerifiedCitation
}

// Isolation selects how far a verification failure spreads
type Isolation string

const (
	// IsolateGroup marks every member of a failing group AMBIGUOUS
	IsolateGroup Isolation = "group"
	// IsolateMember marks only the failing member AMBIGUOUS
	IsolateMember Isolation = "member"
)

// ParseIsolation maps a config value to an Isolation, defaulting to IsolateGroup
func ParseIsolation(s string) Isolation {
	if Isolation(s) == IsolateMember {
		return IsolateMember
	}
	return IsolateGroup
}

// SchedulerConfig holds the grouping and pacing policy
type SchedulerConfig struct {
	GroupSize  int
	GroupDelay time.Duration
	Isolation  Isolation
}

// BatchScheduler verifies candidates in sequential groups whose members
// run concurrently, pausing between groups.
type BatchScheduler struct {
	verifier   Verifier
	reconciler Reconciler
	cfg        SchedulerConfig
	sleep      retry.Sleeper
	logger     *zap.Logger
	onGroup    func(done, total int)
}

// SchedulerOption configures a BatchScheduler
type SchedulerOption func(*BatchScheduler)

// WithPacingSleeper replaces the inter-group sleep
func WithPacingSleeper(s retry.Sleeper) SchedulerOption {
	return func(b *BatchScheduler) {
		b.sleep = s
	}
}

// WithSchedulerLogger sets the logger for group failures
func WithSchedulerLogger(l *zap.Logger) SchedulerOption {
	return func(b *BatchScheduler) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithProgress registers a callback invoked after each finished group
// with the number of candidates done so far and the total.
func WithProgress(fn func(done, total int)) SchedulerOption {
	return func(b *BatchScheduler) {
		b.onGroup = fn
	}
}

// NewBatchScheduler creates a scheduler
func NewBatchScheduler(v Verifier, r Reconciler, cfg SchedulerConfig, opts ...SchedulerOption) *BatchScheduler {
	if cfg.GroupSize <= 0 {
		cfg.GroupSize = 2
	}
	if cfg.GroupDelay < 0 {
		cfg.GroupDelay = 0
	}
	if cfg.Isolation == "" {
		cfg.Isolation = IsolateGroup
	}

	b := &BatchScheduler{
		verifier:   v,
		reconciler: r,
		cfg:        cfg,
		sleep:      retry.SleepContext,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run verifies every candidate and returns one record per candidate in
// input order. Verification failures never abort the run. If ctx ends,
// Run returns the records of the groups completed so far and ctx.Err().
func (b *BatchScheduler) Run(ctx context.Context, candidates []model.CandidateCitation) ([]model.VerifiedCitation, error) {
	results := make([]model.VerifiedCitation, 0, len(candidates))

	for start := 0; start < len(candidates); start += b.cfg.GroupSize {
		if start > 0 && b.cfg.GroupDelay > 0 {
			if err := b.sleep(ctx, b.cfg.GroupDelay); err != nil {
				return results, err
			}
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		end := min(start+b.cfg.GroupSize, len(candidates))
		group := b.runGroup(ctx, start, candidates[start:end])

		// A group cut short by cancellation is dropped rather than reported AMBIGUOUS
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, group...)

		if b.onGroup != nil {
			b.onGroup(len(results), len(candidates))
		}
	}

	return results, nil
}

func (b *BatchScheduler) runGroup(ctx context.Context, offset int, group []model.CandidateCitation) []model.VerifiedCitation {
	if b.cfg.Isolation == IsolateMember {
		return b.runMembers(ctx, group)
	}

	out := make([]model.VerifiedCitation, len(group))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range group {
		g.Go(func() error {
			meta, ground, err := b.verifier.Verify(gctx, c)
			if err != nil {
				return err
			}
			out[i] = b.reconciler.Reconcile(c, meta, ground)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		b.logger.Warn("verification group failed",
			zap.Int("first", offset),
			zap.Int("size", len(group)),
			zap.Error(err),
		)
		for i, c := range group {
			out[i] = b.reconciler.Ambiguous(c, err.Error())
		}
	}
	return out
}

func (b *BatchScheduler) runMembers(ctx context.Context, group []model.CandidateCitation) []model.VerifiedCitation {
	out := make([]model.VerifiedCitation, len(group))
	var wg sync.WaitGroup
	for i, c := range group {
		wg.Add(1)
		go func() {
			defer wg.Done()
			meta, ground, err := b.verifier.Verify(ctx, c)
			if err != nil {
				b.logger.Warn("verification failed", zap.String("title", c.Title), zap.Error(err))
				out[i] = b.reconciler.Ambiguous(c, err.Error())
				return
			}
			out[i] = b.reconciler.Reconcile(c, meta, ground)
		}()
	}
	wg.Wait()
	return out
}
