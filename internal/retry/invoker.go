package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy is one retry budget
type Policy struct {
	MaxRetries  int           // Retries after the first attempt
	BaseDelay   time.Duration // Doubles after every retry
	CallTimeout time.Duration // Per-attempt timeout, zero disables
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// JitterFunc returns the random jitter added to every backoff
type JitterFunc func() time.Duration

// Invoker runs operations with bounded exponential backoff
type Invoker struct {
	policy Policy
	sleep  Sleeper
	jitter JitterFunc
	logger *zap.Logger
}

// Option configures an Invoker
type Option func(*Invoker)

// WithSleeper replaces the backoff sleep (tests use a recording no-op)
func WithSleeper(s Sleeper) Option {
	return func(i *Invoker) {
		i.sleep = s
	}
}

// WithJitter replaces the jitter source
func WithJitter(j JitterFunc) Option {
	return func(i *Invoker) {
		i.jitter = j
	}
}

// WithLogger sets the logger used for retry warnings
func WithLogger(l *zap.Logger) Option {
	return func(i *Invoker) {
		if l != nil {
			i.logger = l
		}
	}
}

// New creates an invoker for the given policy
func New(policy Policy, opts ...Option) *Invoker {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	inv := &Invoker{
		policy: policy,
		sleep:  SleepContext,
		jitter: func() time.Duration { return rand.N(time.Second) },
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Policy returns the invoker's retry budget
func (i *Invoker) Policy() Policy {
	return i.policy
}

// Do runs op until it succeeds, fails permanently or the budget is spent.
// The returned error is op's last error, unchanged.
func (i *Invoker) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	delay := i.policy.BaseDelay
	retries := i.policy.MaxRetries

	for attempt := 1; ; attempt++ {
		err := i.attempt(ctx, op)
		if err == nil {
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(err, ctxErr) {
				return err
			}
			return errors.Join(err, ctxErr)
		}

		class := Classify(err)
		if class == ClassPermanent || retries <= 0 {
			return err
		}

		wait := delay
		if class == ClassRateLimit {
			wait = delay * 3
		}
		wait += i.jitter()

		i.logger.Warn("retrying upstream call",
			zap.String("call", name),
			zap.Int("attempt", attempt),
			zap.String("class", class.String()),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)

		if sleepErr := i.sleep(ctx, wait); sleepErr != nil {
			return errors.Join(err, sleepErr)
		}

		retries--
		delay *= 2
	}
}

func (i *Invoker) attempt(ctx context.Context, op func(ctx context.Context) error) error {
	if i.policy.CallTimeout <= 0 {
		return op(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, i.policy.CallTimeout)
	defer cancel()
	return op(callCtx)
}

// Value is Do for operations that produce a result
func Value[T any](ctx context.Context, inv *Invoker, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := inv.Do(ctx, name, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// SleepContext sleeps for d unless ctx finishes first
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
