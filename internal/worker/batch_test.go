package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/citeguard/internal/model"
)

// fakeVerifier answers by title: "fail-*" errors, "real-*" has a
// metadata match, anything else has no signal at all.
type fakeVerifier struct {
	delay    func(c model.CandidateCitation) time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeVerifier) Verify(ctx context.Context, c model.CandidateCitation) (*model.MetadataSignal, model.GroundingSignal, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		old := f.maxSeen.Load()
		if n <= old || f.maxSeen.CompareAndSwap(old, n) {
			break
		}
	}

	if f.delay != nil {
		select {
		case <-time.After(f.delay(c)):
		case <-ctx.Done():
			return nil, model.GroundingSignal{}, ctx.Err()
		}
	}

	switch {
	case len(c.Title) > 5 && c.Title[:5] == "fail-":
		return nil, model.GroundingSignal{}, errors.New("service unavailable")
	case len(c.Title) > 5 && c.Title[:5] == "real-":
		return &model.MetadataSignal{Title: c.Title}, model.GroundingSignal{}, nil
	}
	return nil, model.GroundingSignal{}, nil
}

// fakeReconciler marks metadata matches VERIFIED and the rest HALLUCINATED
type fakeReconciler struct{}

func (fakeReconciler) Reconcile(c model.CandidateCitation, meta *model.MetadataSignal, ground model.GroundingSignal) model.VerifiedCitation {
	if meta != nil {
		return model.VerifiedCitation{
			Title:           c.Title,
			Verdict:         model.VerdictVerified,
			ConfidenceScore: 100,
			DatabaseMatch:   &model.DatabaseMatch{Source: model.SourceMetadataIndex, Title: meta.Title},
		}
	}
	return model.VerifiedCitation{Title: c.Title, Verdict: model.VerdictHallucinated}
}

func (fakeReconciler) Ambiguous(c model.CandidateCitation, reason string) model.VerifiedCitation {
	return model.VerifiedCitation{Title: c.Title, Verdict: model.VerdictAmbiguous, AnalysisNotes: reason}
}

// recordingPacer records pacing delays without sleeping
type recordingPacer struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingPacer) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func candidates(titles ...string) []model.CandidateCitation {
	out := make([]model.CandidateCitation, len(titles))
	for i, title := range titles {
		out[i] = model.CandidateCitation{Title: title, OriginalText: title}
	}
	return out
}

func TestBatchScheduler_GroupsAndPacing(t *testing.T) {
	pacer := &recordingPacer{}
	var progress []int
	sched := NewBatchScheduler(&fakeVerifier{}, fakeReconciler{},
		SchedulerConfig{GroupSize: 2, GroupDelay: 2 * time.Second},
		WithPacingSleeper(pacer.sleep),
		WithProgress(func(done, total int) {
			if total != 5 {
				t.Errorf("expected total 5, got %d", total)
			}
			progress = append(progress, done)
		}),
	)

	in := candidates("real-a", "b", "real-c", "d", "real-e")
	out, err := sched.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(out) != 5 {
		t.Fatalf("expected 5 results, got %d", len(out))
	}
	for i := range in {
		if out[i].Title != in[i].Title {
			t.Errorf("result %d is %q, want %q", i, out[i].Title, in[i].Title)
		}
	}

	// 3 groups (2,2,1) need exactly 2 pauses
	if len(pacer.delays) != 2 {
		t.Errorf("expected 2 pacing delays, got %v", pacer.delays)
	}
	for _, d := range pacer.delays {
		if d != 2*time.Second {
			t.Errorf("expected 2s pacing, got %v", d)
		}
	}
	if fmt.Sprint(progress) != "[2 4 5]" {
		t.Errorf("unexpected progress %v", progress)
	}
}

func TestBatchScheduler_PreservesOrderUnderLatency(t *testing.T) {
	// Earlier members finish last
	v := &fakeVerifier{delay: func(c model.CandidateCitation) time.Duration {
		if c.Title == "real-slow" {
			return 30 * time.Millisecond
		}
		return time.Millisecond
	}}
	sched := NewBatchScheduler(v, fakeReconciler{}, SchedulerConfig{GroupSize: 3})

	in := candidates("real-slow", "fast", "real-fast", "real-slow", "x")
	out, err := sched.Run(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if out[i].Title != in[i].Title {
			t.Errorf("result %d is %q, want %q", i, out[i].Title, in[i].Title)
		}
	}
}

func TestBatchScheduler_MembersRunConcurrently(t *testing.T) {
	v := &fakeVerifier{delay: func(model.CandidateCitation) time.Duration { return 20 * time.Millisecond }}
	sched := NewBatchScheduler(v, fakeReconciler{}, SchedulerConfig{GroupSize: 4})

	if _, err := sched.Run(context.Background(), candidates("a", "b", "c", "d", "e")); err != nil {
		t.Fatal(err)
	}
	if got := v.maxSeen.Load(); got < 2 || got > 4 {
		t.Errorf("expected 2-4 concurrent verifications, saw %d", got)
	}
}

func TestBatchScheduler_GroupIsolation(t *testing.T) {
	pacer := &recordingPacer{}
	sched := NewBatchScheduler(&fakeVerifier{}, fakeReconciler{},
		SchedulerConfig{GroupSize: 2, GroupDelay: time.Second},
		WithPacingSleeper(pacer.sleep),
	)

	// Group 2 of 3 contains one failing member
	out, err := sched.Run(context.Background(), candidates("real-a", "b", "fail-c", "real-d", "real-e", "f"))
	if err != nil {
		t.Fatalf("a failing group must not abort the run: %v", err)
	}

	want := []model.Verdict{
		model.VerdictVerified, model.VerdictHallucinated,
		model.VerdictAmbiguous, model.VerdictAmbiguous,
		model.VerdictVerified, model.VerdictHallucinated,
	}
	for i, v := range want {
		if out[i].Verdict != v {
			t.Errorf("result %d verdict %s, want %s", i, out[i].Verdict, v)
		}
	}
	if out[3].ConfidenceScore != 0 || out[3].DatabaseMatch != nil {
		t.Errorf("ambiguous record carries a match: %+v", out[3])
	}
}

func TestBatchScheduler_MemberIsolation(t *testing.T) {
	sched := NewBatchScheduler(&fakeVerifier{}, fakeReconciler{},
		SchedulerConfig{GroupSize: 2, Isolation: IsolateMember},
	)

	out, err := sched.Run(context.Background(), candidates("fail-a", "real-b"))
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Verdict != model.VerdictAmbiguous {
		t.Errorf("expected failing member AMBIGUOUS, got %s", out[0].Verdict)
	}
	if out[1].Verdict != model.VerdictVerified {
		t.Errorf("expected healthy member VERIFIED, got %s", out[1].Verdict)
	}
}

func TestBatchScheduler_Empty(t *testing.T) {
	pacer := &recordingPacer{}
	sched := NewBatchScheduler(&fakeVerifier{}, fakeReconciler{}, SchedulerConfig{GroupDelay: time.Second},
		WithPacingSleeper(pacer.sleep))

	out, err := sched.Run(context.Background(), nil)
	if err != nil || len(out) != 0 {
		t.Errorf("expected empty result, got %v, %v", out, err)
	}
	if len(pacer.delays) != 0 {
		t.Errorf("expected no pacing, got %v", pacer.delays)
	}
}

func TestBatchScheduler_CancelledBetweenGroups(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := NewBatchScheduler(&fakeVerifier{}, fakeReconciler{},
		SchedulerConfig{GroupSize: 2, GroupDelay: time.Second},
		WithPacingSleeper(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)

	out, err := sched.Run(ctx, candidates("real-a", "b", "real-c", "d"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(out) != 2 || out[0].Title != "real-a" || out[1].Title != "b" {
		t.Errorf("expected the first group only, got %+v", out)
	}
}

func TestParseIsolation(t *testing.T) {
	if ParseIsolation("member") != IsolateMember {
		t.Error("expected member isolation")
	}
	if ParseIsolation("") != IsolateGroup || ParseIsolation("bogus") != IsolateGroup {
		t.Error("expected group isolation by default")
	}
}
