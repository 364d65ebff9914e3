package validate

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/citeguard/internal/grounding"
	"github.com/ppiankov/citeguard/internal/model"
	"github.com/ppiankov/citeguard/internal/retry"
)

// minSearchTitleRunes is the shortest title worth a bibliographic search
const minSearchTitleRunes = 10

var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[-._;()/:A-Za-z0-9]+`)

// MetadataIndex is the canonical bibliographic index
type MetadataIndex interface {
	LookupDOI(ctx context.Context, doi string) (*model.MetadataSignal, error)
	Search(ctx context.Context, query string) (*model.MetadataSignal, error)
}

// Grounder confirms works through open-web search
type Grounder interface {
	Ground(ctx context.Context, query string) (model.GroundingSignal, error)
}

// Verifier gathers both verification signals for a candidate
type Verifier struct {
	index    MetadataIndex
	grounder Grounder
	invoker  *retry.Invoker
	logger   *zap.Logger
}

// NewVerifier creates a verifier. A nil grounder always reports unverified.
func NewVerifier(index MetadataIndex, grounder Grounder, invoker *retry.Invoker, logger *zap.Logger) *Verifier {
	if invoker == nil {
		invoker = retry.New(retry.Policy{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		index:    index,
		grounder: grounder,
		invoker:  invoker,
		logger:   logger,
	}
}

// Verify queries the metadata index and the grounding service concurrently.
// A nil metadata signal means the index had nothing usable. Any upstream
// failure left after retries fails the whole call.
func (v *Verifier) Verify(ctx context.Context, c model.CandidateCitation) (*model.MetadataSignal, model.GroundingSignal, error) {
	var (
		meta   *model.MetadataSignal
		ground model.GroundingSignal
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		meta, err = v.lookupMetadata(gctx, c)
		return err
	})
	g.Go(func() error {
		var err error
		ground, err = v.ground(gctx, c)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, model.GroundingSignal{}, err
	}

	v.logger.Debug("candidate verified",
		zap.String("title", c.Title),
		zap.Bool("metadata", meta != nil),
		zap.Bool("grounded", ground.Verified),
	)
	return meta, ground, nil
}

func (v *Verifier) lookupMetadata(ctx context.Context, c model.CandidateCitation) (*model.MetadataSignal, error) {
	if v.index == nil {
		return nil, nil
	}

	if doi := ExtractDOI(c.DOI); doi != "" {
		signal, err := retry.Value(ctx, v.invoker, "metadata.doi", func(ctx context.Context) (*model.MetadataSignal, error) {
			return v.index.LookupDOI(ctx, doi)
		})
		if err != nil {
			return nil, fmt.Errorf("metadata lookup: %w", err)
		}
		if signal != nil {
			return signal, nil
		}
	}

	title := strings.TrimSpace(c.Title)
	if utf8.RuneCountInString(title) <= minSearchTitleRunes {
		return nil, nil
	}

	query := strings.TrimSpace(title + " " + strings.TrimSpace(c.Author))
	signal, err := retry.Value(ctx, v.invoker, "metadata.search", func(ctx context.Context) (*model.MetadataSignal, error) {
		return v.index.Search(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("metadata search: %w", err)
	}
	return signal, nil
}

func (v *Verifier) ground(ctx context.Context, c model.CandidateCitation) (model.GroundingSignal, error) {
	if v.grounder == nil {
		return model.GroundingSignal{}, nil
	}

	query := grounding.Query(c)
	signal, err := retry.Value(ctx, v.invoker, "grounding", func(ctx context.Context) (model.GroundingSignal, error) {
		return v.grounder.Ground(ctx, query)
	})
	if err != nil {
		return model.GroundingSignal{}, fmt.Errorf("grounding: %w", err)
	}
	return signal, nil
}

// ExtractDOI returns the canonical DOI inside s, or "" when s has none.
// Sentence punctuation trailing the DOI is dropped.
func ExtractDOI(s string) string {
	if !strings.Contains(s, "10.") {
		return ""
	}
	doi := doiPattern.FindString(s)
	return strings.TrimRight(doi, ".,;:")
}
