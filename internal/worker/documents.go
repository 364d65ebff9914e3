package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/citeguard/internal/model"
)

// DocumentAnalyzer produces a report for one document (file path or URL)
type DocumentAnalyzer interface {
	AnalyzeSource(ctx context.Context, source string) (*model.AnalysisReport, error)
}

// DocumentJob analyzes a single document
type DocumentJob struct {
	Index    int
	Source   string
	Analyzer DocumentAnalyzer
}

// Execute executes the analysis job
func (j *DocumentJob) Execute(ctx context.Context) Result {
	report, err := j.Analyzer.AnalyzeSource(ctx, j.Source)
	return &DocumentResult{
		Index:  j.Index,
		Source: j.Source,
		Report: report,
		Error:  err,
	}
}

// DocumentResult is the outcome for one document
type DocumentResult struct {
	Index  int
	Source string
	Report *model.AnalysisReport
	Error  error
}

// GetError returns the error from the analysis
func (r *DocumentResult) GetError() error {
	return r.Error
}

// BatchProcessor analyzes several documents concurrently
type BatchProcessor struct {
	analyzer    DocumentAnalyzer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(analyzer DocumentAnalyzer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// ProcessSources returns one result per source, in input order. Sources
// never started because ctx ended carry ctx's error.
func (b *BatchProcessor) ProcessSources(ctx context.Context, sources []string) []*DocumentResult {
	if len(sources) == 0 {
		return []*DocumentResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, source := range sources {
		if !pool.Submit(&DocumentJob{Index: i, Source: source, Analyzer: b.analyzer}) {
			break
		}
	}

	out := make([]*DocumentResult, len(sources))
	for _, result := range pool.Wait() {
		r := result.(*DocumentResult)
		out[r.Index] = r
	}

	for i, r := range out {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out[i] = &DocumentResult{Index: i, Source: sources[i], Error: err}
		}
	}
	return out
}

// ProcessFile reads sources from a file and processes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*DocumentResult, error) {
	sources, err := ReadSourcesFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}

	return b.ProcessSources(ctx, sources), nil
}

// ReadSourcesFromFile reads document paths or URLs from a file (one per line)
func ReadSourcesFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var sources []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			sources = append(sources, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return sources, nil
}
