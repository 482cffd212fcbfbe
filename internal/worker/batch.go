package worker

import (
	"context"
	"fmt"
)

// CountQuerier asks a model for one category count in a report
type CountQuerier interface {
	QueryCount(ctx context.Context, category string, year string, reportText string) (string, error)
}

// ChartReader asks a model to transcribe one chart image
type ChartReader interface {
	ReadChart(ctx context.Context, imageRef string) (string, error)
}

// CountQuery is one (category, year) question against a report
type CountQuery struct {
	Category   string
	Year       string
	ReportText string
}

// CountJob executes a CountQuery
type CountJob struct {
	Query   CountQuery
	Querier CountQuerier
	Limiter *Limiter
	Key     string
}

// Execute executes the count job
func (j *CountJob) Execute(ctx context.Context) Result {
	if err := wait(ctx, j.Limiter, j.Key); err != nil {
		return &CountResult{Query: j.Query, Error: err}
	}

	count, err := j.Querier.QueryCount(ctx, j.Query.Category, j.Query.Year, j.Query.ReportText)
	if err != nil {
		return &CountResult{Query: j.Query, Error: fmt.Errorf("query %s %s: %w", j.Query.Category, j.Query.Year, err)}
	}
	return &CountResult{Query: j.Query, Count: count}
}

// CountResult represents the result of a count job
type CountResult struct {
	Query CountQuery
	Count string
	Error error
}

// GetError returns the error from the count result
func (r *CountResult) GetError() error {
	return r.Error
}

// ChartJob transcribes one chart image
type ChartJob struct {
	ImageRef string
	Reader   ChartReader
	Limiter  *Limiter
	Key      string
}

// Execute executes the chart job
func (j *ChartJob) Execute(ctx context.Context) Result {
	if err := wait(ctx, j.Limiter, j.Key); err != nil {
		return &ChartResult{ImageRef: j.ImageRef, Error: err}
	}

	text, err := j.Reader.ReadChart(ctx, j.ImageRef)
	if err != nil {
		return &ChartResult{ImageRef: j.ImageRef, Error: fmt.Errorf("read chart %s: %w", j.ImageRef, err)}
	}
	return &ChartResult{ImageRef: j.ImageRef, Text: text}
}

// ChartResult represents the result of a chart job
type ChartResult struct {
	ImageRef string
	Text     string
	Error    error
}

// GetError returns the error from the chart result
func (r *ChartResult) GetError() error {
	return r.Error
}

func wait(ctx context.Context, limiter *Limiter, key string) error {
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx, key); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

// BatchProcessor runs model jobs concurrently under a shared rate limit
type BatchProcessor struct {
	concurrency int
	limiter     *Limiter
}

// NewBatchProcessor creates a new batch processor. A non-positive
// requestsPerSecond disables rate limiting.
func NewBatchProcessor(concurrency int, requestsPerSecond float64, burst int) *BatchProcessor {
	return &BatchProcessor{
		concurrency: concurrency,
		limiter:     NewLimiter(requestsPerSecond, burst),
	}
}

// SetKeyRate overrides the rate limit for one model
func (b *BatchProcessor) SetKeyRate(key string, requestsPerSecond float64, burst int) {
	b.limiter.SetKeyRate(key, requestsPerSecond, burst)
}

// ProcessQueries runs every query concurrently. Results are unordered.
func (b *BatchProcessor) ProcessQueries(ctx context.Context, querier CountQuerier, key string, queries []CountQuery) []*CountResult {
	if len(queries) == 0 {
		return []*CountResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, q := range queries {
		pool.Submit(&CountJob{
			Query:   q,
			Querier: querier,
			Limiter: b.limiter,
			Key:     key,
		})
	}

	results := pool.Wait()

	out := make([]*CountResult, len(results))
	for i, result := range results {
		out[i] = result.(*CountResult)
	}
	return out
}

// ProcessCharts transcribes every chart concurrently. Results are unordered.
func (b *BatchProcessor) ProcessCharts(ctx context.Context, reader ChartReader, key string, imageRefs []string) []*ChartResult {
	if len(imageRefs) == 0 {
		return []*ChartResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, ref := range imageRefs {
		pool.Submit(&ChartJob{
			ImageRef: ref,
			Reader:   reader,
			Limiter:  b.limiter,
			Key:      key,
		})
	}

	results := pool.Wait()

	out := make([]*ChartResult, len(results))
	for i, result := range results {
		out[i] = result.(*ChartResult)
	}
	return out
}
