package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/crimestats/internal/cache"
)

const countPrompt = "How many %s crimes were committed in %s according to the report below? " +
	"Please provide only the number.\n\n%s"

// ReportQuerier asks a text model for single category counts in a report
type ReportQuerier struct {
	provider  Provider
	modelName string
	cache     cache.Cache
	ttl       time.Duration
}

// NewReportQuerier creates a report querier
func NewReportQuerier(provider Provider, modelName string) *ReportQuerier {
	return &ReportQuerier{
		provider:  provider,
		modelName: modelName,
	}
}

// WithCache enables response caching
func (q *ReportQuerier) WithCache(c cache.Cache, ttl time.Duration) *ReportQuerier {
	q.cache = c
	q.ttl = ttl
	return q
}

// QueryCount returns the model's count for category in year, cleaned of
// surrounding whitespace and thousands separators
func (q *ReportQuerier) QueryCount(ctx context.Context, category string, year string, reportText string) (string, error) {
	answer, err := completeText(ctx, q.provider, q.cache, q.ttl, Request{
		Model:  q.modelName,
		Prompt: fmt.Sprintf(countPrompt, category, year, reportText),
	})
	if err != nil {
		return "", err
	}
	return CleanCount(answer), nil
}

// CleanCount trims an answer and removes thousands separators
func CleanCount(answer string) string {
	return strings.ReplaceAll(strings.TrimSpace(answer), ",", "")
}
