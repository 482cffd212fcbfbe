package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/ppiankov/crimestats/internal/cache"
	"github.com/ppiankov/crimestats/internal/extract"
)

const chartPrompt = "Use the image provided to create a csv file. Grab data from %d to %d. " +
	"The first column of the csv should be the year and the second column should be " +
	"how many times a given crime was commited in that year."

// ChartReader transcribes crime chart images into year,count text
type ChartReader struct {
	provider  Provider
	modelName string
	window    extract.YearWindow
	cache     cache.Cache
	ttl       time.Duration
}

// NewChartReader creates a chart reader for a vision-capable model
func NewChartReader(provider Provider, modelName string, window extract.YearWindow) *ChartReader {
	return &ChartReader{
		provider:  provider,
		modelName: modelName,
		window:    window,
	}
}

// WithCache enables response caching
func (r *ChartReader) WithCache(c cache.Cache, ttl time.Duration) *ChartReader {
	r.cache = c
	r.ttl = ttl
	return r
}

// Prompt returns the instruction sent with every chart
func (r *ChartReader) Prompt() string {
	return fmt.Sprintf(chartPrompt, r.window.Min, r.window.Max)
}

// ReadChart sends the chart to the model and returns its raw answer.
// imageRef is a remote URL or a local image path.
func (r *ChartReader) ReadChart(ctx context.Context, imageRef string) (string, error) {
	imageURL, err := ImageURL(imageRef)
	if err != nil {
		return "", err
	}

	return completeText(ctx, r.provider, r.cache, r.ttl, Request{
		Model:    r.modelName,
		Prompt:   r.Prompt(),
		ImageURL: imageURL,
	})
}

// ImageURL returns a URL the model can fetch. Remote and data URLs pass
// through; local files are inlined as base64 data URLs.
func ImageURL(ref string) (string, error) {
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "data:") {
		return ref, nil
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", fmt.Errorf("%s is not an image (detected %s)", ref, mtype.String())
	}

	return "data:" + mtype.String() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
