package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/crimestats/internal/cache"
	"github.com/ppiankov/crimestats/internal/extract"
	"github.com/ppiankov/crimestats/internal/llm"
	"github.com/ppiankov/crimestats/internal/logging"
	"github.com/ppiankov/crimestats/internal/model"
	"github.com/ppiankov/crimestats/internal/offense"
	"github.com/ppiankov/crimestats/internal/pdfdoc"
	"github.com/ppiankov/crimestats/internal/series"
	"github.com/ppiankov/crimestats/internal/worker"
)

// ErrorCount is recorded for report queries that failed
const ErrorCount = "ERROR"

var (
	// ErrUnknownSource is returned for cities with an unsupported source kind
	ErrUnknownSource = errors.New("unknown source kind")

	// ErrModelUnavailable is returned when a city needs a model but none is configured
	ErrModelUnavailable = errors.New("model provider unavailable")

	// ErrDuplicateChart is recorded for an image whose output file name is taken
	ErrDuplicateChart = errors.New("duplicate chart output name")
)

// Pipeline ingests city sources into per-category CSV files
type Pipeline struct {
	config  *model.Config
	charts  worker.ChartReader
	querier worker.CountQuerier
	batch   *worker.BatchProcessor
}

// NewPipeline creates a pipeline with explicit model collaborators.
// Either may be nil when no configured city needs it.
func NewPipeline(cfg *model.Config, charts worker.ChartReader, querier worker.CountQuerier) *Pipeline {
	batch := worker.NewBatchProcessor(
		cfg.Concurrency.Workers,
		cfg.RateLimiting.RequestsPerSecond,
		cfg.RateLimiting.BurstSize,
	)
	for _, r := range cfg.RateLimiting.PerModel {
		batch.SetKeyRate(r.Model, r.RequestsPerSecond, r.BurstSize)
	}

	return &Pipeline{
		config:  cfg,
		charts:  charts,
		querier: querier,
		batch:   batch,
	}
}

// FromConfig builds the model provider and response cache from cfg.
// A provider that cannot be created (missing API key) leaves chart and
// report ingestion unavailable; offense logs still work.
func FromConfig(ctx context.Context, cfg *model.Config) *Pipeline {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		logging.FromContext(ctx).Warn("model provider not configured", "error", err)
		return NewPipeline(cfg, nil, nil)
	}

	var c cache.Cache
	memoryTTL, diskTTL := cfg.Cache.TTLs()
	if cfg.Cache.Enabled {
		c = cache.NewLayeredCache(memoryTTL, cfg.Cache.Dir, diskTTL)
	}

	charts := llm.NewChartReader(provider, cfg.LLM.VisionModel, cfg.Years)
	querier := llm.NewReportQuerier(provider, cfg.LLM.TextModel)
	if c != nil {
		charts.WithCache(c, diskTTL)
		querier.WithCache(c, diskTTL)
	}

	return NewPipeline(cfg, charts, querier)
}

// Summary reports the outcome of ingesting one city
type Summary struct {
	City      string
	Source    model.SourceKind
	Written   []string // output files, sorted
	Fallbacks []string // files holding an unparsed model response
	Failures  []string // per-item failures that did not abort the run
	Duration  time.Duration
}

func (s *Summary) written(file string) {
	for _, w := range s.Written {
		if w == file {
			return
		}
	}
	s.Written = append(s.Written, file)
}

// Ingest processes one city according to its source kind
func (p *Pipeline) Ingest(ctx context.Context, city model.City) (*Summary, error) {
	start := time.Now()
	summary := &Summary{City: city.Name, Source: city.Source}

	root := p.config.CityDir(city)
	in, out := city.InputDir(root), city.OutputDir(root)

	var err error
	switch city.Source {
	case model.SourceChart:
		err = p.ingestCharts(ctx, city, in, out, summary)
	case model.SourceReport:
		err = p.ingestReports(ctx, city, in, out, summary)
	case model.SourceOffenseLog:
		err = p.ingestOffenseLogs(ctx, city, in, out, summary)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownSource, city.Source)
	}

	sort.Strings(summary.Written)
	sort.Strings(summary.Fallbacks)
	summary.Duration = time.Since(start)
	if err != nil {
		return summary, fmt.Errorf("%s: %w", city.Name, err)
	}
	return summary, nil
}

// IngestAll processes cities in order. A failing city does not stop the rest.
func (p *Pipeline) IngestAll(ctx context.Context, cities []model.City) ([]*Summary, error) {
	var summaries []*Summary
	var errs []error

	for _, city := range cities {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		summary, err := p.Ingest(ctx, city)
		summaries = append(summaries, summary)
		if err != nil {
			logging.WithFields(ctx, "city", city.Name).Error("ingest failed", "error", err)
			errs = append(errs, err)
		}
	}

	return summaries, errors.Join(errs...)
}

func (p *Pipeline) ingestCharts(ctx context.Context, city model.City, in, out string, summary *Summary) error {
	if p.charts == nil {
		return ErrModelUnavailable
	}
	logger := logging.WithFields(ctx, "city", city.Name, "source", city.Source)

	// resolved ref -> output file; the first image claiming a name keeps it
	names := make(map[string]string, len(city.Images))
	owners := make(map[string]string, len(city.Images))
	refs := make([]string, 0, len(city.Images))
	for i, ref := range city.Images {
		resolved := resolveImage(in, ref)
		name := ChartFileName(i, ref)
		if owner, taken := owners[name]; taken {
			err := fmt.Errorf("%w: %s and %s both map to %s", ErrDuplicateChart, owner, ref, name)
			logger.Warn("skipping chart", "image", ref, "error", err)
			summary.Failures = append(summary.Failures, err.Error())
			continue
		}
		owners[name] = ref
		names[resolved] = name
		refs = append(refs, resolved)
	}

	results := p.batch.ProcessCharts(ctx, p.charts, p.config.LLM.VisionModel, refs)
	if err := ctx.Err(); err != nil {
		return err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ImageRef < results[j].ImageRef })

	for _, res := range results {
		if res.Error != nil {
			logger.Warn("chart failed", "image", res.ImageRef, "error", res.Error)
			summary.Failures = append(summary.Failures, res.Error.Error())
			continue
		}

		table, err := extract.Extract(res.Text, p.config.Years.Min, p.config.Years.Max)
		if err != nil {
			return err
		}

		name := names[res.ImageRef]
		if err := series.WriteResult(filepath.Join(out, name), table); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		summary.written(name)

		if table.Fallback() {
			logger.Warn("could not parse chart response, saved raw text", "image", res.ImageRef, "file", name)
			summary.Fallbacks = append(summary.Fallbacks, name)
			continue
		}
		logger.Info("saved chart table", "file", name, "rows", len(table.Rows))
	}

	return nil
}

func (p *Pipeline) ingestReports(ctx context.Context, city model.City, in, out string, summary *Summary) error {
	if p.querier == nil {
		return ErrModelUnavailable
	}
	logger := logging.WithFields(ctx, "city", city.Name, "source", city.Source)

	pdfs, err := filepath.Glob(filepath.Join(in, "*.pdf"))
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}
	if len(pdfs) == 0 {
		return fmt.Errorf("no PDF files found in %s", in)
	}
	sort.Strings(pdfs)

	// category -> year -> count
	counts := make(map[string]map[string]string, len(p.config.Categories))
	for _, category := range p.config.Categories {
		counts[category] = make(map[string]string)
	}

	for _, pdfPath := range pdfs {
		name := filepath.Base(pdfPath)

		year, err := city.YearFromFilename(name)
		if err != nil {
			logger.Warn("skipping report", "file", name, "error", err)
			summary.Failures = append(summary.Failures, err.Error())
			continue
		}

		doc, err := pdfdoc.Open(pdfPath)
		if err != nil {
			logger.Warn("skipping report", "file", name, "error", err)
			summary.Failures = append(summary.Failures, err.Error())
			continue
		}
		text := doc.ReportText(city.PageKeywords, p.config.LLM.MaxReportChars)
		logger.Info("processing report", "file", name, "year", year, "pages", len(doc.Pages))

		queries := make([]worker.CountQuery, len(p.config.Categories))
		for i, category := range p.config.Categories {
			queries[i] = worker.CountQuery{Category: category, Year: year, ReportText: text}
		}

		for _, res := range p.batch.ProcessQueries(ctx, p.querier, p.config.LLM.TextModel, queries) {
			count := res.Count
			if res.Error != nil {
				logger.Warn("query failed", "category", res.Query.Category, "year", year, "error", res.Error)
				summary.Failures = append(summary.Failures, res.Error.Error())
				count = ErrorCount
			}
			counts[res.Query.Category][year] = count
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// Rewrite every category after each report so partial runs keep results
		for _, category := range p.config.Categories {
			file := series.FileName(category)
			if err := series.WriteSeries(filepath.Join(out, file), rowsOf(counts[category])); err != nil {
				return fmt.Errorf("write %s: %w", file, err)
			}
			summary.written(file)
		}
	}

	return nil
}

func (p *Pipeline) ingestOffenseLogs(ctx context.Context, city model.City, in, out string, summary *Summary) error {
	logger := logging.WithFields(ctx, "city", city.Name, "source", city.Source)

	tally, err := offense.Aggregate(ctx, in, city)
	if err != nil {
		return err
	}
	if tally.Files == 0 {
		return fmt.Errorf("no offense logs loaded from %s", in)
	}
	logger.Info("aggregated offense logs", "files", tally.Files, "records", tally.Records, "categories", len(tally.Categories()))

	for _, s := range tally.Series() {
		file := s.Slug + ".csv"
		if err := series.WriteSeries(filepath.Join(out, file), s.Rows); err != nil {
			return fmt.Errorf("write %s: %w", file, err)
		}
		summary.written(file)
	}

	return nil
}

func rowsOf(byYear map[string]string) []extract.Row {
	rows := make([]extract.Row, 0, len(byYear))
	for year, count := range byYear {
		rows = append(rows, extract.Row{Year: year, Count: count})
	}
	return rows
}

// resolveImage leaves URLs and absolute paths alone and resolves other
// references against the city's input directory
func resolveImage(inputDir, ref string) string {
	if strings.Contains(ref, "://") || strings.HasPrefix(ref, "data:") || filepath.IsAbs(ref) {
		return ref
	}
	candidate := filepath.Join(inputDir, ref)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return ref
}

// ChartFileName names the output file after the image stem:
// "https://i.ibb.co/9Ht6dPkW/robbery.webp" -> "robbery.csv".
// Inline data: images have no stem and are named by their 1-based
// position in the city's image list: "chart_3.csv".
func ChartFileName(index int, imageRef string) string {
	if strings.HasPrefix(imageRef, "data:") {
		return fmt.Sprintf("chart_%d.csv", index+1)
	}
	base := filepath.Base(imageRef)
	if u, err := url.Parse(imageRef); err == nil && u.Scheme != "" && u.Path != "" {
		base = path.Base(u.Path)
	}
	return strings.TrimSuffix(base, path.Ext(base)) + ".csv"
}
