// Package pipeline orchestrates a full business run: crawl, classify,
// merge, extract, score, persist artifacts, and record the crawl in
// the retention ledger.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pawtrawl/pawtrawl/internal/classifier"
	"github.com/pawtrawl/pawtrawl/internal/extract"
	"github.com/pawtrawl/pawtrawl/internal/merger"
	"github.com/pawtrawl/pawtrawl/internal/page"
	"github.com/pawtrawl/pawtrawl/internal/retention"
	"github.com/pawtrawl/pawtrawl/internal/scoring"
)

// Config controls pipeline output and batch pacing.
type Config struct {
	// OutputDir receives merged documents, extraction results and
	// metrics.
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	// StorageDir receives the raw crawl audit files.
	StorageDir string `mapstructure:"storage_dir" yaml:"storage_dir"`
	// IncludeHTML keeps raw page HTML in the crawl audit file.
	IncludeHTML bool `mapstructure:"include_html" yaml:"include_html"`
	// BatchDelay spaces businesses in batch mode.
	BatchDelay time.Duration `mapstructure:"batch_delay" yaml:"batch_delay"`
}

// DefaultConfig returns the standard pipeline settings.
func DefaultConfig() Config {
	return Config{
		OutputDir:  "./output",
		StorageDir: "./crawl_storage",
		BatchDelay: 2 * time.Second,
	}
}

// Crawler runs one site crawl. Implemented by crawlclient.Client.
type Crawler interface {
	Crawl(ctx context.Context, crawlID, businessURL string) (page.SiteCrawl, error)
}

// Extractor runs the structured extraction pass over a merged
// document. Implemented by extract.Extractor.
type Extractor interface {
	Extract(ctx context.Context, merged page.MergedContent) extract.Result
}

// Result is everything one business run produced.
type Result struct {
	Crawl   page.SiteCrawl
	Merged  page.MergedContent
	Method  string
	Metrics scoring.QualityMetrics

	CrawlFile     string
	MergedFile    string
	ExtractedFile string
	MetricsFile   string
}

// Pipeline wires the stages together.
type Pipeline struct {
	cfg        Config
	crawler    Crawler
	classifier *classifier.Classifier
	merger     *merger.Merger
	extractor  Extractor
	ledger     *retention.Ledger
	logger     *slog.Logger
	newCrawlID func() string
}

// New creates a pipeline.
func New(cfg Config, crawler Crawler, cls *classifier.Classifier, m *merger.Merger,
	extractor Extractor, ledger *retention.Ledger, logger *slog.Logger) *Pipeline {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./output"
	}
	if cfg.StorageDir == "" {
		cfg.StorageDir = "./crawl_storage"
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:        cfg,
		crawler:    crawler,
		classifier: cls,
		merger:     m,
		extractor:  extractor,
		ledger:     ledger,
		logger:     logger,
		newCrawlID: func() string { return uuid.NewString() },
	}
}

// Run processes one business end to end. A failed run still returns a
// populated Metrics value (score 0, error message set) so batch mode
// can aggregate it.
func (p *Pipeline) Run(ctx context.Context, businessURL, businessType string) (Result, error) {
	if !extract.ValidBusinessType(businessType) {
		err := fmt.Errorf("unknown business type: %s", businessType)
		return Result{Metrics: scoring.FailedMetrics(businessURL, businessType, err.Error(), 0)}, err
	}

	crawlID := p.newCrawlID()
	p.logger.Info("Processing business",
		"url", businessURL, "business_type", businessType, "crawl_id", crawlID)

	if p.ledger != nil {
		if _, err := p.ledger.Register(businessURL, businessType, ""); err != nil {
			return Result{Metrics: scoring.FailedMetrics(businessURL, businessType, err.Error(), 0)},
				fmt.Errorf("failed to register business: %w", err)
		}
	}

	crawl, err := p.crawler.Crawl(ctx, crawlID, businessURL)
	crawl.BusinessType = businessType
	if err != nil {
		return Result{
			Crawl:   crawl,
			Metrics: scoring.FailedMetrics(businessURL, businessType, err.Error(), 0),
		}, fmt.Errorf("crawl failed: %w", err)
	}

	classified := p.classifier.Classify(ctx, crawl.Pages)
	crawl.Pages = classified
	summary := classifier.Summarize(classified)
	p.logger.Info("Pages classified",
		"crawl_id", crawlID,
		"total", summary.TotalPages,
		"high_relevance", summary.HighRelevancePages,
		"with_pricing_signals", summary.PagesWithPricingSignals)

	result := Result{Crawl: crawl}

	result.CrawlFile, err = p.saveCrawlData(crawl)
	if err != nil {
		return result, fmt.Errorf("failed to save crawl data: %w", err)
	}

	merged := p.merger.Merge(classified, crawlID, businessURL, businessType)
	result.Merged = merged
	p.logger.Info("Pages merged",
		"crawl_id", crawlID, "merged", merged.PagesMerged, "excluded", merged.PagesExcluded)

	if merged.PagesMerged == 0 {
		result.Method = extract.MethodFailed
		result.Metrics = scoring.FailedMetrics(
			businessURL, businessType, "no relevant content after merge", 0)
		result.MetricsFile, _ = p.saveMetrics(crawlID, result.Metrics)
		p.recordCrawl(crawlID, businessURL, businessType, result.CrawlFile, crawl)
		return result, nil
	}

	result.MergedFile, err = p.saveMerged(merged)
	if err != nil {
		return result, fmt.Errorf("failed to save merged content: %w", err)
	}

	extraction := p.extractor.Extract(ctx, merged)
	result.Method = extraction.Method
	p.logger.Info("Extraction finished",
		"crawl_id", crawlID, "method", extraction.Method, "elapsed", extraction.Elapsed)

	success := extraction.Method != extract.MethodFailed && extraction.Extraction != nil

	totalTime := extraction.Elapsed.Seconds()
	if crawl.CompletedAt != nil {
		totalTime += crawl.CompletedAt.Sub(crawl.StartedAt).Seconds()
	}

	errMsg := ""
	if !success {
		errMsg = "Extraction failed"
	}
	result.Metrics = scoring.BuildMetrics(
		businessURL, businessType, extraction.Extraction, success, totalTime, errMsg)

	if success {
		result.ExtractedFile, err = p.saveExtracted(crawlID, merged, crawl.PagesCrawled, extraction)
		if err != nil {
			return result, fmt.Errorf("failed to save extracted data: %w", err)
		}
	}

	result.MetricsFile, err = p.saveMetrics(crawlID, result.Metrics)
	if err != nil {
		return result, fmt.Errorf("failed to save metrics: %w", err)
	}

	p.recordCrawl(crawlID, businessURL, businessType, result.CrawlFile, crawl)

	p.logger.Info("Business processed",
		"crawl_id", crawlID,
		"quality_score", result.Metrics.QualityScore,
		"prices_found", result.Metrics.PriceCount)

	return result, nil
}

// recordCrawl writes the crawl into the retention ledger. Ledger
// failures are logged, not fatal: the artifacts already exist.
func (p *Pipeline) recordCrawl(crawlID, businessURL, businessType, crawlFile string, crawl page.SiteCrawl) {
	if p.ledger == nil {
		return
	}
	if _, err := p.ledger.RecordCrawl(
		crawlID, businessURL, businessType, crawlFile, crawl.PagesCrawled, crawl.CreditsUsed); err != nil {
		p.logger.Error("Failed to record crawl in ledger", "crawl_id", crawlID, "error", err)
	}
}

// BatchItem is one business in a batch run.
type BatchItem struct {
	URL          string `json:"url" yaml:"url"`
	BusinessType string `json:"business_type" yaml:"business_type"`
}

// RunBatch processes businesses sequentially. A failed business
// yields a failed metrics row and the batch continues; cancellation
// aborts the remaining items.
func (p *Pipeline) RunBatch(ctx context.Context, items []BatchItem) ([]scoring.QualityMetrics, error) {
	metrics := make([]scoring.QualityMetrics, 0, len(items))

	for i, item := range items {
		if i > 0 {
			select {
			case <-ctx.Done():
				return metrics, ctx.Err()
			case <-time.After(p.cfg.BatchDelay):
			}
		}

		result, err := p.Run(ctx, item.URL, item.BusinessType)
		if err != nil {
			p.logger.Error("Business failed", "url", item.URL, "error", err)
			if ctx.Err() != nil {
				metrics = append(metrics, result.Metrics)
				return metrics, ctx.Err()
			}
		}
		metrics = append(metrics, result.Metrics)
	}

	if err := p.saveBatchSummary(metrics); err != nil {
		p.logger.Error("Failed to save batch summary", "error", err)
	}

	return metrics, nil
}
