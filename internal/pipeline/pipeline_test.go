package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pawtrawl/pawtrawl/internal/classifier"
	"github.com/pawtrawl/pawtrawl/internal/extract"
	"github.com/pawtrawl/pawtrawl/internal/merger"
	"github.com/pawtrawl/pawtrawl/internal/page"
	"github.com/pawtrawl/pawtrawl/internal/retention"
	"github.com/pawtrawl/pawtrawl/internal/scoring"
)

type fakeCrawler struct {
	pages []page.CrawledPage
	err   error
	calls int
}

func (f *fakeCrawler) Crawl(_ context.Context, crawlID, businessURL string) (page.SiteCrawl, error) {
	f.calls++
	crawl := page.SiteCrawl{
		CrawlID:     crawlID,
		BusinessURL: businessURL,
		StartedAt:   time.Now().UTC(),
	}
	if f.err != nil {
		crawl.Status = page.CrawlFailed
		crawl.Errors = []string{f.err.Error()}
		return crawl, f.err
	}
	now := time.Now().UTC()
	crawl.Status = page.CrawlCompleted
	crawl.CompletedAt = &now
	crawl.Pages = f.pages
	crawl.PagesCrawled = len(f.pages)
	crawl.TotalPagesFound = len(f.pages)
	crawl.CreditsUsed = len(f.pages)
	return crawl, nil
}

type fakeExtractor struct {
	result extract.Result
	calls  int
}

func (f *fakeExtractor) Extract(_ context.Context, _ page.MergedContent) extract.Result {
	f.calls++
	return f.result
}

func crawledPage(url, markdown string) page.CrawledPage {
	return page.CrawledPage{
		URL:        url,
		Markdown:   markdown,
		StatusCode: 200,
		WordCount:  page.CountWords(markdown),
		ScrapedAt:  time.Now().UTC(),
	}
}

func richContent(topic string) string {
	return strings.Repeat(topic+" boarding for dogs with heated kennels and daily walks included. ", 15)
}

func successExtraction() extract.Result {
	name := "Example Kennels"
	phone := "01234 567890"
	price := 25.0
	return extract.Result{
		Extraction: &scoring.Extraction{
			BusinessName: &name,
			Contact:      &scoring.ContactInfo{Phone: &phone},
			Services: []scoring.ServicePrice{
				{ServiceName: "boarding", Price: &price},
			},
		},
		Method:  extract.MethodSchema,
		Elapsed: time.Second,
	}
}

func newTestPipeline(t *testing.T, crawler Crawler, extractor Extractor) (*Pipeline, *retention.Ledger, Config) {
	t.Helper()

	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.OutputDir = filepath.Join(dir, "output")
	cfg.StorageDir = filepath.Join(dir, "storage")
	cfg.BatchDelay = time.Millisecond

	ledgerCfg := retention.DefaultConfig()
	ledgerCfg.DatabasePath = filepath.Join(dir, "ledger.db")
	ledger, err := retention.NewLedger(ledgerCfg)
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}
	t.Cleanup(func() { _ = ledger.Close() })

	clsCfg := classifier.DefaultConfig()
	clsCfg.UseLLM = false
	cls := classifier.New(clsCfg, nil, nil)

	m, err := merger.New(merger.DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create merger: %v", err)
	}

	return New(cfg, crawler, cls, m, extractor, ledger, nil), ledger, cfg
}

func TestRunSuccess(t *testing.T) {
	crawler := &fakeCrawler{pages: []page.CrawledPage{
		crawledPage("https://example.co.uk/", richContent("Welcome to Example Kennels.")),
		crawledPage("https://example.co.uk/prices", richContent("Prices from £25 per night.")),
	}}
	extractor := &fakeExtractor{result: successExtraction()}
	p, ledger, _ := newTestPipeline(t, crawler, extractor)

	result, err := p.Run(context.Background(), "https://example.co.uk", "dog_kennel")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !result.Metrics.ExtractionSuccess {
		t.Error("Expected successful extraction")
	}
	if result.Metrics.QualityScore == 0 {
		t.Error("Expected nonzero quality score")
	}
	if result.Method != extract.MethodSchema {
		t.Errorf("Expected schema method, got %s", result.Method)
	}
	if extractor.calls != 1 {
		t.Errorf("Expected 1 extraction call, got %d", extractor.calls)
	}

	for name, path := range map[string]string{
		"crawl file":     result.CrawlFile,
		"merged file":    result.MergedFile,
		"extracted file": result.ExtractedFile,
		"metrics file":   result.MetricsFile,
	} {
		if path == "" {
			t.Errorf("Missing %s path", name)
			continue
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Missing %s at %s", name, path)
		}
	}

	// The crawl is recorded in the retention ledger.
	history, err := ledger.History("https://example.co.uk")
	if err != nil {
		t.Fatalf("Failed to read history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("Expected 1 ledger record, got %d", len(history))
	}
	if history[0].CrawlID != result.Crawl.CrawlID {
		t.Errorf("Ledger crawl id mismatch: %s vs %s", history[0].CrawlID, result.Crawl.CrawlID)
	}
	if history[0].CrawlFile != result.CrawlFile {
		t.Errorf("Ledger should point at the audit file: %s", history[0].CrawlFile)
	}
}

func TestRunCrawlFailure(t *testing.T) {
	crawler := &fakeCrawler{err: errors.New("site unreachable")}
	extractor := &fakeExtractor{}
	p, ledger, _ := newTestPipeline(t, crawler, extractor)

	result, err := p.Run(context.Background(), "https://example.co.uk", "dog_kennel")
	if err == nil {
		t.Fatal("Expected error for failed crawl")
	}

	if result.Metrics.ExtractionSuccess {
		t.Error("Failed crawl should not report success")
	}
	if result.Metrics.QualityScore != 0 {
		t.Errorf("Expected score 0, got %d", result.Metrics.QualityScore)
	}
	if result.Metrics.ErrorMessage == "" {
		t.Error("Expected error message in metrics")
	}
	if extractor.calls != 0 {
		t.Errorf("Extractor should not run, got %d calls", extractor.calls)
	}

	// The business is registered but no crawl version exists.
	history, _ := ledger.History("https://example.co.uk")
	if len(history) != 0 {
		t.Errorf("Failed crawl should not be recorded, got %d records", len(history))
	}
}

func TestRunNoMergeablePages(t *testing.T) {
	crawler := &fakeCrawler{pages: []page.CrawledPage{
		crawledPage("https://example.co.uk/", "too short"),
	}}
	extractor := &fakeExtractor{}
	p, ledger, _ := newTestPipeline(t, crawler, extractor)

	result, err := p.Run(context.Background(), "https://example.co.uk", "dog_kennel")
	if err != nil {
		t.Fatalf("Run should not error on empty merge: %v", err)
	}

	if result.Method != extract.MethodFailed {
		t.Errorf("Expected failed method, got %s", result.Method)
	}
	if extractor.calls != 0 {
		t.Errorf("Extractor should be skipped, got %d calls", extractor.calls)
	}
	if result.Metrics.ExtractionSuccess {
		t.Error("Expected failed metrics")
	}
	if result.MetricsFile == "" {
		t.Error("Metrics file should still be written")
	}

	// The crawl itself succeeded and is ledger-recorded.
	history, _ := ledger.History("https://example.co.uk")
	if len(history) != 1 {
		t.Errorf("Expected 1 ledger record, got %d", len(history))
	}
}

func TestRunUnknownBusinessType(t *testing.T) {
	crawler := &fakeCrawler{}
	p, _, _ := newTestPipeline(t, crawler, &fakeExtractor{})

	_, err := p.Run(context.Background(), "https://example.co.uk", "parrot_hotel")
	if err == nil {
		t.Fatal("Expected error for unknown business type")
	}
	if crawler.calls != 0 {
		t.Errorf("Crawler should not run, got %d calls", crawler.calls)
	}
}

func TestRunExtractionFailure(t *testing.T) {
	crawler := &fakeCrawler{pages: []page.CrawledPage{
		crawledPage("https://example.co.uk/prices", richContent("Prices from £25 per night.")),
	}}
	extractor := &fakeExtractor{result: extract.Result{Method: extract.MethodFailed}}
	p, _, _ := newTestPipeline(t, crawler, extractor)

	result, err := p.Run(context.Background(), "https://example.co.uk", "dog_kennel")
	if err != nil {
		t.Fatalf("Extraction failure is not a pipeline error: %v", err)
	}

	if result.Metrics.ExtractionSuccess {
		t.Error("Expected failed metrics")
	}
	if result.ExtractedFile != "" {
		t.Error("No extracted file should be written on failure")
	}
	if result.MetricsFile == "" {
		t.Error("Metrics file should still be written")
	}
}

func TestRunBatch(t *testing.T) {
	crawler := &fakeCrawler{pages: []page.CrawledPage{
		crawledPage("https://example.co.uk/prices", richContent("Prices from £25 per night.")),
	}}
	extractor := &fakeExtractor{result: successExtraction()}
	p, _, cfg := newTestPipeline(t, crawler, extractor)

	items := []BatchItem{
		{URL: "https://one.co.uk", BusinessType: "dog_kennel"},
		{URL: "https://two.co.uk", BusinessType: "bad_type"},
		{URL: "https://three.co.uk", BusinessType: "cattery"},
	}

	metrics, err := p.RunBatch(context.Background(), items)
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}

	if len(metrics) != 3 {
		t.Fatalf("Expected 3 metric rows, got %d", len(metrics))
	}
	if !metrics[0].ExtractionSuccess || !metrics[2].ExtractionSuccess {
		t.Error("Valid businesses should succeed")
	}
	if metrics[1].ExtractionSuccess {
		t.Error("Invalid business type should fail")
	}
	if metrics[1].URL != "https://two.co.uk" {
		t.Errorf("Failed row should keep its URL, got %s", metrics[1].URL)
	}

	summaryPath := filepath.Join(cfg.OutputDir, "batch_summary.json")
	data, err := os.ReadFile(summaryPath)
	if err != nil {
		t.Fatalf("Failed to read batch summary: %v", err)
	}
	var summary struct {
		TotalURLs int `json:"total_urls"`
		Results   []struct {
			URL     string `json:"url"`
			Success bool   `json:"success"`
		} `json:"results"`
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("Failed to parse batch summary: %v", err)
	}
	if summary.TotalURLs != 3 || len(summary.Results) != 3 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
}

func TestRunBatchCancellation(t *testing.T) {
	crawler := &fakeCrawler{pages: []page.CrawledPage{
		crawledPage("https://example.co.uk/prices", richContent("Prices from £25 per night.")),
	}}
	p, _, _ := newTestPipeline(t, crawler, &fakeExtractor{result: successExtraction()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []BatchItem{
		{URL: "https://one.co.uk", BusinessType: "dog_kennel"},
		{URL: "https://two.co.uk", BusinessType: "dog_kennel"},
	}

	metrics, err := p.RunBatch(ctx, items)
	if err == nil {
		t.Fatal("Expected context error")
	}
	if len(metrics) >= len(items) {
		t.Errorf("Cancellation should abort remaining items, got %d rows", len(metrics))
	}
}

func TestCrawlAuditOmitsHTML(t *testing.T) {
	pg := crawledPage("https://example.co.uk/prices", richContent("Prices from £25 per night."))
	pg.HTML = "<html><body>raw</body></html>"
	crawler := &fakeCrawler{pages: []page.CrawledPage{pg}}
	p, _, _ := newTestPipeline(t, crawler, &fakeExtractor{result: successExtraction()})

	result, err := p.Run(context.Background(), "https://example.co.uk", "dog_kennel")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	data, err := os.ReadFile(result.CrawlFile)
	if err != nil {
		t.Fatalf("Failed to read crawl file: %v", err)
	}
	if strings.Contains(string(data), "raw</body>") {
		t.Error("HTML should be omitted from the audit file by default")
	}
	if !strings.Contains(string(data), "page_type") {
		t.Error("Audit file should carry classification fields")
	}
}
