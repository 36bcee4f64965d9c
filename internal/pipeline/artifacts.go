package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pawtrawl/pawtrawl/internal/extract"
	"github.com/pawtrawl/pawtrawl/internal/page"
	"github.com/pawtrawl/pawtrawl/internal/scoring"
)

// crawlAudit is the raw crawl audit file layout.
type crawlAudit struct {
	CrawlMetadata crawlMetadata    `json:"crawl_metadata"`
	Pages         []crawlAuditPage `json:"pages"`
}

type crawlMetadata struct {
	CrawlID      string  `json:"crawl_id"`
	BusinessURL  string  `json:"business_url"`
	BusinessType string  `json:"business_type"`
	Status       string  `json:"status"`
	StartedAt    string  `json:"started_at"`
	CompletedAt  *string `json:"completed_at"`
	PagesCrawled int     `json:"pages_crawled"`
	CreditsUsed  int     `json:"credits_used"`
}

type crawlAuditPage struct {
	URL                string  `json:"url"`
	PageType           string  `json:"page_type"`
	PageTypeConfidence float64 `json:"page_type_confidence"`
	RelevanceScore     float64 `json:"relevance_score"`
	Title              string  `json:"title,omitempty"`
	Description        string  `json:"description,omitempty"`
	WordCount          int     `json:"word_count"`
	HasPricingSignals  bool    `json:"has_pricing_signals"`
	HasContactSignals  bool    `json:"has_contact_signals"`
	Markdown           string  `json:"markdown"`
	HTML               string  `json:"html,omitempty"`
}

// saveCrawlData writes the crawl audit file. HTML is dropped unless
// configured in, keeping the audit files small.
func (p *Pipeline) saveCrawlData(crawl page.SiteCrawl) (string, error) {
	if err := os.MkdirAll(p.cfg.StorageDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}

	audit := crawlAudit{
		CrawlMetadata: crawlMetadata{
			CrawlID:      crawl.CrawlID,
			BusinessURL:  crawl.BusinessURL,
			BusinessType: crawl.BusinessType,
			Status:       string(crawl.Status),
			StartedAt:    crawl.StartedAt.Format(time.RFC3339),
			PagesCrawled: crawl.PagesCrawled,
			CreditsUsed:  crawl.CreditsUsed,
		},
	}
	if crawl.CompletedAt != nil {
		completed := crawl.CompletedAt.Format(time.RFC3339)
		audit.CrawlMetadata.CompletedAt = &completed
	}

	for _, pg := range crawl.Pages {
		entry := crawlAuditPage{
			URL:                pg.URL,
			PageType:           string(pg.PageType),
			PageTypeConfidence: pg.PageTypeConfidence,
			RelevanceScore:     pg.RelevanceScore,
			Title:              pg.Title,
			Description:        pg.Description,
			WordCount:          pg.WordCount,
			HasPricingSignals:  pg.HasPricingSignals,
			HasContactSignals:  pg.HasContactSignals,
			Markdown:           pg.Markdown,
		}
		if p.cfg.IncludeHTML {
			entry.HTML = pg.HTML
		}
		audit.Pages = append(audit.Pages, entry)
	}

	timestamp := time.Now().Format("20060102_150405")
	path := filepath.Join(p.cfg.StorageDir,
		fmt.Sprintf("crawl_%s_%s.json", crawl.CrawlID, timestamp))

	if err := writeJSON(path, audit); err != nil {
		return "", err
	}

	p.logger.Debug("Crawl data saved", "path", path)
	return path, nil
}

// saveMerged writes the merged markdown document.
func (p *Pipeline) saveMerged(merged page.MergedContent) (string, error) {
	if err := os.MkdirAll(p.cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(p.cfg.OutputDir, fmt.Sprintf("merged_%s.md", merged.CrawlID))
	if err := os.WriteFile(path, []byte(merged.MergedMarkdown), 0644); err != nil {
		return "", fmt.Errorf("failed to write merged content: %w", err)
	}

	p.logger.Debug("Merged content saved", "path", path)
	return path, nil
}

// saveExtracted writes the extraction result with its provenance.
func (p *Pipeline) saveExtracted(crawlID string, merged page.MergedContent, pagesCrawled int, result extract.Result) (string, error) {
	if err := os.MkdirAll(p.cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(p.cfg.OutputDir, fmt.Sprintf("extracted_%s.json", crawlID))
	payload := map[string]any{
		"url":               merged.BusinessURL,
		"business_type":     merged.BusinessType,
		"crawl_id":          crawlID,
		"extraction_method": result.Method,
		"pages_crawled":     pagesCrawled,
		"pages_merged":      merged.PagesMerged,
		"data":              result.Extraction,
	}

	if err := writeJSON(path, payload); err != nil {
		return "", err
	}

	p.logger.Debug("Extracted data saved", "path", path)
	return path, nil
}

// saveMetrics writes the per-business quality metrics record.
func (p *Pipeline) saveMetrics(crawlID string, metrics scoring.QualityMetrics) (string, error) {
	if err := os.MkdirAll(p.cfg.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(p.cfg.OutputDir, fmt.Sprintf("%s_metrics.json", crawlID))
	if err := writeJSON(path, metrics); err != nil {
		return "", err
	}
	return path, nil
}

// saveBatchSummary writes the batch rollup file.
func (p *Pipeline) saveBatchSummary(metrics []scoring.QualityMetrics) error {
	if err := os.MkdirAll(p.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	results := make([]map[string]any, 0, len(metrics))
	for _, m := range metrics {
		results = append(results, map[string]any{
			"url":           m.URL,
			"business_type": m.BusinessType,
			"quality_score": m.QualityScore,
			"success":       m.ExtractionSuccess,
			"prices":        m.PriceCount,
		})
	}

	payload := map[string]any{
		"timestamp":  time.Now().Format(time.RFC3339),
		"total_urls": len(metrics),
		"results":    results,
	}

	return writeJSON(filepath.Join(p.cfg.OutputDir, "batch_summary.json"), payload)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
