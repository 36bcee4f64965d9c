// Package merger combines classified pages into a single
// extraction-ready document, ordered by page-type priority and capped
// by a token budget.
package merger

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pawtrawl/pawtrawl/internal/page"
)

// excludedPriority sorts excluded types behind everything else. The
// filter removes them already; this is a guard for callers that sort
// without filtering.
const excludedPriority = 999

// minPageWords is the threshold below which a page is treated as empty.
const minPageWords = 50

// Config controls filtering and assembly of the merged document.
type Config struct {
	PageTypePriority  []string `mapstructure:"page_type_priority" yaml:"page_type_priority"`
	ExcludedPageTypes []string `mapstructure:"excluded_page_types" yaml:"excluded_page_types"`
	MaxMergedTokens   int      `mapstructure:"max_merged_tokens" yaml:"max_merged_tokens"`
	MaxPagesToMerge   int      `mapstructure:"max_pages_to_merge" yaml:"max_pages_to_merge"`
	MinRelevanceScore float64  `mapstructure:"min_relevance_score" yaml:"min_relevance_score"`
	TokensPerWord     float64  `mapstructure:"tokens_per_word" yaml:"tokens_per_word"`
	// TokenCounter selects the estimator: "heuristic" (default) or
	// "tiktoken" for exact BPE counts.
	TokenCounter string `mapstructure:"token_counter" yaml:"token_counter"`
}

// DefaultConfig returns the standard merge settings. Pricing pages
// lead the priority order; blog and gallery pages are never merged.
func DefaultConfig() Config {
	return Config{
		PageTypePriority: []string{
			"pricing", "services", "contact", "terms",
			"faq", "booking", "about", "homepage",
		},
		ExcludedPageTypes: []string{"blog", "gallery"},
		MaxMergedTokens:   100000,
		MaxPagesToMerge:   20,
		MinRelevanceScore: 0.2,
		TokensPerWord:     1.3,
		TokenCounter:      "heuristic",
	}
}

// Merger assembles merged documents.
type Merger struct {
	cfg       Config
	estimator TokenEstimator
}

// New creates a merger. The token estimator is chosen from config;
// an unknown counter name falls back to the heuristic.
func New(cfg Config) (*Merger, error) {
	if len(cfg.PageTypePriority) == 0 {
		cfg.PageTypePriority = DefaultConfig().PageTypePriority
	}
	if cfg.MaxMergedTokens <= 0 {
		cfg.MaxMergedTokens = 100000
	}
	if cfg.MaxPagesToMerge <= 0 {
		cfg.MaxPagesToMerge = 20
	}

	var estimator TokenEstimator
	if cfg.TokenCounter == "tiktoken" {
		bpe, err := NewBPEEstimator()
		if err != nil {
			return nil, err
		}
		estimator = bpe
	} else {
		estimator = NewHeuristicEstimator(cfg.TokensPerWord)
	}

	return &Merger{cfg: cfg, estimator: estimator}, nil
}

// pagePriority ranks a page for merge order; lower sorts first.
func (m *Merger) pagePriority(p page.CrawledPage) int {
	typeStr := string(p.PageType)
	for _, excluded := range m.cfg.ExcludedPageTypes {
		if typeStr == excluded {
			return excludedPriority
		}
	}
	for i, t := range m.cfg.PageTypePriority {
		if typeStr == t {
			return i
		}
	}
	return len(m.cfg.PageTypePriority)
}

// filterRelevant drops excluded types, low-relevance pages, and pages
// too thin to carry extractable content.
func (m *Merger) filterRelevant(pages []page.CrawledPage) []page.CrawledPage {
	relevant := make([]page.CrawledPage, 0, len(pages))
	for _, p := range pages {
		if m.pagePriority(p) == excludedPriority {
			continue
		}
		if p.RelevanceScore < m.cfg.MinRelevanceScore {
			continue
		}
		if p.Markdown == "" || p.WordCount < minPageWords {
			continue
		}
		relevant = append(relevant, p)
	}
	return relevant
}

// sortByPriority orders pages for merging: type priority, then
// relevance descending, then pricing-signal pages first. The sort is
// stable so equal pages keep their crawl order.
func (m *Merger) sortByPriority(pages []page.CrawledPage) []page.CrawledPage {
	sorted := make([]page.CrawledPage, len(pages))
	copy(sorted, pages)

	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := m.pagePriority(sorted[i]), m.pagePriority(sorted[j])
		if pi != pj {
			return pi < pj
		}
		if sorted[i].RelevanceScore != sorted[j].RelevanceScore {
			return sorted[i].RelevanceScore > sorted[j].RelevanceScore
		}
		return sorted[i].HasPricingSignals && !sorted[j].HasPricingSignals
	})

	return sorted
}

// formatPage wraps a page body with a banner naming its type, title
// and source URL so the extraction model can attribute content.
func formatPage(p page.CrawledPage) string {
	label := "PAGE"
	if p.PageType != "" {
		label = p.PageType.Label()
	}
	title := p.Title
	if title == "" {
		title = "Untitled"
	}

	return fmt.Sprintf(`
================================================================================
%s PAGE: %s
Source URL: %s
================================================================================

%s`, label, title, p.URL, p.Markdown)
}

// Merge builds the extraction document from classified pages.
//
// Pages are filtered, sorted by priority, and appended until the page
// cap or token budget is reached. The first sorted page is always
// included even if it alone exceeds the budget, so a successful crawl
// never produces a document with no content when any page survives
// the filter.
func (m *Merger) Merge(pages []page.CrawledPage, crawlID, businessURL, businessType string) page.MergedContent {
	relevant := m.filterRelevant(pages)
	sorted := m.sortByPriority(relevant)

	var parts []string
	var sourceURLs []string
	var typesIncluded []page.PageType
	totalTokens := 0
	pagesMerged := 0

	header := fmt.Sprintf(`
################################################################################
#  BUSINESS DATA EXTRACTION DOCUMENT
#  Business Type: %s
#  Primary URL: %s
#  Pages Included: (see below)
#  Crawl ID: %s
################################################################################

INSTRUCTIONS FOR EXTRACTION:
This document contains merged content from multiple pages of a pet care business
website. Extract all relevant business information including:
- Business name and description
- Contact details (phone, email, address)
- All services and their prices
- Vaccination requirements
- Policies (cancellation, deposit, drop-off/pick-up)
- Opening hours
- Amenities and special features

The pages are ordered by relevance, with pricing information first.

================================================================================
BEGIN WEBSITE CONTENT
================================================================================
`, businessType, businessURL, crawlID)
	parts = append(parts, header)
	totalTokens += m.estimator.EstimateTokens(header)

	for _, p := range sorted {
		if pagesMerged >= m.cfg.MaxPagesToMerge {
			break
		}

		content := formatPage(p)
		tokens := m.estimator.EstimateTokens(content)

		if totalTokens+tokens > m.cfg.MaxMergedTokens && pagesMerged > 0 {
			break
		}

		parts = append(parts, content)
		sourceURLs = append(sourceURLs, p.URL)
		if p.PageType != "" && !containsType(typesIncluded, p.PageType) {
			typesIncluded = append(typesIncluded, p.PageType)
		}
		totalTokens += tokens
		pagesMerged++
	}

	typeNames := make([]string, len(typesIncluded))
	for i, t := range typesIncluded {
		typeNames[i] = string(t)
	}

	footer := fmt.Sprintf(`

================================================================================
END WEBSITE CONTENT
================================================================================

Total pages included: %d
Page types: %s
`, pagesMerged, strings.Join(typeNames, ", "))
	parts = append(parts, footer)

	tokensPerWord := m.cfg.TokensPerWord
	if tokensPerWord <= 0 {
		tokensPerWord = 1.3
	}

	return page.MergedContent{
		CrawlID:           crawlID,
		BusinessURL:       businessURL,
		BusinessType:      businessType,
		MergedMarkdown:    strings.Join(parts, "\n"),
		SourcePages:       sourceURLs,
		PageTypesIncluded: typesIncluded,
		TotalWordCount:    int(float64(totalTokens) / tokensPerWord),
		PagesMerged:       pagesMerged,
		PagesExcluded:     len(pages) - pagesMerged,
		MergedAt:          time.Now().UTC(),
	}
}

func containsType(types []page.PageType, t page.PageType) bool {
	for _, existing := range types {
		if existing == t {
			return true
		}
	}
	return false
}

// Summary renders a human-readable account of a merge for logs and
// audit output.
func Summary(merged page.MergedContent) string {
	typeNames := make([]string, len(merged.PageTypesIncluded))
	for i, t := range merged.PageTypesIncluded {
		typeNames[i] = string(t)
	}

	var sources strings.Builder
	for _, url := range merged.SourcePages {
		fmt.Fprintf(&sources, "  - %s\n", url)
	}

	return fmt.Sprintf(`
Merge Summary
=============
Business URL: %s
Business Type: %s
Crawl ID: %s

Pages merged: %d
Pages excluded: %d
Total words: ~%d

Page types included: %s

Source pages:
%s`, merged.BusinessURL, merged.BusinessType, merged.CrawlID,
		merged.PagesMerged, merged.PagesExcluded, merged.TotalWordCount,
		strings.Join(typeNames, ", "), sources.String())
}
