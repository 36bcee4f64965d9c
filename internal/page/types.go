// Package page defines the data model shared by the crawl pipeline:
// crawled pages, their classification, and the merged extraction document.
package page

import (
	"strings"
	"time"
)

// PageType classifies a crawled page by its content.
type PageType string

// The closed set of page types. Merge priority is configured separately;
// the enum itself carries no ordering.
const (
	TypePricing  PageType = "pricing"
	TypeContact  PageType = "contact"
	TypeAbout    PageType = "about"
	TypeServices PageType = "services"
	TypeTerms    PageType = "terms"
	TypeFAQ      PageType = "faq"
	TypeBooking  PageType = "booking"
	TypeGallery  PageType = "gallery"
	TypeBlog     PageType = "blog"
	TypeHomepage PageType = "homepage"
	TypeOther    PageType = "other"
)

// AllPageTypes lists every valid page type.
var AllPageTypes = []PageType{
	TypePricing, TypeContact, TypeAbout, TypeServices, TypeTerms,
	TypeFAQ, TypeBooking, TypeGallery, TypeBlog, TypeHomepage, TypeOther,
}

// Valid reports whether t is a member of the closed page-type set.
func (t PageType) Valid() bool {
	for _, pt := range AllPageTypes {
		if t == pt {
			return true
		}
	}
	return false
}

// ParsePageType maps a string to a PageType, returning TypeOther for
// anything outside the closed set.
func ParsePageType(s string) PageType {
	t := PageType(strings.ToLower(strings.TrimSpace(s)))
	if t.Valid() {
		return t
	}
	return TypeOther
}

// Label returns the display rendering of a page type for document banners.
// Display formatting is kept separate from the identity value so header
// changes cannot break equality checks.
func (t PageType) Label() string {
	return strings.ToUpper(string(t))
}

// CrawlStatus tracks the lifecycle of a crawl job.
type CrawlStatus string

const (
	CrawlPending    CrawlStatus = "pending"
	CrawlInProgress CrawlStatus = "in_progress"
	CrawlCompleted  CrawlStatus = "completed"
	CrawlPartial    CrawlStatus = "partial"
	CrawlFailed     CrawlStatus = "failed"
)

// CrawledPage is a single page captured during a site crawl.
// The crawl stage populates the content and metadata fields; the
// classifier produces a new value with the classification fields set.
type CrawledPage struct {
	URL                string   `json:"url"`
	PageType           PageType `json:"page_type"`
	PageTypeConfidence float64  `json:"page_type_confidence"`

	Markdown string `json:"markdown"`
	HTML     string `json:"html,omitempty"`

	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	StatusCode  int    `json:"status_code"`

	RelevanceScore    float64 `json:"relevance_score"`
	WordCount         int     `json:"word_count"`
	HasPricingSignals bool    `json:"has_pricing_signals"`
	HasContactSignals bool    `json:"has_contact_signals"`

	ScrapedAt time.Time `json:"scraped_at"`
}

// PageClassification is the result of one classification pass over one
// page. It is never stored on its own; its fields are copied onto the
// corresponding CrawledPage.
type PageClassification struct {
	PageType               PageType `json:"page_type"`
	Confidence             float64  `json:"confidence"`
	RelevanceForExtraction float64  `json:"relevance"`
	Reasoning              string   `json:"reasoning,omitempty"`
}

// SiteCrawl is one complete crawl of a business website.
type SiteCrawl struct {
	CrawlID      string      `json:"crawl_id"`
	BusinessURL  string      `json:"business_url"`
	BusinessType string      `json:"business_type"`
	Status       CrawlStatus `json:"status"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Pages           []CrawledPage `json:"pages"`
	TotalPagesFound int           `json:"total_pages_found"`
	PagesCrawled    int           `json:"pages_crawled"`
	PagesFailed     int           `json:"pages_failed"`

	CreditsUsed int `json:"credits_used"`

	CrawlVersion int        `json:"crawl_version"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`

	Errors []string `json:"errors,omitempty"`
}

// MergedContent is the single extraction-ready document produced from
// one crawl's classified pages. Immutable once built.
type MergedContent struct {
	CrawlID      string `json:"crawl_id"`
	BusinessURL  string `json:"business_url"`
	BusinessType string `json:"business_type"`

	MergedMarkdown string `json:"merged_markdown"`

	SourcePages       []string   `json:"source_pages"`
	PageTypesIncluded []PageType `json:"page_types_included"`

	TotalWordCount int `json:"total_word_count"`
	PagesMerged    int `json:"pages_merged"`
	PagesExcluded  int `json:"pages_excluded"`

	MergedAt time.Time `json:"merged_at"`
}
