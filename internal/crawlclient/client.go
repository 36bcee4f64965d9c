// Package crawlclient talks to the external crawl API. A crawl is an
// asynchronous job: start it, poll until it settles, then map the
// returned documents into pages.
package crawlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pawtrawl/pawtrawl/internal/page"
)

// Config controls the crawl API client.
type Config struct {
	APIURL string `mapstructure:"api_url" yaml:"api_url"`
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	// Limit caps pages per crawl. Zero means unlimited and the field
	// is omitted from the request.
	Limit           int           `mapstructure:"limit" yaml:"limit"`
	Formats         []string      `mapstructure:"formats" yaml:"formats"`
	OnlyMainContent bool          `mapstructure:"only_main_content" yaml:"only_main_content"`
	WaitFor         int           `mapstructure:"wait_for_ms" yaml:"wait_for_ms"`
	IgnoreSitemap   bool          `mapstructure:"ignore_sitemap" yaml:"ignore_sitemap"`
	AllowSubdomains bool          `mapstructure:"allow_subdomains" yaml:"allow_subdomains"`
	PollInterval    time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	// Timeout bounds the whole crawl including polling.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// RequestDelay spaces requests to the API.
	RequestDelay time.Duration `mapstructure:"request_delay" yaml:"request_delay"`
}

// DefaultConfig returns the standard crawl client settings.
func DefaultConfig() Config {
	return Config{
		APIURL:       "https://api.firecrawl.dev",
		Formats:      []string{"markdown", "html"},
		WaitFor:      3000,
		PollInterval: 5 * time.Second,
		Timeout:      10 * time.Minute,
		RequestDelay: time.Second,
	}
}

// Client runs crawl jobs against the API.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a crawl client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.firecrawl.dev"
	}
	if len(cfg.Formats) == 0 {
		cfg.Formats = []string{"markdown", "html"}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.RequestDelay <= 0 {
		cfg.RequestDelay = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Transport: transport, Timeout: 60 * time.Second},
		limiter: rate.NewLimiter(rate.Every(cfg.RequestDelay), 1),
		logger:  logger,
	}
}

type scrapeOptions struct {
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	WaitFor         int      `json:"waitFor"`
}

type crawlRequest struct {
	URL             string        `json:"url"`
	ScrapeOptions   scrapeOptions `json:"scrapeOptions"`
	IgnoreSitemap   bool          `json:"ignoreSitemap"`
	AllowSubdomains bool          `json:"allowSubdomains"`
	Limit           int           `json:"limit,omitempty"`
}

type crawlStartResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Error   string `json:"error"`
}

type documentMetadata struct {
	SourceURL   string `json:"sourceURL"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	StatusCode  int    `json:"statusCode"`
}

type document struct {
	Markdown string           `json:"markdown"`
	HTML     string           `json:"html"`
	Metadata documentMetadata `json:"metadata"`
}

type crawlStatusResponse struct {
	Status      string     `json:"status"`
	Total       int        `json:"total"`
	Completed   int        `json:"completed"`
	CreditsUsed int        `json:"creditsUsed"`
	Next        string     `json:"next"`
	Data        []document `json:"data"`
	Error       string     `json:"error"`
}

// Crawl runs a full site crawl and returns the crawl metadata with its
// pages. The returned SiteCrawl is populated even on failure, with
// status failed and the error recorded, so callers can persist the
// attempt.
func (c *Client) Crawl(ctx context.Context, crawlID, businessURL string) (page.SiteCrawl, error) {
	crawl := page.SiteCrawl{
		CrawlID:     crawlID,
		BusinessURL: businessURL,
		Status:      page.CrawlInProgress,
		StartedAt:   time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	c.logger.Info("Starting crawl", "crawl_id", crawlID, "url", businessURL)

	jobID, err := c.startJob(ctx, businessURL)
	if err != nil {
		return c.fail(crawl, fmt.Errorf("failed to start crawl job: %w", err))
	}

	docs, creditsUsed, err := c.awaitJob(ctx, jobID)
	if err != nil {
		return c.fail(crawl, fmt.Errorf("crawl job %s failed: %w", jobID, err))
	}
	if len(docs) == 0 {
		return c.fail(crawl, fmt.Errorf("crawl job %s returned no pages", jobID))
	}

	for _, doc := range docs {
		crawl.Pages = append(crawl.Pages, mapDocument(doc, businessURL))
	}

	now := time.Now().UTC()
	crawl.Status = page.CrawlCompleted
	crawl.CompletedAt = &now
	crawl.PagesCrawled = len(crawl.Pages)
	crawl.TotalPagesFound = len(crawl.Pages)
	crawl.CreditsUsed = creditsUsed
	if crawl.CreditsUsed == 0 {
		// One credit per page when the API omits usage.
		crawl.CreditsUsed = len(crawl.Pages)
	}

	c.logger.Info("Crawl complete",
		"crawl_id", crawlID, "pages", crawl.PagesCrawled, "credits_used", crawl.CreditsUsed)

	return crawl, nil
}

func (c *Client) fail(crawl page.SiteCrawl, err error) (page.SiteCrawl, error) {
	now := time.Now().UTC()
	crawl.Status = page.CrawlFailed
	crawl.CompletedAt = &now
	crawl.Errors = append(crawl.Errors, err.Error())
	c.logger.Error("Crawl failed", "crawl_id", crawl.CrawlID, "error", err)
	return crawl, err
}

// startJob submits the crawl and returns the job id.
func (c *Client) startJob(ctx context.Context, businessURL string) (string, error) {
	reqBody := crawlRequest{
		URL: businessURL,
		ScrapeOptions: scrapeOptions{
			Formats:         c.cfg.Formats,
			OnlyMainContent: c.cfg.OnlyMainContent,
			WaitFor:         c.cfg.WaitFor,
		},
		IgnoreSitemap:   c.cfg.IgnoreSitemap,
		AllowSubdomains: c.cfg.AllowSubdomains,
		Limit:           c.cfg.Limit,
	}

	body, err := c.doRequest(ctx, http.MethodPost, c.cfg.APIURL+"/v1/crawl", reqBody)
	if err != nil {
		return "", err
	}

	var start crawlStartResponse
	if err := json.Unmarshal(body, &start); err != nil {
		return "", fmt.Errorf("failed to parse crawl start response: %w", err)
	}
	if !start.Success || start.ID == "" {
		if start.Error != "" {
			return "", fmt.Errorf("API rejected crawl: %s", start.Error)
		}
		return "", fmt.Errorf("API returned no job id")
	}

	return start.ID, nil
}

// awaitJob polls the job until it completes or fails, then drains any
// paginated result set.
func (c *Client) awaitJob(ctx context.Context, jobID string) ([]document, int, error) {
	statusURL := c.cfg.APIURL + "/v1/crawl/" + jobID

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		body, err := c.doRequest(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return nil, 0, err
		}

		var status crawlStatusResponse
		if err := json.Unmarshal(body, &status); err != nil {
			return nil, 0, fmt.Errorf("failed to parse crawl status: %w", err)
		}

		switch status.Status {
		case "completed":
			docs := status.Data
			next := status.Next
			// Follow pagination for large crawls.
			for next != "" {
				pageBody, err := c.doRequest(ctx, http.MethodGet, next, nil)
				if err != nil {
					return nil, 0, err
				}
				var more crawlStatusResponse
				if err := json.Unmarshal(pageBody, &more); err != nil {
					return nil, 0, fmt.Errorf("failed to parse crawl page: %w", err)
				}
				docs = append(docs, more.Data...)
				next = more.Next
			}
			return docs, status.CreditsUsed, nil
		case "failed", "cancelled":
			if status.Error != "" {
				return nil, 0, fmt.Errorf("job %s: %s", status.Status, status.Error)
			}
			return nil, 0, fmt.Errorf("job %s", status.Status)
		}

		c.logger.Debug("Crawl in progress",
			"job_id", jobID, "completed", status.Completed, "total", status.Total)

		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		case <-ticker.C:
		}
	}
}

// doRequest performs one rate-limited API call and returns the body.
func (c *Client) doRequest(ctx context.Context, method, url string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return body, nil
}

// mapDocument converts one API document into a crawled page. When the
// API returned no markdown but did return HTML, the plain text is
// pulled out of the HTML so downstream stages still have content.
func mapDocument(doc document, fallbackURL string) page.CrawledPage {
	pageURL := doc.Metadata.SourceURL
	if pageURL == "" {
		pageURL = doc.Metadata.URL
	}
	if pageURL == "" {
		pageURL = fallbackURL
	}

	statusCode := doc.Metadata.StatusCode
	if statusCode == 0 {
		statusCode = http.StatusOK
	}

	markdown := doc.Markdown
	title := doc.Metadata.Title
	if markdown == "" && doc.HTML != "" {
		extractedTitle, text := page.ExtractTextFromHTML(doc.HTML)
		markdown = text
		if title == "" {
			title = extractedTitle
		}
	}

	return page.CrawledPage{
		URL:         pageURL,
		Markdown:    markdown,
		HTML:        doc.HTML,
		Title:       title,
		Description: doc.Metadata.Description,
		StatusCode:  statusCode,
		WordCount:   page.CountWords(markdown),
		ScrapedAt:   time.Now().UTC(),
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
