// Package classifier assigns a page type and extraction relevance to
// crawled pages. A free rule pass runs first; pages the rules are not
// confident about go through a batched LLM pass that can only raise
// confidence, never lower it.
package classifier

import (
	"context"
	"log/slog"

	"github.com/pawtrawl/pawtrawl/internal/llm"
	"github.com/pawtrawl/pawtrawl/internal/page"
)

// llmConfidenceThreshold separates pages the rule pass settled from
// those worth an LLM call.
const llmConfidenceThreshold = 0.7

// Config controls the classification passes. The model and sampling
// temperature for the LLM pass come from the shared llm section of
// the configuration, via the Completer passed to New.
type Config struct {
	UseLLM    bool `mapstructure:"use_llm" yaml:"use_llm"`
	BatchSize int  `mapstructure:"batch_size" yaml:"batch_size"`
	// MaxTokens is the per-page response budget; each LLM call is
	// allowed MaxTokens multiplied by the batch length.
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// DefaultConfig returns the standard classifier settings.
func DefaultConfig() Config {
	return Config{
		UseLLM:    true,
		BatchSize: 10,
		MaxTokens: 1024,
	}
}

// Classifier runs the two-pass page classification.
type Classifier struct {
	cfg       Config
	completer llm.Completer
	logger    *slog.Logger
}

// New creates a classifier. completer may be nil, in which case the
// LLM pass is skipped regardless of config.
func New(cfg Config, completer llm.Completer, logger *slog.Logger) *Classifier {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{cfg: cfg, completer: completer, logger: logger}
}

// Classify returns a new slice of pages with classification fields
// populated. The input slice is not modified. Classification never
// fails: LLM errors degrade to the rule-pass result.
func (c *Classifier) Classify(ctx context.Context, pages []page.CrawledPage) []page.CrawledPage {
	classified := make([]page.CrawledPage, len(pages))

	for i, p := range pages {
		signals := analyzeContent(p.Markdown)
		cls := classifyWithRules(p, signals)

		p.PageType = cls.PageType
		p.PageTypeConfidence = cls.Confidence
		p.RelevanceScore = cls.RelevanceForExtraction
		p.HasPricingSignals = signals.HasPricing
		p.HasContactSignals = signals.HasContact
		p.WordCount = signals.WordCount
		classified[i] = p
	}

	if c.cfg.UseLLM && c.completer != nil {
		c.refineWithLLM(ctx, classified)
	}

	return classified
}

// refineWithLLM re-classifies low-confidence pages in batches. A result
// replaces the rule-pass fields only when it is strictly more confident.
func (c *Classifier) refineWithLLM(ctx context.Context, pages []page.CrawledPage) {
	var uncertain []int
	for i := range pages {
		if pages[i].PageTypeConfidence < llmConfidenceThreshold {
			uncertain = append(uncertain, i)
		}
	}
	if len(uncertain) == 0 {
		return
	}

	c.logger.Debug("Refining classifications with LLM",
		"uncertain_pages", len(uncertain),
		"batch_size", c.cfg.BatchSize)

	for start := 0; start < len(uncertain); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(uncertain) {
			end = len(uncertain)
		}
		batchIdx := uncertain[start:end]

		batch := make([]page.CrawledPage, len(batchIdx))
		for j, idx := range batchIdx {
			batch[j] = pages[idx]
		}

		results := c.classifyBatch(ctx, batch)

		for j, idx := range batchIdx {
			cls := results[j]
			if cls.Confidence > pages[idx].PageTypeConfidence {
				pages[idx].PageType = cls.PageType
				pages[idx].PageTypeConfidence = cls.Confidence
				pages[idx].RelevanceScore = cls.RelevanceForExtraction
			}
		}
	}
}

// Summary describes the outcome of a classification run.
type Summary struct {
	TotalPages              int            `json:"total_pages"`
	TypeDistribution        map[string]int `json:"type_distribution"`
	AverageRelevance        float64        `json:"average_relevance"`
	HighRelevancePages      int            `json:"high_relevance_pages"`
	PagesWithPricingSignals int            `json:"pages_with_pricing_signals"`
	PagesWithContactSignals int            `json:"pages_with_contact_signals"`
}

// Summarize aggregates classification results for logging and audit
// artifacts.
func Summarize(pages []page.CrawledPage) Summary {
	s := Summary{
		TotalPages:       len(pages),
		TypeDistribution: make(map[string]int),
	}

	total := 0.0
	for _, p := range pages {
		s.TypeDistribution[string(p.PageType)]++
		total += p.RelevanceScore
		if p.RelevanceScore >= 0.7 {
			s.HighRelevancePages++
		}
		if p.HasPricingSignals {
			s.PagesWithPricingSignals++
		}
		if p.HasContactSignals {
			s.PagesWithContactSignals++
		}
	}
	if len(pages) > 0 {
		s.AverageRelevance = total / float64(len(pages))
	}

	return s
}
