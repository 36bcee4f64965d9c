package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pawtrawl/pawtrawl/internal/page"
)

// fakeCompleter returns a canned response or error.
type fakeCompleter struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string, _ int) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func repeatWords(word string, n int) string {
	return strings.Repeat(word+" ", n)
}

func TestClassifyByURL(t *testing.T) {
	tests := []struct {
		name         string
		url          string
		expectedType page.PageType
		expectedConf float64
	}{
		{"homepage root", "https://example.co.uk/", page.TypeHomepage, 0.9},
		{"homepage empty path", "https://example.co.uk", page.TypeHomepage, 0.9},
		{"homepage index", "https://example.co.uk/index.html", page.TypeHomepage, 0.9},
		{"pricing", "https://example.co.uk/prices", page.TypePricing, 0.8},
		{"pricing rates", "https://example.co.uk/our-rates", page.TypePricing, 0.8},
		{"contact", "https://example.co.uk/contact-us", page.TypeContact, 0.8},
		{"about", "https://example.co.uk/about", page.TypeAbout, 0.8},
		{"services", "https://example.co.uk/dog-grooming", page.TypeServices, 0.8},
		{"terms", "https://example.co.uk/terms-and-conditions", page.TypeTerms, 0.8},
		{"faq", "https://example.co.uk/faqs", page.TypeFAQ, 0.8},
		{"booking", "https://example.co.uk/book-now", page.TypeBooking, 0.8},
		{"gallery", "https://example.co.uk/photo-gallery", page.TypeGallery, 0.8},
		{"blog", "https://example.co.uk/blog/winter-tips", page.TypeBlog, 0.8},
		{"no match", "https://example.co.uk/random-page", page.TypeOther, 0.0},
		{"uppercase path", "https://example.co.uk/PRICES", page.TypePricing, 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pageType, conf := classifyByURL(tt.url)
			if pageType != tt.expectedType {
				t.Errorf("Expected type %s, got %s", tt.expectedType, pageType)
			}
			if conf != tt.expectedConf {
				t.Errorf("Expected confidence %v, got %v", tt.expectedConf, conf)
			}
		})
	}
}

func TestPricingBeatsContactInPatternOrder(t *testing.T) {
	// "/boarding-prices" matches both the pricing and services groups;
	// pricing is checked first and wins.
	pageType, _ := classifyByURL("https://example.co.uk/boarding-prices")
	if pageType != page.TypePricing {
		t.Errorf("Expected pricing, got %s", pageType)
	}
}

func TestAnalyzeContent(t *testing.T) {
	t.Run("pricing signals", func(t *testing.T) {
		markdown := "Small dog £25 per night. Large dog £30 per night. Prices from £25."
		signals := analyzeContent(markdown)
		if !signals.HasPricing {
			t.Errorf("Expected pricing flag with %d signals", signals.PricingCount)
		}
	})

	t.Run("contact signals", func(t *testing.T) {
		markdown := "Call 01234 567890, email info@example.co.uk, postcode AB1 2CD. Opening hours below."
		signals := analyzeContent(markdown)
		if signals.ContactCount < 3 {
			t.Errorf("Expected at least 3 contact signals, got %d", signals.ContactCount)
		}
		if !signals.HasContact {
			t.Error("Expected contact flag")
		}
	})

	t.Run("contact flag needs three matches", func(t *testing.T) {
		markdown := "Email info@example.co.uk for details"
		signals := analyzeContent(markdown)
		if signals.HasContact {
			t.Errorf("Expected no contact flag with %d signals", signals.ContactCount)
		}
	})

	t.Run("empty content", func(t *testing.T) {
		signals := analyzeContent("")
		if signals.PricingCount != 0 || signals.ContactCount != 0 || signals.WordCount != 0 {
			t.Errorf("Expected zero signals, got %+v", signals)
		}
	})
}

func TestRelevanceScore(t *testing.T) {
	longDoc := contentSignals{WordCount: 500}

	tests := []struct {
		name     string
		pageType page.PageType
		signals  contentSignals
		expected float64
	}{
		{"pricing base", page.TypePricing, longDoc, 1.0},
		{"services base", page.TypeServices, longDoc, 0.9},
		{"blog base", page.TypeBlog, longDoc, 0.1},
		{"pricing boost capped", page.TypePricing,
			contentSignals{HasPricing: true, WordCount: 500}, 1.0},
		{"about with both boosts", page.TypeAbout,
			contentSignals{HasPricing: true, HasContact: true, WordCount: 500}, 0.8},
		{"short page halved", page.TypePricing,
			contentSignals{WordCount: 50}, 0.5},
		{"medium page reduced", page.TypePricing,
			contentSignals{WordCount: 200}, 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := relevanceScore(tt.pageType, tt.signals)
			if got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
			if got < 0 || got > 1 {
				t.Errorf("Relevance %v out of range", got)
			}
		})
	}
}

func TestClassifyRulesOnly(t *testing.T) {
	c := New(Config{UseLLM: false}, nil, nil)

	pages := []page.CrawledPage{
		{
			URL:      "https://example-kennels.co.uk/",
			Markdown: repeatWords("boarding", 400),
			Title:    "Example Kennels - Home",
		},
		{
			URL:      "https://example-kennels.co.uk/prices",
			Markdown: "Our prices: Small dog £25 per night. Large dog £30 per night. " + repeatWords("word", 300),
			Title:    "Prices",
		},
		{
			URL:      "https://example-kennels.co.uk/somewhere",
			Markdown: "Nothing of note here.",
		},
	}

	classified := c.Classify(context.Background(), pages)

	if len(classified) != len(pages) {
		t.Fatalf("Expected %d pages, got %d", len(pages), len(classified))
	}

	// Input must not be mutated.
	if pages[0].PageType != "" {
		t.Error("Input slice was mutated")
	}

	if classified[0].PageType != page.TypeHomepage || classified[0].PageTypeConfidence != 0.9 {
		t.Errorf("Homepage: got %s/%v", classified[0].PageType, classified[0].PageTypeConfidence)
	}
	if classified[1].PageType != page.TypePricing {
		t.Errorf("Pricing page: got %s", classified[1].PageType)
	}
	if !classified[1].HasPricingSignals {
		t.Error("Expected pricing signals flag")
	}
	if classified[2].PageType != page.TypeOther || classified[2].PageTypeConfidence != 0.3 {
		t.Errorf("Unmatched page: got %s/%v", classified[2].PageType, classified[2].PageTypeConfidence)
	}

	for _, p := range classified {
		if p.RelevanceScore < 0 || p.RelevanceScore > 1 {
			t.Errorf("Relevance %v out of range for %s", p.RelevanceScore, p.URL)
		}
		if !p.PageType.Valid() {
			t.Errorf("Invalid page type %q for %s", p.PageType, p.URL)
		}
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := New(Config{UseLLM: false}, nil, nil)
	pages := []page.CrawledPage{
		{URL: "https://example.co.uk/prices", Markdown: "Rates from £20 per night"},
		{URL: "https://example.co.uk/misc", Markdown: "hello world"},
	}

	first := c.Classify(context.Background(), pages)
	second := c.Classify(context.Background(), pages)

	for i := range first {
		if first[i].PageType != second[i].PageType ||
			first[i].PageTypeConfidence != second[i].PageTypeConfidence ||
			first[i].RelevanceScore != second[i].RelevanceScore {
			t.Errorf("Classification not deterministic at index %d", i)
		}
	}
}

func TestClassifyLLMUpgrade(t *testing.T) {
	fake := &fakeCompleter{
		response: `Here are the classifications:
[{"page_index": 0, "page_type": "services", "confidence": 0.85, "relevance": 0.9, "reason": "Describes grooming services"}]`,
	}
	c := New(Config{UseLLM: true, BatchSize: 10, MaxTokens: 512}, fake, nil)

	pages := []page.CrawledPage{
		{URL: "https://example.co.uk/misc", Markdown: repeatWords("grooming detail", 200)},
	}

	classified := c.Classify(context.Background(), pages)

	if classified[0].PageType != page.TypeServices {
		t.Errorf("Expected services after LLM pass, got %s", classified[0].PageType)
	}
	if classified[0].PageTypeConfidence != 0.85 {
		t.Errorf("Expected confidence 0.85, got %v", classified[0].PageTypeConfidence)
	}
	if len(fake.prompts) != 1 {
		t.Errorf("Expected 1 LLM call, got %d", len(fake.prompts))
	}
}

func TestClassifyLLMNoDowngrade(t *testing.T) {
	// LLM is less confident than the rule pass result (0.3 for "other").
	fake := &fakeCompleter{
		response: `[{"page_type": "blog", "confidence": 0.1, "relevance": 0.1}]`,
	}
	c := New(Config{UseLLM: true, BatchSize: 10, MaxTokens: 512}, fake, nil)

	pages := []page.CrawledPage{
		{URL: "https://example.co.uk/misc", Markdown: "short text"},
	}

	classified := c.Classify(context.Background(), pages)

	if classified[0].PageType != page.TypeOther {
		t.Errorf("Low-confidence LLM result must not replace rules, got %s", classified[0].PageType)
	}
}

func TestClassifyLLMClampsOutOfRange(t *testing.T) {
	fake := &fakeCompleter{
		response: `[{"page_type": "pricing", "confidence": 1.5, "relevance": 2.0}]`,
	}
	c := New(Config{UseLLM: true, BatchSize: 10, MaxTokens: 512}, fake, nil)

	pages := []page.CrawledPage{
		{URL: "https://example.co.uk/misc", Markdown: "short text"},
	}

	classified := c.Classify(context.Background(), pages)

	if classified[0].PageType != page.TypePricing {
		t.Errorf("Expected pricing after LLM pass, got %s", classified[0].PageType)
	}
	if classified[0].PageTypeConfidence != 1.0 {
		t.Errorf("Expected confidence clamped to 1.0, got %v", classified[0].PageTypeConfidence)
	}
	if classified[0].RelevanceScore != 1.0 {
		t.Errorf("Expected relevance clamped to 1.0, got %v", classified[0].RelevanceScore)
	}
}

func TestClassifyLLMSkipsConfidentPages(t *testing.T) {
	fake := &fakeCompleter{response: `[]`}
	c := New(Config{UseLLM: true, BatchSize: 10, MaxTokens: 512}, fake, nil)

	pages := []page.CrawledPage{
		{URL: "https://example.co.uk/prices", Markdown: repeatWords("price", 400)},
	}

	c.Classify(context.Background(), pages)

	if len(fake.prompts) != 0 {
		t.Errorf("Confident pages should skip the LLM, got %d calls", len(fake.prompts))
	}
}

func TestClassifyLLMErrorFallsBack(t *testing.T) {
	fake := &fakeCompleter{err: errors.New("rate limited")}
	c := New(Config{UseLLM: true, BatchSize: 10, MaxTokens: 512}, fake, nil)

	pages := []page.CrawledPage{
		{URL: "https://example.co.uk/misc", Markdown: "short text"},
	}

	classified := c.Classify(context.Background(), pages)

	if classified[0].PageType != page.TypeOther || classified[0].PageTypeConfidence != 0.3 {
		t.Errorf("Expected rule-pass result on LLM error, got %s/%v",
			classified[0].PageType, classified[0].PageTypeConfidence)
	}
}

func TestClassifyLLMBatching(t *testing.T) {
	fake := &fakeCompleter{response: `[]`}
	c := New(Config{UseLLM: true, BatchSize: 2, MaxTokens: 512}, fake, nil)

	pages := make([]page.CrawledPage, 5)
	for i := range pages {
		pages[i] = page.CrawledPage{URL: "https://example.co.uk/misc", Markdown: "short"}
	}

	c.Classify(context.Background(), pages)

	// 5 uncertain pages at batch size 2 means 3 calls.
	if len(fake.prompts) != 3 {
		t.Errorf("Expected 3 batched LLM calls, got %d", len(fake.prompts))
	}
}

func TestParseClassificationResponse(t *testing.T) {
	t.Run("valid array with padding", func(t *testing.T) {
		response := `[{"page_type": "pricing", "confidence": 0.9, "relevance": 0.95}]`
		out := parseClassificationResponse(response, 3)
		if len(out) != 3 {
			t.Fatalf("Expected 3 results, got %d", len(out))
		}
		if out[0].PageType != page.TypePricing {
			t.Errorf("Expected pricing, got %s", out[0].PageType)
		}
		if out[1].PageType != page.TypeOther || out[1].Confidence != 0.0 {
			t.Errorf("Padding should default to other/0.0, got %s/%v", out[1].PageType, out[1].Confidence)
		}
	})

	t.Run("unknown page type maps to other", func(t *testing.T) {
		out := parseClassificationResponse(`[{"page_type": "landing", "confidence": 0.9}]`, 1)
		if out[0].PageType != page.TypeOther {
			t.Errorf("Expected other, got %s", out[0].PageType)
		}
	})

	t.Run("missing fields default to 0.5", func(t *testing.T) {
		out := parseClassificationResponse(`[{"page_type": "faq"}]`, 1)
		if out[0].Confidence != 0.5 || out[0].RelevanceForExtraction != 0.5 {
			t.Errorf("Expected 0.5 defaults, got %v/%v", out[0].Confidence, out[0].RelevanceForExtraction)
		}
	})

	t.Run("out-of-range values clamped", func(t *testing.T) {
		out := parseClassificationResponse(`[{"page_type": "pricing", "confidence": 1.5, "relevance": -0.2}]`, 1)
		if out[0].Confidence != 1.0 {
			t.Errorf("Expected confidence clamped to 1.0, got %v", out[0].Confidence)
		}
		if out[0].RelevanceForExtraction != 0.0 {
			t.Errorf("Expected relevance clamped to 0.0, got %v", out[0].RelevanceForExtraction)
		}
	})

	t.Run("no JSON array", func(t *testing.T) {
		out := parseClassificationResponse("I could not classify these pages.", 2)
		for _, cls := range out {
			if cls.PageType != page.TypeOther || cls.Confidence != 0.0 || cls.RelevanceForExtraction != 0.3 {
				t.Errorf("Expected defaults, got %+v", cls)
			}
		}
	})

	t.Run("malformed JSON", func(t *testing.T) {
		out := parseClassificationResponse(`[{"page_type": }`, 1)
		if out[0].PageType != page.TypeOther {
			t.Errorf("Expected default on parse error, got %s", out[0].PageType)
		}
	})

	t.Run("extra items truncated", func(t *testing.T) {
		response := `[{"page_type": "faq"}, {"page_type": "blog"}, {"page_type": "terms"}]`
		out := parseClassificationResponse(response, 2)
		if len(out) != 2 {
			t.Errorf("Expected 2 results, got %d", len(out))
		}
	})
}

func TestSummarize(t *testing.T) {
	pages := []page.CrawledPage{
		{PageType: page.TypePricing, RelevanceScore: 1.0, HasPricingSignals: true},
		{PageType: page.TypeContact, RelevanceScore: 0.8, HasContactSignals: true},
		{PageType: page.TypeOther, RelevanceScore: 0.2},
	}

	s := Summarize(pages)

	if s.TotalPages != 3 {
		t.Errorf("Expected 3 pages, got %d", s.TotalPages)
	}
	if s.TypeDistribution["pricing"] != 1 || s.TypeDistribution["other"] != 1 {
		t.Errorf("Unexpected distribution: %v", s.TypeDistribution)
	}
	if s.HighRelevancePages != 2 {
		t.Errorf("Expected 2 high-relevance pages, got %d", s.HighRelevancePages)
	}
	if s.PagesWithPricingSignals != 1 || s.PagesWithContactSignals != 1 {
		t.Errorf("Unexpected signal counts: %+v", s)
	}

	avg := (1.0 + 0.8 + 0.2) / 3
	if s.AverageRelevance < avg-0.001 || s.AverageRelevance > avg+0.001 {
		t.Errorf("Expected average %v, got %v", avg, s.AverageRelevance)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.TotalPages != 0 || s.AverageRelevance != 0 {
		t.Errorf("Expected zero summary, got %+v", s)
	}
}
