package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/pawtrawl/pawtrawl/internal/page"
)

// contentPreviewLimit caps how much page body goes into the prompt.
const contentPreviewLimit = 1500

var jsonArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// classifyBatch sends one batch to the completer. Any failure yields
// default classifications for the whole batch; the caller's
// confidence check then keeps the rule-pass results.
func (c *Classifier) classifyBatch(ctx context.Context, batch []page.CrawledPage) []page.PageClassification {
	prompt := buildClassificationPrompt(batch)

	response, err := c.completer.Complete(ctx, prompt, c.cfg.MaxTokens*len(batch))
	if err != nil {
		c.logger.Warn("LLM classification failed, keeping rule results", "error", err)
		return defaultClassifications(len(batch), "LLM call failed")
	}

	return parseClassificationResponse(response, len(batch))
}

func buildClassificationPrompt(pages []page.CrawledPage) string {
	var b strings.Builder
	b.WriteString(`You are classifying web pages from a pet care business website.
For each page, determine:
1. page_type: One of: pricing, contact, about, services, terms, faq, booking, gallery, blog, homepage, other
2. confidence: 0.0 to 1.0
3. relevance: 0.0 to 1.0 (how useful for extracting business info like prices, contact, policies)

Focus on:
- PRICING pages have prices, rates, fees, tariffs
- CONTACT pages have address, phone, email, location
- SERVICES pages describe what the business offers
- TERMS pages have T&Cs, policies, cancellation rules
- FAQ pages have common questions and answers

Return JSON array with one object per page:
[{"page_index": 0, "page_type": "pricing", "confidence": 0.9, "relevance": 0.95, "reason": "Contains price list"}]

Pages to classify:
`)

	for i, p := range pages {
		preview := p.Markdown
		if preview == "" {
			preview = "(empty)"
		} else if len(preview) > contentPreviewLimit {
			preview = preview[:contentPreviewLimit]
		}
		title := p.Title
		if title == "" {
			title = "(no title)"
		}
		fmt.Fprintf(&b, "\n---\nPage %d:\nURL: %s\nTitle: %s\nContent preview:\n%s\n---\n", i, p.URL, title, preview)
	}

	return b.String()
}

// llmClassification mirrors the JSON objects the model is asked for.
type llmClassification struct {
	PageIndex  int      `json:"page_index"`
	PageType   string   `json:"page_type"`
	Confidence *float64 `json:"confidence"`
	Relevance  *float64 `json:"relevance"`
	Reason     string   `json:"reason"`
}

// parseClassificationResponse extracts the first JSON array from the
// response text. Items come back in batch order; page_index is not
// trusted for alignment. Unknown page types map to "other", missing
// numeric fields default to 0.5, out-of-range values are clamped to
// [0,1], and short responses are padded.
func parseClassificationResponse(response string, expected int) []page.PageClassification {
	match := jsonArrayPattern.FindString(response)
	if match == "" {
		return defaultClassifications(expected, "No JSON array found in response")
	}

	var items []llmClassification
	if err := json.Unmarshal([]byte(match), &items); err != nil {
		return defaultClassifications(expected, fmt.Sprintf("Parse error: %v", err))
	}

	out := make([]page.PageClassification, 0, expected)
	for _, item := range items {
		if len(out) == expected {
			break
		}
		out = append(out, page.PageClassification{
			PageType:               page.ParsePageType(item.PageType),
			Confidence:             clamp01(floatOr(item.Confidence, 0.5)),
			RelevanceForExtraction: clamp01(floatOr(item.Relevance, 0.5)),
			Reasoning:              item.Reason,
		})
	}

	for len(out) < expected {
		out = append(out, page.PageClassification{
			PageType:               page.TypeOther,
			Confidence:             0.0,
			RelevanceForExtraction: 0.3,
			Reasoning:              "LLM did not classify this page",
		})
	}

	return out
}

func defaultClassifications(n int, reason string) []page.PageClassification {
	out := make([]page.PageClassification, n)
	for i := range out {
		out[i] = page.PageClassification{
			PageType:               page.TypeOther,
			Confidence:             0.0,
			RelevanceForExtraction: 0.3,
			Reasoning:              reason,
		}
	}
	return out
}

func floatOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
