package classifier

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/pawtrawl/pawtrawl/internal/page"
)

// contentSignals summarizes the pricing/contact evidence in a page body.
type contentSignals struct {
	PricingCount int
	ContactCount int
	HasPricing   bool
	HasContact   bool
	WordCount    int
}

// classifyByURL assigns a type from the URL path alone. Returns
// (TypeOther, 0) when no pattern matches; the caller falls through to
// content signals.
func classifyByURL(pageURL string) (page.PageType, float64) {
	path := ""
	if u, err := url.Parse(pageURL); err == nil {
		path = strings.ToLower(u.Path)
	}

	if homepagePaths[path] {
		return page.TypeHomepage, 0.9
	}

	for _, group := range urlPatternGroups {
		for _, re := range group.patterns {
			if re.MatchString(path) {
				return group.pageType, 0.8
			}
		}
	}

	return page.TypeOther, 0.0
}

// analyzeContent counts signal matches over the markdown body.
// Every occurrence counts, not just distinct patterns.
func analyzeContent(markdown string) contentSignals {
	pricing := 0
	for _, re := range pricingSignals {
		pricing += len(re.FindAllStringIndex(markdown, -1))
	}
	contact := 0
	for _, re := range contactSignals {
		contact += len(re.FindAllStringIndex(markdown, -1))
	}

	return contentSignals{
		PricingCount: pricing,
		ContactCount: contact,
		HasPricing:   pricing >= 2,
		HasContact:   contact >= 3,
		WordCount:    len(strings.Fields(markdown)),
	}
}

// classifyWithRules runs the full rule pass for one page.
func classifyWithRules(p page.CrawledPage, signals contentSignals) page.PageClassification {
	pageType, confidence := classifyByURL(p.URL)

	if confidence == 0 {
		switch {
		case signals.PricingCount > 5:
			pageType, confidence = page.TypePricing, 0.7
		case signals.ContactCount > 3:
			pageType, confidence = page.TypeContact, 0.6
		default:
			pageType, confidence = page.TypeOther, 0.3
		}
	}

	return page.PageClassification{
		PageType:               pageType,
		Confidence:             confidence,
		RelevanceForExtraction: relevanceScore(pageType, signals),
		Reasoning: fmt.Sprintf("Rule-based: URL pattern + %d pricing signals, %d contact signals",
			signals.PricingCount, signals.ContactCount),
	}
}

// relevanceScore rates a page 0..1 for extraction priority.
func relevanceScore(pageType page.PageType, signals contentSignals) float64 {
	relevance, ok := baseRelevance[pageType]
	if !ok {
		relevance = 0.3
	}

	if signals.HasPricing {
		relevance = math.Min(1.0, relevance+0.2)
	}
	if signals.HasContact {
		relevance = math.Min(1.0, relevance+0.1)
	}

	// Thin pages rarely carry extractable detail.
	if signals.WordCount < 100 {
		relevance *= 0.5
	} else if signals.WordCount < 300 {
		relevance *= 0.8
	}

	return math.Round(relevance*100) / 100
}
