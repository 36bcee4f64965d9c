package page

import (
	"encoding/json"
	"testing"
)

func TestPageTypeValid(t *testing.T) {
	for _, pt := range AllPageTypes {
		if !pt.Valid() {
			t.Errorf("Expected %q to be valid", pt)
		}
	}

	invalid := []PageType{"", "price", "home page", "PRICING"}
	for _, pt := range invalid {
		if pt.Valid() {
			t.Errorf("Expected %q to be invalid", pt)
		}
	}
}

func TestParsePageType(t *testing.T) {
	tests := []struct {
		input    string
		expected PageType
	}{
		{"pricing", TypePricing},
		{"  Contact ", TypeContact},
		{"HOMEPAGE", TypeHomepage},
		{"garbage", TypeOther},
		{"", TypeOther},
	}

	for _, tt := range tests {
		if got := ParsePageType(tt.input); got != tt.expected {
			t.Errorf("ParsePageType(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestPageTypeLabel(t *testing.T) {
	if TypePricing.Label() != "PRICING" {
		t.Errorf("Expected PRICING, got %s", TypePricing.Label())
	}
	if TypeFAQ.Label() != "FAQ" {
		t.Errorf("Expected FAQ, got %s", TypeFAQ.Label())
	}
}

func TestCrawledPageJSONRoundTrip(t *testing.T) {
	p := CrawledPage{
		URL:                "https://example.com/prices",
		PageType:           TypePricing,
		PageTypeConfidence: 0.8,
		Markdown:           "## Rates",
		RelevanceScore:     1.0,
		WordCount:          150,
		HasPricingSignals:  true,
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Failed to marshal page: %v", err)
	}

	var got CrawledPage
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Failed to unmarshal page: %v", err)
	}

	if got.PageType != TypePricing || got.RelevanceScore != 1.0 || !got.HasPricingSignals {
		t.Errorf("Round trip mismatch: %+v", got)
	}
}
