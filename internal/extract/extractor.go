// Package extract runs the structured extraction pass over a merged
// document, producing a business data record for scoring.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/pawtrawl/pawtrawl/internal/llm"
	"github.com/pawtrawl/pawtrawl/internal/page"
	"github.com/pawtrawl/pawtrawl/internal/scoring"
)

// Extraction methods reported in the audit artifacts.
const (
	MethodSchema   = "schema"
	MethodFallback = "fallback"
	MethodFailed   = "failed"
)

// Config controls the extraction pass.
type Config struct {
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens"`
	// Timeout bounds one extraction call.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// DefaultConfig returns the standard extraction settings.
func DefaultConfig() Config {
	return Config{
		MaxTokens: 4096,
		Timeout:   3 * time.Minute,
	}
}

// Result is the outcome of one extraction attempt.
type Result struct {
	Extraction *scoring.Extraction
	Method     string
	Elapsed    time.Duration
}

// Extractor runs schema-guided extraction with a prompt-only fallback.
type Extractor struct {
	cfg       Config
	completer llm.Completer
	logger    *slog.Logger
}

// New creates an extractor.
func New(cfg Config, completer llm.Completer, logger *slog.Logger) *Extractor {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{cfg: cfg, completer: completer, logger: logger}
}

// Extract runs the extraction over a merged document. The schema-guided
// prompt runs first; on error or unparseable output, a looser
// prompt-only pass runs. If both fail the Result carries a nil
// extraction and MethodFailed, with a nil error: extraction failure is
// a scoring outcome, not a pipeline error.
func (e *Extractor) Extract(ctx context.Context, merged page.MergedContent) Result {
	start := time.Now()

	basePrompt, err := buildExtractionPrompt(merged)
	if err != nil {
		return Result{Method: MethodFailed, Elapsed: time.Since(start)}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	extraction, schemaErr := e.attempt(callCtx, basePrompt+schemaInstructions)
	if schemaErr == nil {
		return Result{Extraction: extraction, Method: MethodSchema, Elapsed: time.Since(start)}
	}

	e.logger.Warn("Schema extraction failed, trying fallback prompt",
		"crawl_id", merged.CrawlID, "error", schemaErr)

	fallbackCtx, cancelFallback := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancelFallback()

	extraction, fallbackErr := e.attempt(fallbackCtx, basePrompt+fallbackInstructions)
	if fallbackErr == nil {
		return Result{Extraction: extraction, Method: MethodFallback, Elapsed: time.Since(start)}
	}

	e.logger.Error("Fallback extraction also failed",
		"crawl_id", merged.CrawlID, "error", fallbackErr)

	return Result{Method: MethodFailed, Elapsed: time.Since(start)}
}

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// attempt runs one completion and parses the first JSON object out of
// the response.
func (e *Extractor) attempt(ctx context.Context, prompt string) (*scoring.Extraction, error) {
	response, err := e.completer.Complete(ctx, prompt, e.cfg.MaxTokens)
	if err != nil {
		return nil, err
	}

	match := jsonObjectPattern.FindString(response)
	if match == "" {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var extraction scoring.Extraction
	if err := json.Unmarshal([]byte(match), &extraction); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w", err)
	}

	return &extraction, nil
}

// businessTypePrompts hold the type-specific extraction guidance.
var businessTypePrompts = map[string]string{
	"dog_kennel": `Extract information from this dog boarding kennel website. Focus on:
- Business name and contact details
- Boarding rates (per night, per day)
- Different kennel/room types and their prices
- Multi-dog discounts
- Required vaccinations (especially kennel cough)
- Drop-off and pick-up times/procedures
- Cancellation and deposit policies
- Amenities (outdoor runs, heating, webcams, etc.)

Extract all pricing information you can find, including any size-based tiers
(small, medium, large dogs) and seasonal variations.`,
	"cattery": `Extract information from this cattery/cat boarding website. Focus on:
- Business name and contact details
- Boarding rates (per night, per day)
- Different pen/suite types and their prices
- Multi-cat discounts (same family)
- Required vaccinations
- Drop-off and pick-up times/procedures
- Cancellation and deposit policies
- Amenities (heating, individual rooms, outdoor access, etc.)

Extract all pricing information you can find.`,
	"dog_groomer": `Extract information from this dog grooming website. Focus on:
- Business name and contact details
- Grooming services and prices
- Different pricing by dog size (small, medium, large, giant)
- Different pricing by coat type or breed
- Individual services (bath, nail trim, ear cleaning, etc.)
- Package deals or combinations
- Puppy/first groom pricing

Extract ALL pricing information, noting size/breed variations.
This type often has complex pricing tables - capture everything.`,
	"veterinary_clinic": `Extract information from this veterinary clinic website. Focus on:
- Practice name and contact details
- Consultation fees (standard, emergency, out-of-hours)
- Vaccination prices
- Common procedure prices if listed
- Diagnostic services (blood tests, x-rays, etc.)
- Health plans or wellness packages
- Registration fees for new clients

Extract whatever pricing is publicly available. Many vets don't list all prices,
so capture what's there and note any "contact for quote" situations.`,
	"dog_daycare": `Extract information from this dog daycare website. Focus on:
- Business name and contact details
- Day care rates (full day, half day)
- Package deals (5 days, 10 days, monthly)
- Membership or subscription options
- Trial day pricing
- Multi-dog discounts
- Required vaccinations
- Drop-off and pick-up times
- Cancellation policy

Extract all pricing including any package or bulk discounts.`,
	"dog_sitter": `Extract information from this dog sitting/walking service website. Focus on:
- Business name and contact details
- Dog walking prices (30 min, 1 hour)
- Home visit prices
- Overnight sitting rates
- Puppy visit rates
- Additional dog pricing
- Geographic coverage area
- Cancellation policy

This type typically has straightforward pricing - capture all service types and rates.`,
}

// BusinessTypes lists the supported business types in a stable order.
func BusinessTypes() []string {
	return []string{
		"dog_kennel", "cattery", "dog_groomer",
		"veterinary_clinic", "dog_daycare", "dog_sitter",
	}
}

// ValidBusinessType reports whether t is a supported business type.
func ValidBusinessType(t string) bool {
	_, ok := businessTypePrompts[t]
	return ok
}

const schemaInstructions = `

Respond with a single JSON object matching this schema exactly:
{
  "business_name": "string or null",
  "business_type": "string or null",
  "description": "string or null",
  "contact": {"phone": "string or null", "email": "string or null", "address": "string or null", "website": "string or null"},
  "services": [{"service_name": "string", "price": "number or null", "price_text": "string or null", "unit": "string or null", "description": "string or null", "variations": ["string"]}],
  "vaccination_requirements": [{"vaccine_name": "string", "requirement_details": "string or null"}],
  "drop_off_procedure": "string or null",
  "pick_up_procedure": "string or null",
  "cancellation_policy": "string or null",
  "deposit_policy": "string or null",
  "amenities": ["string"],
  "opening_hours": "string or null",
  "special_notes": "string or null"
}

Use null for anything not present. Prices are decimal numbers without
currency symbols; put unparseable prices in price_text. Output only the
JSON object, no commentary.`

const fallbackInstructions = `

Return the data as a JSON object with these fields:
- business_name: string
- business_type: string
- description: string
- contact: {phone, email, address}
- services: [{service_name, price, unit, description}]
- vaccination_requirements: [{vaccine_name, requirement_details}]
- cancellation_policy: string
- deposit_policy: string
- opening_hours: string
- amenities: [string]`

// buildExtractionPrompt combines the business-type guidance with the
// merged document.
func buildExtractionPrompt(merged page.MergedContent) (string, error) {
	typePrompt, ok := businessTypePrompts[merged.BusinessType]
	if !ok {
		return "", fmt.Errorf("unknown business type: %s", merged.BusinessType)
	}

	return fmt.Sprintf(`%s

The following content has been collected from multiple pages of the business website.
Pages included: %s

Extract all available information from this combined content.

%s`, typePrompt, strings.Join(merged.SourcePages, ", "), merged.MergedMarkdown), nil
}
