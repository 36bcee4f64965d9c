package scoring

// Decision is the go/no-go outcome for a batch of extractions.
type Decision string

const (
	DecisionProceed            Decision = "PROCEED"
	DecisionProceedWithCaution Decision = "PROCEED_WITH_CAUTION"
	DecisionRefine             Decision = "REFINE"
	DecisionStop               Decision = "STOP"
	DecisionInsufficientData   Decision = "INSUFFICIENT_DATA"
)

// Decide applies the decision matrix to an average quality score and
// the percentage of sites with pricing found.
//
//	quality:     <50      50-64.99   >=65
//	pricing <60: STOP     REFINE     REFINE
//	pricing <75: REFINE   CAUTION    PROCEED
//	pricing>=75: REFINE   PROCEED    PROCEED
func Decide(avgQualityScore, pricingPercentage float64) Decision {
	switch {
	case avgQualityScore < 50:
		if pricingPercentage < 60 {
			return DecisionStop
		}
		return DecisionRefine
	case avgQualityScore < 65:
		switch {
		case pricingPercentage < 60:
			return DecisionRefine
		case pricingPercentage < 75:
			return DecisionProceedWithCaution
		default:
			return DecisionProceed
		}
	default:
		if pricingPercentage < 60 {
			return DecisionRefine
		}
		return DecisionProceed
	}
}

// NextSteps returns the recommended follow-up checklist for a decision.
// REFINE gains focus items when a specific metric dragged it down.
func NextSteps(decision Decision, avgQualityScore, pricingPercentage float64) []string {
	switch decision {
	case DecisionProceed:
		return []string{
			"Document successful approach",
			"Scale to 100-URL validation batch",
			"Build full infrastructure (database, storage)",
			"Begin production extraction",
		}
	case DecisionProceedWithCaution:
		return []string{
			"Identify weakest business types",
			"Refine schemas/prompts for problem areas",
			"Run additional 20-URL test on refined approach",
			"Monitor closely during scale-up",
		}
	case DecisionRefine:
		steps := []string{
			"Analyze failure patterns in detail",
			"Consider alternative extraction approaches",
			"Refine schemas and prompts",
			"Run refined test with 20 new URLs",
		}
		if avgQualityScore < 50 {
			steps = append(steps, "Focus on improving overall extraction quality")
		}
		if pricingPercentage < 60 {
			steps = append(steps, "Focus on improving pricing extraction accuracy")
		}
		return steps
	case DecisionStop:
		return []string{
			"Document limitations of automated extraction",
			"Consider alternative approaches (manual, hybrid)",
			"Re-scope project based on findings",
			"Evaluate different extraction services",
		}
	default:
		return nil
	}
}

// Recommendation bundles the decision with its inputs and next steps.
type Recommendation struct {
	Decision            Decision `json:"decision"`
	AverageQualityScore float64  `json:"average_quality_score"`
	PricingPercentage   float64  `json:"pricing_found_percentage"`
	TotalURLs           int      `json:"total_urls"`
	URLsWithPricing     int      `json:"urls_with_pricing"`
	NextSteps           []string `json:"next_steps"`
}

// Recommend evaluates a batch of metrics and produces the go/no-go
// recommendation. An empty batch yields INSUFFICIENT_DATA.
func Recommend(metrics []QualityMetrics) Recommendation {
	if len(metrics) == 0 {
		return Recommendation{Decision: DecisionInsufficientData}
	}

	stats := Aggregate(metrics)
	decision := Decide(stats.AverageQualityScore, stats.PricingRate)

	return Recommendation{
		Decision:            decision,
		AverageQualityScore: stats.AverageQualityScore,
		PricingPercentage:   stats.PricingRate,
		TotalURLs:           stats.TotalURLs,
		URLsWithPricing:     stats.URLsWithPricing,
		NextSteps:           NextSteps(decision, stats.AverageQualityScore, stats.PricingRate),
	}
}
