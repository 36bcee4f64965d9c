package scoring

import (
	"fmt"
	"sort"
	"strings"
)

// Success targets: an overall success rate above 90% (80% minimum),
// average quality score above 65 (50 minimum), and pricing found on
// more than 75% of sites (60% minimum).
type Target struct {
	Target       float64 `json:"target"`
	Minimum      float64 `json:"minimum"`
	Actual       float64 `json:"actual"`
	MeetsTarget  bool    `json:"meets_target"`
	MeetsMinimum bool    `json:"meets_minimum"`
}

// Aggregate summarizes a batch of metrics. Rates are percentages.
func Aggregate(metrics []QualityMetrics) AggregateStats {
	stats := AggregateStats{TotalURLs: len(metrics)}
	if len(metrics) == 0 {
		return stats
	}

	totalScore := 0
	totalTime := 0.0
	for _, m := range metrics {
		if m.ExtractionSuccess {
			stats.SuccessfulExtractions++
		}
		if m.HasPricing {
			stats.URLsWithPricing++
		}
		stats.TotalPricesFound += m.PriceCount
		totalScore += m.QualityScore
		totalTime += m.ExtractionTime
	}

	total := float64(stats.TotalURLs)
	stats.SuccessRate = float64(stats.SuccessfulExtractions) / total * 100
	stats.AverageQualityScore = float64(totalScore) / total
	stats.PricingRate = float64(stats.URLsWithPricing) / total * 100
	stats.AverageExtractionTime = totalTime / total

	return stats
}

// AggregateByType groups metrics by business type before aggregating.
func AggregateByType(metrics []QualityMetrics) map[string]AggregateStats {
	byType := make(map[string][]QualityMetrics)
	for _, m := range metrics {
		byType[m.BusinessType] = append(byType[m.BusinessType], m)
	}

	out := make(map[string]AggregateStats, len(byType))
	for btype, group := range byType {
		out[btype] = Aggregate(group)
	}
	return out
}

// CheckTargets evaluates aggregate stats against the success targets.
func CheckTargets(stats AggregateStats) map[string]Target {
	return map[string]Target{
		"success_rate": {
			Target:       90.0,
			Minimum:      80.0,
			Actual:       stats.SuccessRate,
			MeetsTarget:  stats.SuccessRate >= 90.0,
			MeetsMinimum: stats.SuccessRate >= 80.0,
		},
		"quality_score": {
			Target:       65.0,
			Minimum:      50.0,
			Actual:       stats.AverageQualityScore,
			MeetsTarget:  stats.AverageQualityScore >= 65.0,
			MeetsMinimum: stats.AverageQualityScore >= 50.0,
		},
		"pricing_rate": {
			Target:       75.0,
			Minimum:      60.0,
			Actual:       stats.PricingRate,
			MeetsTarget:  stats.PricingRate >= 75.0,
			MeetsMinimum: stats.PricingRate >= 60.0,
		},
	}
}

// FormatReport renders a plain-text quality report. byType may be nil
// to omit the per-type breakdown.
func FormatReport(stats AggregateStats, byType map[string]AggregateStats) string {
	var b strings.Builder

	b.WriteString("QUALITY SCORE REPORT\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	b.WriteString("Overall Statistics:\n")
	fmt.Fprintf(&b, "  Total URLs: %d\n", stats.TotalURLs)
	fmt.Fprintf(&b, "  Successful: %d (%.1f%%)\n", stats.SuccessfulExtractions, stats.SuccessRate)
	fmt.Fprintf(&b, "  Average Quality Score: %.1f\n", stats.AverageQualityScore)
	fmt.Fprintf(&b, "  URLs with Pricing: %d (%.1f%%)\n", stats.URLsWithPricing, stats.PricingRate)
	fmt.Fprintf(&b, "  Total Prices Found: %d\n", stats.TotalPricesFound)
	fmt.Fprintf(&b, "  Average Extraction Time: %.1fs\n\n", stats.AverageExtractionTime)

	b.WriteString("Success Target Assessment:\n")
	targets := CheckTargets(stats)
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := targets[name]
		status := "FAIL"
		if t.MeetsTarget {
			status = "PASS"
		} else if t.MeetsMinimum {
			status = "MINIMUM"
		}
		fmt.Fprintf(&b, "  %s: %.1f (target: %g, min: %g) [%s]\n",
			name, t.Actual, t.Target, t.Minimum, status)
	}
	b.WriteString("\n")

	if len(byType) > 0 {
		b.WriteString("By Business Type:\n")
		types := make([]string, 0, len(byType))
		for btype := range byType {
			types = append(types, btype)
		}
		sort.Strings(types)
		for _, btype := range types {
			ts := byType[btype]
			fmt.Fprintf(&b, "  %-18s tested=%d success=%.1f%% avg_score=%.1f has_prices=%.1f%%\n",
				btype, ts.TotalURLs, ts.SuccessRate, ts.AverageQualityScore, ts.PricingRate)
		}
	}

	return b.String()
}
