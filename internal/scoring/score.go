package scoring

import (
	"strings"
	"time"
)

// Scoring weights. The pricing bonus adds 2 points per price beyond
// the first, capped at 20, so the theoretical maximum of 115 clamps
// to 100.
const (
	pointsSuccess       = 20
	pointsBusinessName  = 10
	pointsContact       = 10
	pointsPricing       = 30
	pointsPerExtraPrice = 2
	maxPriceBonus       = 20
	pointsVaccination   = 5
	pointsPolicy        = 5
	maxScore            = 100
)

// The predicates below are shared by Score and BuildMetrics so the
// boolean flags in the metrics record always agree with the points
// awarded.

func hasBusinessName(e *Extraction) bool {
	return e != nil && e.BusinessName != nil && strings.TrimSpace(*e.BusinessName) != ""
}

func hasContactInfo(e *Extraction) bool {
	if e == nil || e.Contact == nil {
		return false
	}
	c := e.Contact
	return nonEmpty(c.Email) || nonEmpty(c.Phone) || nonEmpty(c.Address)
}

func countPrices(e *Extraction) int {
	if e == nil {
		return 0
	}
	count := 0
	for _, s := range e.Services {
		if s.HasPrice() {
			count++
		}
	}
	return count
}

func hasVaccinationInfo(e *Extraction) bool {
	return e != nil && len(e.VaccinationRequirements) > 0
}

func hasPolicyInfo(e *Extraction) bool {
	return e != nil && (nonEmpty(e.CancellationPolicy) || nonEmpty(e.DepositPolicy))
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}

// Score computes the 0-100 quality score for an extraction result.
// A nil extraction scores only the success points, if any.
func Score(e *Extraction, extractionSuccess bool) int {
	score := 0

	if extractionSuccess {
		score += pointsSuccess
	}
	if hasBusinessName(e) {
		score += pointsBusinessName
	}
	if hasContactInfo(e) {
		score += pointsContact
	}

	prices := countPrices(e)
	if prices > 0 {
		score += pointsPricing
	}
	if prices > 1 {
		bonus := (prices - 1) * pointsPerExtraPrice
		if bonus > maxPriceBonus {
			bonus = maxPriceBonus
		}
		score += bonus
	}

	if hasVaccinationInfo(e) {
		score += pointsVaccination
	}
	if hasPolicyInfo(e) {
		score += pointsPolicy
	}

	if score > maxScore {
		score = maxScore
	}
	return score
}

// BuildMetrics scores an extraction and records the component flags
// alongside the score.
func BuildMetrics(url, businessType string, e *Extraction, extractionSuccess bool, extractionTime float64, errMsg string) QualityMetrics {
	prices := countPrices(e)

	return QualityMetrics{
		URL:                url,
		BusinessType:       businessType,
		QualityScore:       Score(e, extractionSuccess),
		ExtractionSuccess:  extractionSuccess,
		HasBusinessName:    hasBusinessName(e),
		HasContactInfo:     hasContactInfo(e),
		HasPricing:         prices > 0,
		PriceCount:         prices,
		HasVaccinationInfo: hasVaccinationInfo(e),
		HasPolicyInfo:      hasPolicyInfo(e),
		ExtractionTime:     extractionTime,
		ErrorMessage:       errMsg,
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
	}
}
