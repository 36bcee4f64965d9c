// Package scoring rates extraction results 0-100, aggregates metrics
// across runs, and applies the go/no-go decision matrix.
package scoring

import "time"

// ContactInfo holds extracted contact details. Nil pointers mean the
// field was absent from the extraction output.
type ContactInfo struct {
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
	Address *string `json:"address,omitempty"`
	Website *string `json:"website,omitempty"`
}

// ServicePrice is one service with its pricing information. Price is
// nil when only the raw price text could be captured.
type ServicePrice struct {
	ServiceName string   `json:"service_name"`
	Price       *float64 `json:"price,omitempty"`
	PriceText   *string  `json:"price_text,omitempty"`
	Unit        *string  `json:"unit,omitempty"`
	Description *string  `json:"description,omitempty"`
	Variations  []string `json:"variations,omitempty"`
}

// HasPrice reports whether the service carries usable pricing data:
// a numeric price or non-empty price text.
func (s ServicePrice) HasPrice() bool {
	return s.Price != nil || (s.PriceText != nil && *s.PriceText != "")
}

// VaccinationRequirement is one required vaccination.
type VaccinationRequirement struct {
	VaccineName        string  `json:"vaccine_name"`
	RequirementDetails *string `json:"requirement_details,omitempty"`
}

// Extraction is the unified extraction result schema shared by all
// pet care business types.
type Extraction struct {
	BusinessName *string      `json:"business_name,omitempty"`
	BusinessType *string      `json:"business_type,omitempty"`
	Description  *string      `json:"description,omitempty"`
	Contact      *ContactInfo `json:"contact,omitempty"`

	Services []ServicePrice `json:"services"`

	VaccinationRequirements []VaccinationRequirement `json:"vaccination_requirements"`

	DropOffProcedure   *string `json:"drop_off_procedure,omitempty"`
	PickUpProcedure    *string `json:"pick_up_procedure,omitempty"`
	CancellationPolicy *string `json:"cancellation_policy,omitempty"`
	DepositPolicy      *string `json:"deposit_policy,omitempty"`

	Amenities    []string `json:"amenities"`
	OpeningHours *string  `json:"opening_hours,omitempty"`
	SpecialNotes *string  `json:"special_notes,omitempty"`
}

// QualityMetrics is the per-extraction scoring record written to the
// metrics artifact.
type QualityMetrics struct {
	URL                string  `json:"url"`
	BusinessType       string  `json:"business_type"`
	QualityScore       int     `json:"quality_score"`
	ExtractionSuccess  bool    `json:"extraction_success"`
	HasBusinessName    bool    `json:"has_business_name"`
	HasContactInfo     bool    `json:"has_contact_info"`
	HasPricing         bool    `json:"has_pricing"`
	PriceCount         int     `json:"price_count"`
	HasVaccinationInfo bool    `json:"has_vaccination_info"`
	HasPolicyInfo      bool    `json:"has_policy_info"`
	ExtractionTime     float64 `json:"extraction_time"`
	ErrorMessage       string  `json:"error_message,omitempty"`
	Timestamp          string  `json:"timestamp"`
}

// FailedMetrics builds the metrics row recorded when a pipeline stage
// fails before scoring can run.
func FailedMetrics(url, businessType, errMsg string, extractionTime float64) QualityMetrics {
	return QualityMetrics{
		URL:            url,
		BusinessType:   businessType,
		QualityScore:   0,
		ErrorMessage:   errMsg,
		ExtractionTime: extractionTime,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
}

// AggregateStats summarizes a batch of metrics.
type AggregateStats struct {
	TotalURLs             int     `json:"total_urls"`
	SuccessfulExtractions int     `json:"successful_extractions"`
	SuccessRate           float64 `json:"success_rate"`
	AverageQualityScore   float64 `json:"average_quality_score"`
	URLsWithPricing       int     `json:"urls_with_pricing"`
	PricingRate           float64 `json:"pricing_rate"`
	AverageExtractionTime float64 `json:"average_extraction_time"`
	TotalPricesFound      int     `json:"total_prices_found"`
}
