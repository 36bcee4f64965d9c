package scoring

import (
	"encoding/json"
	"testing"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func servicesWithPrices(n int) []ServicePrice {
	services := make([]ServicePrice, n)
	for i := range services {
		services[i] = ServicePrice{
			ServiceName: "service",
			Price:       floatPtr(25.0),
		}
	}
	return services
}

func TestScoreComponents(t *testing.T) {
	tests := []struct {
		name     string
		e        *Extraction
		success  bool
		expected int
	}{
		{"nil extraction failed", nil, false, 0},
		{"nil extraction success", nil, true, 20},
		{"empty extraction success", &Extraction{}, true, 20},
		{"business name only", &Extraction{BusinessName: strPtr("Happy Paws")}, true, 30},
		{"whitespace name ignored", &Extraction{BusinessName: strPtr("   ")}, true, 20},
		{"contact phone only", &Extraction{
			Contact: &ContactInfo{Phone: strPtr("01234 567890")},
		}, true, 30},
		{"contact empty strings ignored", &Extraction{
			Contact: &ContactInfo{Phone: strPtr(""), Email: strPtr("")},
		}, true, 20},
		{"one price", &Extraction{Services: servicesWithPrices(1)}, true, 50},
		{"two prices", &Extraction{Services: servicesWithPrices(2)}, true, 52},
		{"price text counts", &Extraction{
			Services: []ServicePrice{{ServiceName: "groom", PriceText: strPtr("from £25")}},
		}, true, 50},
		{"service without price", &Extraction{
			Services: []ServicePrice{{ServiceName: "groom"}},
		}, true, 20},
		{"bonus capped at 20", &Extraction{Services: servicesWithPrices(30)}, true, 70},
		{"vaccination", &Extraction{
			VaccinationRequirements: []VaccinationRequirement{{VaccineName: "kennel cough"}},
		}, true, 25},
		{"cancellation policy", &Extraction{
			CancellationPolicy: strPtr("48 hours notice"),
		}, true, 25},
		{"deposit policy", &Extraction{
			DepositPolicy: strPtr("20% deposit"),
		}, true, 25},
		{"both policies still 5", &Extraction{
			CancellationPolicy: strPtr("48 hours"),
			DepositPolicy:      strPtr("20%"),
		}, true, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.e, tt.success); got != tt.expected {
				t.Errorf("Score() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestScoreWorkedExample(t *testing.T) {
	// Success (20) + name (10) + contact (10) + pricing (30) +
	// bonus for 3 prices (4) = 74.
	e := &Extraction{
		BusinessName: strPtr("Example Kennels"),
		Contact:      &ContactInfo{Phone: strPtr("01234 567890")},
		Services:     servicesWithPrices(3),
	}

	if got := Score(e, true); got != 74 {
		t.Errorf("Expected 74, got %d", got)
	}
}

func TestScoreClampedAt100(t *testing.T) {
	e := &Extraction{
		BusinessName:            strPtr("Example Kennels"),
		Contact:                 &ContactInfo{Email: strPtr("info@x.co.uk")},
		Services:                servicesWithPrices(15),
		VaccinationRequirements: []VaccinationRequirement{{VaccineName: "rabies"}},
		CancellationPolicy:      strPtr("48 hours"),
	}

	// 20+10+10+30+20+5+5 = 100 exactly; extra prices must not exceed it.
	if got := Score(e, true); got != 100 {
		t.Errorf("Expected 100, got %d", got)
	}
}

func TestScoreFailedExtractionStillCounts(t *testing.T) {
	// A failed extraction with partial data scores everything except
	// the success points.
	e := &Extraction{BusinessName: strPtr("Example Kennels")}
	if got := Score(e, false); got != 10 {
		t.Errorf("Expected 10, got %d", got)
	}
}

func TestBuildMetricsAgreesWithScore(t *testing.T) {
	e := &Extraction{
		BusinessName:            strPtr("Example Kennels"),
		Contact:                 &ContactInfo{Address: strPtr("123 Farm Lane")},
		Services:                servicesWithPrices(2),
		VaccinationRequirements: []VaccinationRequirement{{VaccineName: "kennel cough"}},
	}

	m := BuildMetrics("https://x.co.uk", "dog_kennel", e, true, 12.5, "")

	if m.QualityScore != Score(e, true) {
		t.Errorf("Metrics score %d disagrees with Score %d", m.QualityScore, Score(e, true))
	}
	if !m.HasBusinessName || !m.HasContactInfo || !m.HasPricing || !m.HasVaccinationInfo {
		t.Errorf("Flags disagree with content: %+v", m)
	}
	if m.HasPolicyInfo {
		t.Error("No policy info present, flag should be false")
	}
	if m.PriceCount != 2 {
		t.Errorf("Expected 2 prices, got %d", m.PriceCount)
	}
	if m.Timestamp == "" {
		t.Error("Timestamp should be populated")
	}
}

func TestBuildMetricsNilExtraction(t *testing.T) {
	m := BuildMetrics("https://x.co.uk", "cattery", nil, false, 3.0, "crawl failed")

	if m.QualityScore != 0 {
		t.Errorf("Expected score 0, got %d", m.QualityScore)
	}
	if m.ExtractionSuccess || m.HasBusinessName || m.HasPricing {
		t.Errorf("All flags should be false: %+v", m)
	}
	if m.ErrorMessage != "crawl failed" {
		t.Errorf("Unexpected error message: %s", m.ErrorMessage)
	}
}

func TestQualityMetricsJSONRoundTrip(t *testing.T) {
	m := QualityMetrics{
		URL:               "https://x.co.uk",
		BusinessType:      "dog_groomer",
		QualityScore:      74,
		ExtractionSuccess: true,
		HasPricing:        true,
		PriceCount:        3,
		ExtractionTime:    8.2,
		Timestamp:         "2026-01-02T15:04:05Z",
	}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var got QualityMetrics
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if got != m {
		t.Errorf("Round trip mismatch:\n got %+v\nwant %+v", got, m)
	}
}

func TestExtractionJSONNullSafety(t *testing.T) {
	// Extraction output with explicit nulls must decode and score
	// without panics.
	raw := `{
		"business_name": null,
		"contact": null,
		"services": [{"service_name": "boarding", "price": null, "price_text": null}],
		"vaccination_requirements": null,
		"cancellation_policy": null
	}`

	var e Extraction
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if got := Score(&e, true); got != 20 {
		t.Errorf("Expected 20 (success only), got %d", got)
	}
}
