package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PranavReddyGaddam/Signal/domain"
)

// Template-driven stage implementations. These stand in for the real
// analysis engines and produce deterministic, structurally complete
// artifacts from the session input.

// MockIntent extracts a structured intent from free-form user text via
// keyword matching.
func MockIntent() Func {
	return func(ctx context.Context, in Input, progress ProgressFunc) (*Result, error) {
		progress(10, "Starting intent extraction...")

		lower := strings.ToLower(in.UserInput)

		industry := "SaaS"
		switch {
		case strings.Contains(lower, "fintech") || strings.Contains(lower, "financial"):
			industry = "FinTech"
		case strings.Contains(lower, "healthtech") || strings.Contains(lower, "healthcare"):
			industry = "HealthTech"
		case strings.Contains(lower, "e-commerce") || strings.Contains(lower, "ecommerce"):
			industry = "E-commerce"
		case strings.Contains(lower, "artificial intelligence") || strings.Contains(lower, "ai"):
			industry = "AI/ML"
		}

		country := "United States"
		switch {
		case strings.Contains(lower, "germany"):
			country = "Germany"
		case strings.Contains(lower, "united kingdom") || strings.Contains(lower, "uk"):
			country = "United Kingdom"
		case strings.Contains(lower, "france"):
			country = "France"
		case strings.Contains(lower, "canada"):
			country = "Canada"
		}

		progress(80, "Processing intent with analysis models...")

		result := domain.IntentResult{
			Industry:    industry,
			Country:     country,
			Goal:        "lead_generation",
			RawInput:    in.UserInput,
			Confidence:  0.85,
			ExtractedAt: time.Now().UTC(),
		}
		payload, err := json.Marshal(result)
		if err != nil {
			return nil, Fatal(err)
		}
		return &Result{Payload: payload}, nil
	}
}

// MockPatterns discovers success patterns for the extracted intent.
func MockPatterns() Func {
	return func(ctx context.Context, in Input, progress ProgressFunc) (*Result, error) {
		var intent domain.IntentResult
		if err := json.Unmarshal(in.Prior, &intent); err != nil {
			return nil, Fatalf("invalid intent payload: %w", err)
		}

		progress(10, "Analyzing market companies...")
		patterns := patternTemplates(intent.Industry)
		progress(60, fmt.Sprintf("Discovered %d candidate patterns", len(patterns)))

		var totalConfidence float64
		for _, p := range patterns {
			totalConfidence += p.Confidence
		}

		report := domain.PatternReport{
			ID:                "art_" + uuid.New().String()[:8],
			SessionID:         in.SessionID,
			Industry:          intent.Industry,
			Country:           intent.Country,
			CompaniesAnalyzed: 12,
			Patterns:          patterns,
			TotalPatterns:     len(patterns),
			AverageConfidence: totalConfidence / float64(len(patterns)),
			KeyInsights: []string{
				fmt.Sprintf("Top %s companies show strong product-led growth patterns", intent.Industry),
				"Enterprise customers prefer annual contracts with volume discounts",
				"Free trial conversion rates average 15-20% in this market",
			},
			Recommendations: []string{
				"Focus on product-led growth strategies",
				"Implement tiered pricing with enterprise options",
				"Optimize free trial to paid conversion funnel",
			},
			GeneratedAt: time.Now().UTC(),
		}

		progress(85, "Scoring pattern confidence...")

		payload, err := json.Marshal(report)
		if err != nil {
			return nil, Fatal(err)
		}
		return &Result{Payload: payload}, nil
	}
}

// MockLeads generates scored leads from a pattern report.
func MockLeads() Func {
	return func(ctx context.Context, in Input, progress ProgressFunc) (*Result, error) {
		var report domain.PatternReport
		if err := json.Unmarshal(in.Prior, &report); err != nil {
			return nil, Fatalf("invalid pattern report payload: %w", err)
		}

		progress(10, "Matching companies against patterns...")
		leads := leadTemplates(report.Industry, report.Country, report.Patterns)
		progress(60, fmt.Sprintf("Generated %d candidate leads", len(leads)))

		var high, medium, low int
		var totalQuality float64
		for _, l := range leads {
			switch l.Priority {
			case "high":
				high++
			case "medium":
				medium++
			default:
				low++
			}
			totalQuality += l.QualityScore
		}

		out := domain.LeadReport{
			ID:                  "art_" + uuid.New().String()[:8],
			SessionID:           in.SessionID,
			PatternReportID:     report.ID,
			Industry:            report.Industry,
			Country:             report.Country,
			Leads:               leads,
			LeadsGenerated:      len(leads),
			HighPriorityLeads:   high,
			MediumPriorityLeads: medium,
			LowPriorityLeads:    low,
			RecommendedApproach: "Focus on high-value enterprise accounts with strong technical teams",
			GeneratedAt:         time.Now().UTC(),
		}
		if len(leads) > 0 {
			out.AverageQualityScore = totalQuality / float64(len(leads))
		}

		progress(85, "Scoring lead quality...")

		payload, err := json.Marshal(out)
		if err != nil {
			return nil, Fatal(err)
		}
		return &Result{Payload: payload}, nil
	}
}

func patternTemplates(industry string) []domain.Pattern {
	patterns := []domain.Pattern{
		{
			ID:             uuid.New().String(),
			Name:           "Product-Led Growth Strategy",
			Description:    "Companies using freemium models with strong product experience",
			Confidence:     0.85,
			Frequency:      8,
			TotalCompanies: 12,
			Category:       "business_model",
			KeyAttributes: []string{
				"Strong free trial conversion",
				"Self-service onboarding",
				"Viral growth mechanisms",
			},
			SuccessMetrics: map[string]float64{
				"conversion_rate": 0.18,
				"time_to_value":   25.0,
				"expansion_rate":  0.25,
			},
			Complexity: "medium",
		},
		{
			ID:             uuid.New().String(),
			Name:           "Enterprise Sales Focus",
			Description:    "B2B companies with enterprise customer acquisition",
			Confidence:     0.78,
			Frequency:      6,
			TotalCompanies: 10,
			Category:       "sales_strategy",
			KeyAttributes: []string{
				"Direct sales team",
				"Long sales cycles",
				"High contract values",
			},
			SuccessMetrics: map[string]float64{
				"average_deal_size":       150000.0,
				"sales_cycle_months":      9.0,
				"customer_lifetime_years": 7.0,
			},
			Complexity: "high",
		},
	}

	switch industry {
	case "FinTech":
		patterns = append(patterns, domain.Pattern{
			ID:             uuid.New().String(),
			Name:           "Regulatory Compliance First",
			Description:    "FinTech companies prioritizing compliance and security",
			Confidence:     0.92,
			Frequency:      10,
			TotalCompanies: 15,
			Category:       "compliance",
			KeyAttributes: []string{
				"Strong compliance framework",
				"Security-first approach",
				"Regulatory partnerships",
			},
			SuccessMetrics: map[string]float64{
				"compliance_score":         0.98,
				"regulatory_approval_days": 180.0,
			},
			Complexity: "high",
		})
	case "HealthTech":
		patterns = append(patterns, domain.Pattern{
			ID:             uuid.New().String(),
			Name:           "Clinical Workflow Integration",
			Description:    "HealthTech companies integrating with clinical workflows",
			Confidence:     0.88,
			Frequency:      7,
			TotalCompanies: 11,
			Category:       "integration",
			KeyAttributes: []string{
				"HIPAA compliance",
				"EHR integrations",
				"Clinical validation",
			},
			SuccessMetrics: map[string]float64{
				"adoption_rate":         0.75,
				"integration_time_days": 85.0,
			},
			Complexity: "high",
		})
	}
	return patterns
}

var leadCompanies = map[string][]string{
	"SaaS":       {"TechCorp Solutions", "CloudFlow Systems", "DataSync Inc", "PlatformPro", "SaaSphere"},
	"FinTech":    {"PaySecure", "BankTech Innovations", "FinanceFlow", "CryptoSafe", "InvestPro"},
	"HealthTech": {"MedTech Solutions", "HealthSync", "CarePlatform", "BioTech Systems", "MedicalAI"},
	"E-commerce": {"ShopFlow", "RetailTech", "CommercePro", "MarketSync", "SalesPlatform"},
	"AI/ML":      {"AIBrain", "MachineLogic", "NeuralTech", "DataScience Pro", "SmartSystems"},
}

var leadLocations = map[string][]string{
	"United States":  {"San Francisco, CA", "New York, NY", "Austin, TX", "Boston, MA", "Seattle, WA"},
	"Germany":        {"Berlin", "Munich", "Hamburg", "Frankfurt", "Stuttgart"},
	"United Kingdom": {"London", "Manchester", "Edinburgh", "Bristol", "Birmingham"},
	"France":         {"Paris", "Lyon", "Marseille", "Toulouse", "Nice"},
	"Canada":         {"Toronto", "Vancouver", "Montreal", "Calgary", "Ottawa"},
}

func leadTemplates(industry, country string, patterns []domain.Pattern) []domain.Lead {
	companies, ok := leadCompanies[industry]
	if !ok {
		companies = leadCompanies["SaaS"]
	}
	locations, ok := leadLocations[country]
	if !ok {
		locations = leadLocations["United States"]
	}

	var matched []string
	for i, p := range patterns {
		if i == 2 {
			break
		}
		matched = append(matched, p.Name)
	}

	leads := make([]domain.Lead, 0, len(companies))
	for i, company := range companies {
		priority, quality := "low", 0.45
		switch {
		case i < 2:
			priority, quality = "high", 0.85
		case i < 4:
			priority, quality = "medium", 0.65
		}
		size := "Small"
		switch priority {
		case "high":
			size = "Enterprise"
		case "medium":
			size = "Mid-Market"
		}

		leads = append(leads, domain.Lead{
			ID:              uuid.New().String(),
			CompanyName:     company,
			Description:     fmt.Sprintf("Leading %s company specializing in innovative solutions", industry),
			Website:         fmt.Sprintf("https://www.%s.com", strings.ReplaceAll(strings.ToLower(company), " ", "")),
			Industry:        industry,
			Size:            size,
			Location:        locations[i%len(locations)],
			Priority:        priority,
			QualityScore:    quality,
			MatchedPatterns: matched,
		})
	}
	return leads
}
