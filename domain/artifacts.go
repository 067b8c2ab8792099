package domain

import (
	"encoding/json"
	"time"
)

// Artifact is one stage's produced result, stored separately from the
// session and referenced by ID only.
type Artifact struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Stage     Stage           `json:"stage"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// IntentResult is the payload of an intent-stage artifact.
type IntentResult struct {
	Industry    string    `json:"industry"`
	Country     string    `json:"country"`
	CompanySize string    `json:"company_size,omitempty"`
	Goal        string    `json:"goal"`
	RawInput    string    `json:"raw_input"`
	Confidence  float64   `json:"confidence"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// Pattern is one discovered success pattern.
type Pattern struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Description    string             `json:"description"`
	Confidence     float64            `json:"confidence"`
	Frequency      int                `json:"frequency"`
	TotalCompanies int                `json:"total_companies"`
	Category       string             `json:"category"`
	KeyAttributes  []string           `json:"key_attributes"`
	SuccessMetrics map[string]float64 `json:"success_metrics"`
	Complexity     string             `json:"implementation_complexity"`
}

// PatternReport is the payload of a pattern-stage artifact.
type PatternReport struct {
	ID                string    `json:"id"`
	SessionID         string    `json:"session_id"`
	Industry          string    `json:"industry"`
	Country           string    `json:"country"`
	CompaniesAnalyzed int       `json:"companies_analyzed"`
	Patterns          []Pattern `json:"patterns"`
	TotalPatterns     int       `json:"total_patterns"`
	AverageConfidence float64   `json:"average_confidence"`
	KeyInsights       []string  `json:"key_insights"`
	Recommendations   []string  `json:"recommendations"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// Lead is one generated lead.
type Lead struct {
	ID              string   `json:"id"`
	CompanyName     string   `json:"company_name"`
	Description     string   `json:"description"`
	Website         string   `json:"website"`
	Industry        string   `json:"industry"`
	Size            string   `json:"size"`
	Location        string   `json:"location"`
	Priority        string   `json:"priority"`
	QualityScore    float64  `json:"quality_score"`
	MatchedPatterns []string `json:"matched_patterns"`
}

// LeadReport is the payload of a lead-stage artifact.
type LeadReport struct {
	ID                  string    `json:"id"`
	SessionID           string    `json:"session_id"`
	PatternReportID     string    `json:"pattern_report_id"`
	Industry            string    `json:"industry"`
	Country             string    `json:"country"`
	Leads               []Lead    `json:"leads"`
	LeadsGenerated      int       `json:"leads_generated"`
	HighPriorityLeads   int       `json:"high_priority_leads"`
	MediumPriorityLeads int       `json:"medium_priority_leads"`
	LowPriorityLeads    int       `json:"low_priority_leads"`
	AverageQualityScore float64   `json:"average_quality_score"`
	RecommendedApproach string    `json:"recommended_approach"`
	GeneratedAt         time.Time `json:"generated_at"`
}
