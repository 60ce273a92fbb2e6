package types

import "time"

// risk score component names
const (
	ComponentDriftEvents     = "drift_events"
	ComponentPolicyCoverage  = "policy_coverage"
	ComponentConfiguration   = "configuration"
	ComponentCompliance      = "compliance"
	ComponentRuntimeBehavior = "runtime_behavior"
)

// risk levels
const (
	RiskLevelLow      = "low"
	RiskLevelModerate = "moderate"
	RiskLevelElevated = "elevated"
	RiskLevelHigh     = "high"
	RiskLevelCritical = "critical"
)

// trend directions
const (
	TrendImproving = "improving"
	TrendDegrading = "degrading"
	TrendStable    = "stable"
)

// ================ //
// == Risk Score == //
// ================ //

// ComponentScore Structure
type ComponentScore struct {
	Score       float64 `json:"score"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// RiskTrend Structure
type RiskTrend struct {
	Direction string  `json:"direction"`
	Change24h float64 `json:"change_24h"`
}

// RiskRecommendation Structure
type RiskRecommendation struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Action      string `json:"action"`
	Priority    string `json:"priority"`
	Category    string `json:"category"`
}

// RiskScore - composite security posture snapshot, recomputed as a whole
type RiskScore struct {
	Timestamp time.Time `json:"timestamp"`

	OverallScore float64 `json:"overall_score"`
	RiskLevel    string  `json:"risk_level"`

	Components map[string]ComponentScore `json:"components"`

	Trend           RiskTrend            `json:"trend"`
	Recommendations []RiskRecommendation `json:"recommendations"`
}

// RiskSnapshot - one time-series entry kept for trend computation
type RiskSnapshot struct {
	Timestamp    time.Time `json:"timestamp"`
	OverallScore float64   `json:"overall_score"`
}

// ComplianceCheck - one posture checklist entry
type ComplianceCheck struct {
	Name        string `json:"name"`
	Passed      bool   `json:"passed"`
	Description string `json:"description"`
}

// RiskBreakdown - current score plus the retained history and the
// checklist results behind the configuration/compliance components
type RiskBreakdown struct {
	Timestamp time.Time `json:"timestamp"`

	Current RiskScore      `json:"current"`
	History []RiskSnapshot `json:"history"`

	ConfigurationChecks []ComplianceCheck `json:"configuration_checks"`
	ComplianceChecks    []ComplianceCheck `json:"compliance_checks"`
}
