package types

import "time"

// observed event kinds
const (
	EventKindConnection = "connection"
	EventKindSyscall    = "syscall"
)

// drift event types
const (
	DriftUnauthorizedConnection = "unauthorized_connection"
	DriftSuspiciousSyscall      = "suspicious_syscall"
	DriftConfigChange           = "config_change"
	DriftPrivilegeEscalation    = "privilege_escalation"
	DriftFileAccess             = "file_access"
)

// severities, fixed ordering critical > high > medium > low > info
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "info"
)

// SeverityRank - for sorting; higher means more severe
var SeverityRank = map[string]int{
	SeverityCritical: 5,
	SeverityHigh:     4,
	SeverityMedium:   3,
	SeverityLow:      2,
	SeverityInfo:     1,
}

// drift event actions
const (
	ActionBlocked = "blocked"
	ActionAllowed = "allowed"
	ActionFlagged = "flagged"
)

// ==================== //
// == Observed Event == //
// ==================== //

// ObservedEvent - one record from the observability feed. Transient:
// it is never stored, only classified.
type ObservedEvent struct {
	Time time.Time `json:"time"`
	Kind string    `json:"kind"`

	SourcePod      string `json:"source_pod"`
	DestinationPod string `json:"destination_pod,omitempty"`

	Port     int    `json:"port,omitempty"`
	Protocol string `json:"protocol,omitempty"`

	Syscall string `json:"syscall,omitempty"`
	Path    string `json:"path,omitempty"`
}

// ================= //
// == Drift Event == //
// ================= //

// DriftEvent - a classified deviation from the authorized intent graph.
// Append-only; resolved events are kept for the audit trail.
type DriftEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	EventType string `json:"event_type"`

	SourcePod      string `json:"source_pod"`
	DestinationPod string `json:"destination_pod,omitempty"`

	Severity string `json:"severity"`
	Action   string `json:"action"`
	Details  string `json:"details,omitempty"`

	Acknowledged bool `json:"acknowledged"`
	Resolved     bool `json:"resolved"`
}

// ===================== //
// == Analysis Report == //
// ===================== //

// PairCount - occurrence count for one (source, destination, type) group
type PairCount struct {
	SourcePod      string `json:"source_pod"`
	DestinationPod string `json:"destination_pod"`
	EventType      string `json:"event_type"`
	Count          int    `json:"count"`
}

// NameCount Structure
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// AnalysisRecommendation Structure
type AnalysisRecommendation struct {
	Priority string `json:"priority"`
	Action   string `json:"action"`
	Details  string `json:"details"`
}

// AnalysisReport - result of an on-demand drift analysis
type AnalysisReport struct {
	Timestamp   time.Time     `json:"timestamp"`
	Window      time.Duration `json:"window"`
	TotalEvents int           `json:"total_events"`

	EventsBySeverity map[string]int `json:"events_by_severity"`
	EventsByType     map[string]int `json:"events_by_type"`

	TopSources      []NameCount `json:"top_sources"`
	TopDestinations []NameCount `json:"top_destinations"`

	Groups          []PairCount              `json:"groups"`
	Recommendations []AnalysisRecommendation `json:"recommendations"`
}
