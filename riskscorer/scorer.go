package riskscorer

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron"
	"github.com/rs/zerolog"

	"github.com/Nithish-ponnusamy/new-k8s/config"
	"github.com/Nithish-ponnusamy/new-k8s/driftdetector"
	"github.com/Nithish-ponnusamy/new-k8s/intentgraph"
	logger "github.com/Nithish-ponnusamy/new-k8s/logging"
	"github.com/Nithish-ponnusamy/new-k8s/observability"
	"github.com/Nithish-ponnusamy/new-k8s/types"
)

var log *zerolog.Logger

func init() {
	log = logger.GetInstance()
}

const (
	STATUS_RUNNING = "running"
	STATUS_IDLE    = "idle"
)

const (
	defaultWindowHours  = 24
	defaultHistoryLimit = 1000

	trendLookback = 24 * time.Hour
)

// penalty per drift event severity
var severityPenalty = map[string]float64{
	types.SeverityCritical: 25,
	types.SeverityHigh:     15,
	types.SeverityMedium:   7,
	types.SeverityLow:      2,
	types.SeverityInfo:     0.5,
}

// drift types that originate from the syscall feed
var runtimeEventTypes = map[string]bool{
	types.DriftPrivilegeEscalation: true,
	types.DriftSuspiciousSyscall:   true,
	types.DriftConfigChange:        true,
	types.DriftFileAccess:          true,
}

// BundleSource provides the compiled bundles the checks run against.
type BundleSource interface {
	ListBundles() []types.PolicyBundle
}

// NamespaceLister reports the active cluster namespaces for the
// namespace-coverage compliance check.
type NamespaceLister interface {
	ListNamespaces() []string
}

// Scorer computes the composite risk score from the drift history, the
// intent graph and the posture checklists. Snapshots are retained for
// trend computation.
type Scorer struct {
	detector   *driftdetector.Detector
	graph      *intentgraph.Graph
	bundles    BundleSource
	namespaces NamespaceLister

	mu      sync.Mutex
	history []types.RiskSnapshot
	current *types.RiskScore

	lastConfigChecks     []types.ComplianceCheck
	lastComplianceChecks []types.ComplianceCheck

	cronJob *cron.Cron
	status  string
}

func NewScorer(detector *driftdetector.Detector, graph *intentgraph.Graph, bundles BundleSource) *Scorer {
	return &Scorer{
		detector: detector,
		graph:    graph,
		bundles:  bundles,
		status:   STATUS_IDLE,
	}
}

// SetNamespaceLister wires the cluster namespace scan into the
// compliance checklist. Without one the check passes vacuously.
func (s *Scorer) SetNamespaceLister(lister NamespaceLister) {
	s.namespaces = lister
}

// ================ //
// == Components == //
// ================ //

func saturate(score float64) float64 {
	return math.Min(score, 100)
}

func (s *Scorer) driftEventScore(events []types.DriftEvent) float64 {
	score := 0.0
	for _, event := range events {
		if event.Resolved {
			continue
		}
		score += severityPenalty[event.Severity]
	}

	return saturate(score)
}

func (s *Scorer) runtimeBehaviorScore(events []types.DriftEvent) float64 {
	score := 0.0
	for _, event := range events {
		if event.Resolved || !runtimeEventTypes[event.EventType] {
			continue
		}
		score += severityPenalty[event.Severity]
	}

	return saturate(score)
}

func (s *Scorer) policyCoverageScore() float64 {
	pairs := s.detector.ObservedPairs()
	if len(pairs) == 0 {
		return 0
	}

	covered := 0
	for _, pair := range pairs {
		if s.graph.HasPair(pair.SourcePod, pair.DestinationPod) {
			covered++
		}
	}

	ratio := float64(covered) / float64(len(pairs))

	return saturate((1 - ratio) * 100)
}

func checklistScore(checks []types.ComplianceCheck) float64 {
	score := 0.0
	for _, check := range checks {
		if !check.Passed {
			score += checkPenalty
		}
	}

	return saturate(score)
}

// =========== //
// == Score == //
// =========== //

func riskLevel(score float64) string {
	switch {
	case score < 20:
		return types.RiskLevelLow
	case score < 40:
		return types.RiskLevelModerate
	case score < 60:
		return types.RiskLevelElevated
	case score < 80:
		return types.RiskLevelHigh
	default:
		return types.RiskLevelCritical
	}
}

// Compute recalculates every component, derives the composite score and
// appends a snapshot to the retained history.
func (s *Scorer) Compute() types.RiskScore {
	cfg := config.GetCfgRisk()

	windowHours := cfg.WindowHours
	if windowHours <= 0 {
		windowHours = defaultWindowHours
	}

	now := time.Now().UTC()
	events := s.detector.EventsSince(now.Add(-time.Duration(windowHours) * time.Hour))

	configChecks := s.configurationChecks()
	complianceChecks := s.complianceChecks(events)

	weights := config.GetCfgRiskWeights()

	components := map[string]types.ComponentScore{
		types.ComponentDriftEvents: {
			Score:       s.driftEventScore(events),
			Weight:      weights[types.ComponentDriftEvents],
			Description: "unresolved drift events weighted by severity",
		},
		types.ComponentRuntimeBehavior: {
			Score:       s.runtimeBehaviorScore(events),
			Weight:      weights[types.ComponentRuntimeBehavior],
			Description: "runtime syscall and file access drift",
		},
		types.ComponentPolicyCoverage: {
			Score:       s.policyCoverageScore(),
			Weight:      weights[types.ComponentPolicyCoverage],
			Description: "observed traffic without a covering intent",
		},
		types.ComponentConfiguration: {
			Score:       checklistScore(configChecks),
			Weight:      weights[types.ComponentConfiguration],
			Description: "engine and policy configuration posture",
		},
		types.ComponentCompliance: {
			Score:       checklistScore(complianceChecks),
			Weight:      weights[types.ComponentCompliance],
			Description: "posture checklist results",
		},
	}

	overall := 0.0
	for _, component := range components {
		overall += component.Score * component.Weight
	}
	overall = saturate(overall)

	score := types.RiskScore{
		Timestamp:    now,
		OverallScore: overall,
		RiskLevel:    riskLevel(overall),
		Components:   components,
	}

	s.mu.Lock()

	score.Trend = s.computeTrend(now, overall)
	score.Recommendations = buildRecommendations(score)

	s.history = append(s.history, types.RiskSnapshot{Timestamp: now, OverallScore: overall})

	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}

	s.current = &score
	s.lastConfigChecks = configChecks
	s.lastComplianceChecks = complianceChecks

	s.mu.Unlock()

	observability.SetRiskScore(overall)

	log.Info().Msgf("risk score computed: %.1f (%s)", overall, score.RiskLevel)

	return score
}

// computeTrend compares against the snapshot closest to 24 hours ago.
// Callers hold s.mu.
func (s *Scorer) computeTrend(now time.Time, overall float64) types.RiskTrend {
	trend := types.RiskTrend{Direction: types.TrendStable}

	if len(s.history) == 0 {
		return trend
	}

	target := now.Add(-trendLookback)

	closest := s.history[0]
	closestDistance := absDuration(closest.Timestamp.Sub(target))

	for _, snapshot := range s.history[1:] {
		distance := absDuration(snapshot.Timestamp.Sub(target))
		if distance < closestDistance {
			closest = snapshot
			closestDistance = distance
		}
	}

	previous := closest.OverallScore
	if previous == 0 {
		return trend
	}

	trend.Change24h = math.Abs(overall-previous) / previous * 100

	switch {
	case overall < previous:
		trend.Direction = types.TrendImproving
	case overall > previous:
		trend.Direction = types.TrendDegrading
	}

	return trend
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}

	return d
}

// componentRecommendations holds the advice emitted when the named
// component crosses the review threshold.
var componentRecommendations = map[string]types.RiskRecommendation{
	types.ComponentDriftEvents: {
		Title:       "Unresolved drift backlog",
		Description: "Unresolved drift events dominate the score.",
		Action:      "acknowledge and resolve outstanding drift events",
		Category:    "drift",
	},
	types.ComponentRuntimeBehavior: {
		Title:       "Suspicious runtime activity",
		Description: "Workloads are issuing syscalls outside their profile.",
		Action:      "inspect the flagged workloads before resolving their drift",
		Category:    "runtime",
	},
	types.ComponentPolicyCoverage: {
		Title:       "Uncovered traffic",
		Description: "Observed communication lacks a deployed intent.",
		Action:      "codify intents for the observed service pairs",
		Category:    "coverage",
	},
	types.ComponentConfiguration: {
		Title:       "Configuration posture failing",
		Description: "Posture checks against the compiled bundles are failing.",
		Action:      "deploy pending bundles and restore the default-deny baseline",
		Category:    "configuration",
	},
	types.ComponentCompliance: {
		Title:       "Compliance checklist failing",
		Description: "Multiple checklist entries are failing.",
		Action:      "work through the failed checklist entries",
		Category:    "compliance",
	},
}

// buildRecommendations emits one recommendation per component scoring
// above 50, at high priority above 70 and medium otherwise.
func buildRecommendations(score types.RiskScore) []types.RiskRecommendation {
	names := []string{}
	for name := range score.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	recommendations := []types.RiskRecommendation{}

	for _, name := range names {
		component := score.Components[name]
		if component.Score <= 50 {
			continue
		}

		recommendation := componentRecommendations[name]
		recommendation.Priority = "medium"
		if component.Score > 70 {
			recommendation.Priority = "high"
		}

		recommendations = append(recommendations, recommendation)
	}

	return recommendations
}

// ============= //
// == Queries == //
// ============= //

// Current returns the last computed score, computing one if none exists.
func (s *Scorer) Current() types.RiskScore {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()

	if current == nil {
		return s.Compute()
	}

	return *current
}

func (s *Scorer) History() []types.RiskSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]types.RiskSnapshot, len(s.history))
	copy(history, s.history)

	return history
}

// Breakdown returns the current score with the retained history and the
// checklist results behind the configuration and compliance components.
func (s *Scorer) Breakdown() types.RiskBreakdown {
	current := s.Current()

	s.mu.Lock()
	defer s.mu.Unlock()

	history := make([]types.RiskSnapshot, len(s.history))
	copy(history, s.history)

	configChecks := make([]types.ComplianceCheck, len(s.lastConfigChecks))
	copy(configChecks, s.lastConfigChecks)

	complianceChecks := make([]types.ComplianceCheck, len(s.lastComplianceChecks))
	copy(complianceChecks, s.lastComplianceChecks)

	return types.RiskBreakdown{
		Timestamp:           time.Now().UTC(),
		Current:             current,
		History:             history,
		ConfigurationChecks: configChecks,
		ComplianceChecks:    complianceChecks,
	}
}

// ============ //
// == Worker == //
// ============ //

func (s *Scorer) StartWorker() {
	if s.status != STATUS_IDLE {
		log.Info().Msg("There is no idle risk scoring worker")
		return
	}

	interval := config.GetCfgRisk().CronJobTimeInterval
	if interval == "" {
		interval = "@every 0h5m0s"
	}

	s.cronJob = cron.New()
	if err := s.cronJob.AddFunc(interval, func() { s.Compute() }); err != nil {
		log.Error().Msg(err.Error())
		return
	}
	s.cronJob.Start()

	s.status = STATUS_RUNNING

	log.Info().Msg("Risk scoring cron job started")
}

func (s *Scorer) StopWorker() {
	if s.status != STATUS_RUNNING {
		log.Info().Msg("There is no running risk scoring worker")
		return
	}

	s.cronJob.Stop()
	s.cronJob = nil

	s.status = STATUS_IDLE

	log.Info().Msg("Risk scoring cron job stopped")
}
