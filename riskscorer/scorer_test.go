package riskscorer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Nithish-ponnusamy/new-k8s/config"
	"github.com/Nithish-ponnusamy/new-k8s/driftdetector"
	"github.com/Nithish-ponnusamy/new-k8s/intentgraph"
	"github.com/Nithish-ponnusamy/new-k8s/types"
)

type suffixResolver struct{}

func (suffixResolver) ResolveService(pod string) string {
	if idx := strings.LastIndex(pod, "-"); idx > 0 {
		return pod[:idx]
	}

	return pod
}

type stubBundles struct {
	bundles []types.PolicyBundle
}

func (s stubBundles) ListBundles() []types.PolicyBundle {
	return s.bundles
}

func deployedBundle() types.PolicyBundle {
	return types.PolicyBundle{
		ID:        "b1",
		Namespace: "default",
		Intent: types.Intent{
			Name: "frontend-to-backend",
			Rules: []types.Rule{
				{FromService: "frontend", ToService: "backend", Ports: []int{8080}},
			},
		},
		Rules: []types.EnforcementRule{
			{Name: "default-backend-default-deny", Direction: types.DirectionDefaultDeny},
			{Name: "default-backend-ingress", Direction: types.DirectionIngress},
		},
		Deployed: true,
	}
}

func testScorer(bundles ...types.PolicyBundle) (*Scorer, *driftdetector.Detector) {
	graph := intentgraph.NewGraph()
	graph.Rebuild(bundles)

	detector := driftdetector.NewDetector(graph, suffixResolver{})

	return NewScorer(detector, graph, stubBundles{bundles: bundles}), detector
}

func driftEvent(source, dest string, port int) types.ObservedEvent {
	return types.ObservedEvent{
		Time:           time.Now().UTC(),
		Kind:           types.EventKindConnection,
		SourcePod:      source,
		DestinationPod: dest,
		Port:           port,
		Protocol:       "TCP",
	}
}

// ============ //
// == Levels == //
// ============ //

func TestRiskLevelBoundaries(t *testing.T) {
	assert.Equal(t, types.RiskLevelLow, riskLevel(0))
	assert.Equal(t, types.RiskLevelLow, riskLevel(19.999))
	assert.Equal(t, types.RiskLevelModerate, riskLevel(20))
	assert.Equal(t, types.RiskLevelModerate, riskLevel(39.999))
	assert.Equal(t, types.RiskLevelElevated, riskLevel(40))
	assert.Equal(t, types.RiskLevelElevated, riskLevel(59.999))
	assert.Equal(t, types.RiskLevelHigh, riskLevel(60))
	assert.Equal(t, types.RiskLevelHigh, riskLevel(79.999))
	assert.Equal(t, types.RiskLevelCritical, riskLevel(80))
	assert.Equal(t, types.RiskLevelCritical, riskLevel(100))
}

// ================ //
// == Components == //
// ================ //

func TestCleanSystemScoresLow(t *testing.T) {
	scorer, _ := testScorer(deployedBundle())

	score := scorer.Compute()
	assert.Equal(t, 0.0, score.OverallScore)
	assert.Equal(t, types.RiskLevelLow, score.RiskLevel)
	assert.Equal(t, 5, len(score.Components))
	assert.Empty(t, score.Recommendations)
}

func TestDriftComponentSaturates(t *testing.T) {
	scorer, detector := testScorer(deployedBundle())

	for i := 0; i < 20; i++ {
		detector.Process(driftEvent("attacker-1", "backend-1", 8080))
	}

	score := scorer.Compute()
	assert.Equal(t, 100.0, score.Components[types.ComponentDriftEvents].Score)
}

func TestResolvedDriftExcluded(t *testing.T) {
	scorer, detector := testScorer(deployedBundle())

	drift := detector.Process(driftEvent("attacker-1", "backend-1", 8080))
	assert.NoError(t, detector.Resolve(drift.ID))

	score := scorer.Compute()
	assert.Equal(t, 0.0, score.Components[types.ComponentDriftEvents].Score)
}

func TestCoverageComponent(t *testing.T) {
	scorer, detector := testScorer(deployedBundle())

	// one covered pair, one uncovered pair
	detector.Process(driftEvent("frontend-1", "backend-1", 8080))
	detector.Process(driftEvent("attacker-1", "backend-1", 8080))

	score := scorer.Compute()
	assert.Equal(t, 50.0, score.Components[types.ComponentPolicyCoverage].Score)
}

func TestRuntimeComponentOnlySyscallDrift(t *testing.T) {
	scorer, detector := testScorer(deployedBundle())

	// connection drift stays out of the runtime component
	detector.Process(driftEvent("attacker-1", "backend-1", 8080))

	score := scorer.Compute()
	assert.Equal(t, 0.0, score.Components[types.ComponentRuntimeBehavior].Score)

	detector.Process(types.ObservedEvent{
		Time: time.Now().UTC(), Kind: types.EventKindSyscall,
		SourcePod: "backend-1", Syscall: "setuid",
	})

	score = scorer.Compute()
	assert.Equal(t, 25.0, score.Components[types.ComponentRuntimeBehavior].Score)
}

func TestOverallIsWeightedSum(t *testing.T) {
	scorer, detector := testScorer(deployedBundle())

	for i := 0; i < 3; i++ {
		detector.Process(driftEvent("attacker-1", "backend-1", 8080))
	}
	detector.Process(types.ObservedEvent{
		Time: time.Now().UTC(), Kind: types.EventKindSyscall,
		SourcePod: "backend-1", Syscall: "setuid",
	})

	score := scorer.Compute()

	expected := 0.0
	for _, component := range score.Components {
		expected += component.Score * component.Weight
	}

	assert.InDelta(t, expected, score.OverallScore, 0.001)
	assert.Equal(t, riskLevel(score.OverallScore), score.RiskLevel)
}

func TestWeightsSumToOne(t *testing.T) {
	scorer, _ := testScorer(deployedBundle())

	score := scorer.Compute()

	sum := 0.0
	for _, component := range score.Components {
		sum += component.Weight
	}

	assert.InDelta(t, 1.0, sum, 0.001)
}

// =========== //
// == Trend == //
// =========== //

func TestTrendImproving(t *testing.T) {
	scorer, _ := testScorer(deployedBundle())

	scorer.history = []types.RiskSnapshot{
		{Timestamp: time.Now().UTC().Add(-24 * time.Hour), OverallScore: 50},
	}

	score := scorer.Compute()
	assert.Equal(t, types.TrendImproving, score.Trend.Direction)
	assert.InDelta(t, 100.0, score.Trend.Change24h, 0.001)
}

func TestTrendDegrading(t *testing.T) {
	scorer, detector := testScorer(deployedBundle())

	scorer.history = []types.RiskSnapshot{
		{Timestamp: time.Now().UTC().Add(-24 * time.Hour), OverallScore: 10},
	}

	for i := 0; i < 20; i++ {
		detector.Process(driftEvent("attacker-1", "backend-1", 8080))
	}

	score := scorer.Compute()
	assert.Equal(t, types.TrendDegrading, score.Trend.Direction)
	assert.Greater(t, score.Trend.Change24h, 0.0)
}

func TestTrendZeroBaseline(t *testing.T) {
	scorer, detector := testScorer(deployedBundle())

	scorer.history = []types.RiskSnapshot{
		{Timestamp: time.Now().UTC().Add(-24 * time.Hour), OverallScore: 0},
	}

	for i := 0; i < 5; i++ {
		detector.Process(driftEvent("attacker-1", "backend-1", 8080))
	}

	score := scorer.Compute()
	assert.Equal(t, types.TrendStable, score.Trend.Direction)
	assert.Equal(t, 0.0, score.Trend.Change24h)
}

func TestTrendFirstComputation(t *testing.T) {
	scorer, _ := testScorer(deployedBundle())

	score := scorer.Compute()
	assert.Equal(t, types.TrendStable, score.Trend.Direction)
	assert.Equal(t, 0.0, score.Trend.Change24h)
}

// ============= //
// == History == //
// ============= //

func TestHistoryLimit(t *testing.T) {
	config.CurrentCfg.ConfigRisk.HistoryLimit = 3
	defer func() {
		config.CurrentCfg.ConfigRisk.HistoryLimit = 0
	}()

	scorer, _ := testScorer(deployedBundle())

	for i := 0; i < 5; i++ {
		scorer.Compute()
	}

	assert.Equal(t, 3, len(scorer.History()))
}

func TestBreakdown(t *testing.T) {
	scorer, detector := testScorer(deployedBundle())

	detector.Process(driftEvent("attacker-1", "backend-1", 8080))
	scorer.Compute()

	breakdown := scorer.Breakdown()
	assert.Equal(t, 4, len(breakdown.ConfigurationChecks))
	assert.Equal(t, 5, len(breakdown.ComplianceChecks))
	assert.NotEmpty(t, breakdown.History)

	failed := 0
	for _, check := range breakdown.ComplianceChecks {
		if !check.Passed {
			failed++
		}
	}
	assert.Greater(t, failed, 0)
}

type stubNamespaces struct {
	namespaces []string
}

func (s stubNamespaces) ListNamespaces() []string {
	return s.namespaces
}

func namespaceCheck(t *testing.T, scorer *Scorer) types.ComplianceCheck {
	t.Helper()

	scorer.Compute()
	for _, check := range scorer.Breakdown().ComplianceChecks {
		if check.Name == "namespace-policy-present" {
			return check
		}
	}

	t.Fatal("namespace-policy-present check missing")
	return types.ComplianceCheck{}
}

func TestNamespaceCoverageCheck(t *testing.T) {
	scorer, _ := testScorer(deployedBundle())

	// payments has no deployed policy; kube-system is exempt
	scorer.SetNamespaceLister(stubNamespaces{
		namespaces: []string{"default", "payments", "kube-system"},
	})
	assert.False(t, namespaceCheck(t, scorer).Passed)

	scorer.SetNamespaceLister(stubNamespaces{
		namespaces: []string{"default", "kube-system"},
	})
	assert.True(t, namespaceCheck(t, scorer).Passed)
}

func TestNamespaceCoverageWithoutLister(t *testing.T) {
	scorer, _ := testScorer(deployedBundle())

	assert.True(t, namespaceCheck(t, scorer).Passed)
}

// ===================== //
// == Recommendations == //
// ===================== //

func TestRecommendationsOnHighRisk(t *testing.T) {
	scorer, detector := testScorer()

	for i := 0; i < 20; i++ {
		detector.Process(driftEvent("attacker-1", "backend-1", 8080))
	}

	score := scorer.Compute()
	assert.NotEmpty(t, score.Recommendations)

	categories := map[string]bool{}
	for _, rec := range score.Recommendations {
		categories[rec.Category] = true
	}
	assert.True(t, categories["drift"])
	assert.True(t, categories["coverage"])
}
