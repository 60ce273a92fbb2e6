package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Nithish-ponnusamy/new-k8s/cluster"
	"github.com/Nithish-ponnusamy/new-k8s/types"

	networkingv1 "k8s.io/api/networking/v1"
)

type suffixResolver struct{}

func (suffixResolver) ResolveService(pod string) string {
	if idx := strings.LastIndex(pod, "-"); idx > 0 {
		return pod[:idx]
	}

	return pod
}

type countingGateway struct {
	applyCalls  int
	deleteCalls int
	failApply   bool
}

func (gw *countingGateway) Apply(ctx context.Context, rules []types.EnforcementRule) error {
	gw.applyCalls++

	if gw.failApply {
		return &cluster.GatewayError{Op: "apply", Transient: false, Err: errors.New("forbidden")}
	}

	return nil
}

func (gw *countingGateway) Delete(ctx context.Context, rules []types.EnforcementRule) error {
	gw.deleteCalls++
	return nil
}

func (gw *countingGateway) List(ctx context.Context, namespace string) ([]networkingv1.NetworkPolicy, error) {
	return nil, nil
}

func testRequest() types.IntentRequest {
	return types.IntentRequest{
		Name:      "frontend-to-backend",
		Namespace: "default",
		Rules: []types.Rule{
			{FromService: "frontend", ToService: "backend", Ports: []int{8080}},
		},
	}
}

func TestGenerateAndList(t *testing.T) {
	engine := NewEngine(&countingGateway{}, suffixResolver{})

	bundle, err := engine.Generate(testRequest())
	assert.NoError(t, err)
	assert.NotEmpty(t, bundle.ID)
	assert.Equal(t, 4, len(bundle.Rules))
	assert.False(t, bundle.Deployed)

	bundles := engine.ListBundles()
	assert.Equal(t, 1, len(bundles))
	assert.Equal(t, bundle.ID, bundles[0].ID)

	fetched, err := engine.GetBundle(bundle.ID)
	assert.NoError(t, err)
	assert.Equal(t, bundle.Name, fetched.Name)
}

func TestGenerateInvalidRequest(t *testing.T) {
	engine := NewEngine(&countingGateway{}, suffixResolver{})

	_, err := engine.Generate(types.IntentRequest{})
	assert.True(t, errors.Is(err, types.ErrInvalidIntent))

	_, err = engine.Generate(types.IntentRequest{
		Name:  "bad",
		Rules: []types.Rule{{FromService: "", ToService: "backend"}},
	})
	assert.True(t, errors.Is(err, types.ErrInvalidIntent))

	assert.Empty(t, engine.ListBundles())
}

func TestGetBundleNotFound(t *testing.T) {
	engine := NewEngine(&countingGateway{}, suffixResolver{})

	_, err := engine.GetBundle("missing")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestDeployAtMostOnce(t *testing.T) {
	gateway := &countingGateway{}
	engine := NewEngine(gateway, suffixResolver{})

	bundle, _ := engine.Generate(testRequest())

	assert.NoError(t, engine.DeployBundle(context.Background(), bundle.ID))
	assert.NoError(t, engine.DeployBundle(context.Background(), bundle.ID))

	assert.Equal(t, 1, gateway.applyCalls)

	deployed, _ := engine.GetBundle(bundle.ID)
	assert.True(t, deployed.Deployed)
}

type blockingGateway struct {
	applyCalls  int32
	started     chan struct{}
	startedOnce sync.Once
	release     chan struct{}
}

func (gw *blockingGateway) Apply(ctx context.Context, rules []types.EnforcementRule) error {
	atomic.AddInt32(&gw.applyCalls, 1)
	gw.startedOnce.Do(func() { close(gw.started) })
	<-gw.release
	return nil
}

func (gw *blockingGateway) Delete(ctx context.Context, rules []types.EnforcementRule) error {
	return nil
}

func (gw *blockingGateway) List(ctx context.Context, namespace string) ([]networkingv1.NetworkPolicy, error) {
	return nil, nil
}

func TestDeployConcurrentPushesOnce(t *testing.T) {
	gateway := &blockingGateway{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	engine := NewEngine(gateway, suffixResolver{})

	bundle, _ := engine.Generate(testRequest())

	done := make(chan error, 1)
	go func() {
		done <- engine.DeployBundle(context.Background(), bundle.ID)
	}()

	// second call while the first is mid-flight is a no-op
	<-gateway.started
	assert.NoError(t, engine.DeployBundle(context.Background(), bundle.ID))

	close(gateway.release)
	assert.NoError(t, <-done)

	assert.Equal(t, int32(1), atomic.LoadInt32(&gateway.applyCalls))

	deployed, _ := engine.GetBundle(bundle.ID)
	assert.True(t, deployed.Deployed)
}

func TestDeployUpdatesIntentGraph(t *testing.T) {
	engine := NewEngine(&countingGateway{}, suffixResolver{})

	bundle, _ := engine.Generate(testRequest())

	// before deployment the pair is unknown
	drift := engine.Detector().Process(types.ObservedEvent{
		Kind: types.EventKindConnection, SourcePod: "frontend-1", DestinationPod: "backend-1",
		Port: 8080, Protocol: "TCP",
	})
	assert.NotNil(t, drift)

	assert.NoError(t, engine.DeployBundle(context.Background(), bundle.ID))

	drift = engine.Detector().Process(types.ObservedEvent{
		Kind: types.EventKindConnection, SourcePod: "frontend-1", DestinationPod: "backend-1",
		Port: 8080, Protocol: "TCP",
	})
	assert.Nil(t, drift)
}

func TestDeployFailureLeavesUndeployed(t *testing.T) {
	gateway := &countingGateway{failApply: true}
	engine := NewEngine(gateway, suffixResolver{})

	bundle, _ := engine.Generate(testRequest())

	err := engine.DeployBundle(context.Background(), bundle.ID)
	assert.True(t, errors.Is(err, types.ErrDeployFailed))

	fetched, _ := engine.GetBundle(bundle.ID)
	assert.False(t, fetched.Deployed)

	// a later retry can still deploy
	gateway.failApply = false
	assert.NoError(t, engine.DeployBundle(context.Background(), bundle.ID))
}

func TestDeleteBundle(t *testing.T) {
	gateway := &countingGateway{}
	engine := NewEngine(gateway, suffixResolver{})

	bundle, _ := engine.Generate(testRequest())
	assert.NoError(t, engine.DeployBundle(context.Background(), bundle.ID))

	assert.NoError(t, engine.DeleteBundle(context.Background(), bundle.ID))
	assert.Equal(t, 1, gateway.deleteCalls)
	assert.Empty(t, engine.ListBundles())

	err := engine.DeleteBundle(context.Background(), bundle.ID)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestDeleteUndeployedSkipsGateway(t *testing.T) {
	gateway := &countingGateway{}
	engine := NewEngine(gateway, suffixResolver{})

	bundle, _ := engine.Generate(testRequest())

	assert.NoError(t, engine.DeleteBundle(context.Background(), bundle.ID))
	assert.Equal(t, 0, gateway.deleteCalls)
}

func TestExport(t *testing.T) {
	engine := NewEngine(&countingGateway{}, suffixResolver{})

	bundle, _ := engine.Generate(testRequest())

	manifest, err := engine.ExportYAML(bundle.ID)
	assert.NoError(t, err)
	assert.Contains(t, manifest, "kind: NetworkPolicy")

	raw, err := engine.ExportJSON(bundle.ID)
	assert.NoError(t, err)
	assert.Contains(t, raw, "NetworkPolicy")

	_, err = engine.ExportYAML("missing")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestSimulateEvents(t *testing.T) {
	engine := NewEngine(&countingGateway{}, suffixResolver{})

	bundle, _ := engine.Generate(testRequest())
	assert.NoError(t, engine.DeployBundle(context.Background(), bundle.ID))

	produced := engine.SimulateEvents(9)
	assert.NotEmpty(t, produced)
	assert.NotEmpty(t, engine.ListDriftEvents(0))
}

func TestDriftLifecycleThroughEngine(t *testing.T) {
	engine := NewEngine(&countingGateway{}, suffixResolver{})

	drift := engine.Detector().Process(types.ObservedEvent{
		Kind: types.EventKindConnection, SourcePod: "attacker-1", DestinationPod: "backend-1",
		Port: 8080, Protocol: "TCP",
	})
	assert.NotNil(t, drift)

	assert.NoError(t, engine.AcknowledgeEvent(drift.ID))
	assert.NoError(t, engine.ResolveEvent(drift.ID))

	events := engine.ListDriftEvents(0)
	assert.True(t, events[0].Resolved)
}

func TestRiskScoreThroughEngine(t *testing.T) {
	engine := NewEngine(&countingGateway{}, suffixResolver{})

	score := engine.RiskScore()
	assert.Equal(t, 5, len(score.Components))

	breakdown := engine.RiskBreakdown()
	assert.NotEmpty(t, breakdown.History)
}
