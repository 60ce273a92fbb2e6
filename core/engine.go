package core

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nithish-ponnusamy/new-k8s/cluster"
	"github.com/Nithish-ponnusamy/new-k8s/config"
	"github.com/Nithish-ponnusamy/new-k8s/driftdetector"
	"github.com/Nithish-ponnusamy/new-k8s/intentgraph"
	"github.com/Nithish-ponnusamy/new-k8s/libs"
	logger "github.com/Nithish-ponnusamy/new-k8s/logging"
	"github.com/Nithish-ponnusamy/new-k8s/networkpolicy"
	"github.com/Nithish-ponnusamy/new-k8s/observability"
	"github.com/Nithish-ponnusamy/new-k8s/riskscorer"
	"github.com/Nithish-ponnusamy/new-k8s/types"
)

var log *zerolog.Logger

func init() {
	log = logger.GetInstance()
}

// Engine wires the compiler, the intent graph, the drift detector and
// the risk scorer together behind one API.
type Engine struct {
	graph    *intentgraph.Graph
	detector *driftdetector.Detector
	scorer   *riskscorer.Scorer
	gateway  cluster.EnforcementGateway

	mu        sync.Mutex
	bundles   map[string]*types.PolicyBundle
	order     []string
	deploying map[string]bool
}

func NewEngine(gateway cluster.EnforcementGateway, resolver driftdetector.Resolver) *Engine {
	engine := &Engine{
		gateway:   gateway,
		bundles:   map[string]*types.PolicyBundle{},
		deploying: map[string]bool{},
	}

	engine.graph = intentgraph.NewGraph()
	engine.detector = driftdetector.NewDetector(engine.graph, resolver)
	engine.scorer = riskscorer.NewScorer(engine.detector, engine.graph, engine)

	return engine
}

func (e *Engine) Detector() *driftdetector.Detector {
	return e.detector
}

// SetNamespaceLister hands the scorer a cluster namespace view for its
// compliance checks.
func (e *Engine) SetNamespaceLister(lister riskscorer.NamespaceLister) {
	e.scorer.SetNamespaceLister(lister)
}

// LoadBundles restores previously compiled bundles from the database
// and rebuilds the intent graph from the deployed ones.
func (e *Engine) LoadBundles() {
	bundles := libs.GetPolicyBundles(config.GetCfgDB(), "")

	e.mu.Lock()
	for i := range bundles {
		bundle := bundles[i]
		if _, ok := e.bundles[bundle.ID]; ok {
			continue
		}
		e.bundles[bundle.ID] = &bundle
		e.order = append(e.order, bundle.ID)
	}
	e.mu.Unlock()

	e.rebuildGraph()

	log.Info().Msgf("restored %d policy bundles", len(bundles))
}

// ============= //
// == Bundles == //
// ============= //

// Generate compiles an intent request into a new policy bundle. The
// bundle is stored undeployed.
func (e *Engine) Generate(request types.IntentRequest) (types.PolicyBundle, error) {
	if request.Name == "" {
		return types.PolicyBundle{}, fmt.Errorf("%w: intent name is required", types.ErrInvalidIntent)
	}

	intent := types.Intent{
		Name:      request.Name,
		Namespace: request.Namespace,
		Rules:     request.Rules,
	}

	bundle, err := networkpolicy.CompileIntent(intent)
	if err != nil {
		return types.PolicyBundle{}, err
	}

	e.mu.Lock()
	e.bundles[bundle.ID] = &bundle
	e.order = append(e.order, bundle.ID)
	e.mu.Unlock()

	if err := libs.InsertPolicyBundle(config.GetCfgDB(), bundle); err != nil {
		log.Error().Msg(err.Error())
	}

	return bundle, nil
}

// ListBundles returns the bundles in creation order.
func (e *Engine) ListBundles() []types.PolicyBundle {
	e.mu.Lock()
	defer e.mu.Unlock()

	results := []types.PolicyBundle{}
	for _, id := range e.order {
		results = append(results, *e.bundles[id])
	}

	return results
}

func (e *Engine) GetBundle(bundleID string) (types.PolicyBundle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	bundle, ok := e.bundles[bundleID]
	if !ok {
		return types.PolicyBundle{}, fmt.Errorf("%w: bundle %s", types.ErrNotFound, bundleID)
	}

	// callers get a detached copy, never the stored bundle
	result := types.PolicyBundle{}
	libs.DeepCopy(&result, bundle)

	return result, nil
}

// DeployBundle pushes a bundle's rules to the enforcement gateway. A
// bundle deploys at most once; deploying a deployed bundle is a no-op.
func (e *Engine) DeployBundle(ctx context.Context, bundleID string) error {
	e.mu.Lock()
	bundle, ok := e.bundles[bundleID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: bundle %s", types.ErrNotFound, bundleID)
	}

	// at most one gateway push per bundle, even under concurrent calls
	if bundle.Deployed || e.deploying[bundleID] {
		e.mu.Unlock()
		return nil
	}
	e.deploying[bundleID] = true

	rules := bundle.Rules
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.deploying, bundleID)
		e.mu.Unlock()
	}()

	if err := cluster.ApplyWithRetry(ctx, e.gateway, rules); err != nil {
		return err
	}

	e.mu.Lock()
	bundle.Deployed = true
	e.mu.Unlock()

	if err := libs.UpdatePolicyBundleDeployed(config.GetCfgDB(), bundleID, true); err != nil {
		log.Error().Msg(err.Error())
	}

	observability.RecordBundleDeployed()

	e.rebuildGraph()

	log.Info().Msgf("bundle %s deployed", bundleID)

	return nil
}

// DeleteBundle withdraws a deployed bundle's rules from the gateway and
// forgets the bundle.
func (e *Engine) DeleteBundle(ctx context.Context, bundleID string) error {
	e.mu.Lock()
	bundle, ok := e.bundles[bundleID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: bundle %s", types.ErrNotFound, bundleID)
	}

	deployed := bundle.Deployed
	rules := bundle.Rules
	e.mu.Unlock()

	if deployed {
		if err := cluster.DeleteWithTimeout(ctx, e.gateway, rules); err != nil {
			return err
		}
	}

	e.mu.Lock()
	delete(e.bundles, bundleID)
	for i, id := range e.order {
		if id == bundleID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	e.mu.Unlock()

	if err := libs.DeletePolicyBundle(config.GetCfgDB(), bundleID); err != nil {
		log.Error().Msg(err.Error())
	}

	e.rebuildGraph()

	return nil
}

func (e *Engine) rebuildGraph() {
	e.graph.Rebuild(e.ListBundles())
}

// ============ //
// == Export == //
// ============ //

func (e *Engine) ExportYAML(bundleID string) (string, error) {
	bundle, err := e.GetBundle(bundleID)
	if err != nil {
		return "", err
	}

	return networkpolicy.ToYAML(bundle.Rules)
}

func (e *Engine) ExportJSON(bundleID string) (string, error) {
	bundle, err := e.GetBundle(bundleID)
	if err != nil {
		return "", err
	}

	return networkpolicy.ToJSON(bundle.Rules)
}

// =========== //
// == Drift == //
// =========== //

func (e *Engine) IngestEvent(event types.ObservedEvent) error {
	return e.detector.Ingest(event)
}

func (e *Engine) ListDriftEvents(limit int) []types.DriftEvent {
	return e.detector.Events(limit)
}

func (e *Engine) AcknowledgeEvent(eventID string) error {
	return e.detector.Acknowledge(eventID)
}

func (e *Engine) ResolveEvent(eventID string) error {
	return e.detector.Resolve(eventID)
}

func (e *Engine) Analyze(window time.Duration) types.AnalysisReport {
	return e.detector.Analyze(window)
}

// SimulateEvents feeds synthetic observed events through the detector:
// authorized traffic, unauthorized traffic and suspicious syscalls in a
// fixed rotation. Returns the drift events produced.
func (e *Engine) SimulateEvents(count int) []types.DriftEvent {
	now := time.Now().UTC()

	authorized := [][2]string{}
	for _, bundle := range e.ListBundles() {
		if !bundle.Deployed {
			continue
		}
		for _, rule := range bundle.Intent.Rules {
			authorized = append(authorized, [2]string{rule.FromService, rule.ToService})
		}
	}

	syscalls := []string{"setuid", "bpf", "openat"}

	produced := []types.DriftEvent{}

	for i := 0; i < count; i++ {
		var event types.ObservedEvent

		switch i % 3 {
		case 0:
			if len(authorized) > 0 {
				pair := authorized[i%len(authorized)]
				event = types.ObservedEvent{
					Time: now, Kind: types.EventKindConnection,
					SourcePod:      pair[0] + "-1",
					DestinationPod: pair[1] + "-1",
					Port:           8080, Protocol: types.ProtocolTCP,
				}
				break
			}
			fallthrough
		case 1:
			event = types.ObservedEvent{
				Time: now, Kind: types.EventKindConnection,
				SourcePod:      "sim-" + strconv.Itoa(i),
				DestinationPod: "backend-1",
				Port:           8080, Protocol: types.ProtocolTCP,
			}
		case 2:
			event = types.ObservedEvent{
				Time: now, Kind: types.EventKindSyscall,
				SourcePod: "backend-1",
				Syscall:   syscalls[i%len(syscalls)],
				Path:      "/tmp/sim",
			}
		}

		if drift := e.detector.Process(event); drift != nil {
			produced = append(produced, *drift)
		}
	}

	return produced
}

// ========== //
// == Risk == //
// ========== //

func (e *Engine) RiskScore() types.RiskScore {
	return e.scorer.Compute()
}

func (e *Engine) RiskBreakdown() types.RiskBreakdown {
	return e.scorer.Breakdown()
}

// ============= //
// == Workers == //
// ============= //

func (e *Engine) StartWorkers() {
	e.detector.StartWorker()
	e.scorer.StartWorker()
}

func (e *Engine) StopWorkers() {
	e.detector.StopWorker()
	e.scorer.StopWorker()
}
