package driftdetector

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Nithish-ponnusamy/new-k8s/config"
	"github.com/Nithish-ponnusamy/new-k8s/intentgraph"
	"github.com/Nithish-ponnusamy/new-k8s/types"
)

// strips the replica suffix: frontend-1 -> frontend
type suffixResolver struct{}

func (suffixResolver) ResolveService(pod string) string {
	if idx := strings.LastIndex(pod, "-"); idx > 0 {
		return pod[:idx]
	}

	return pod
}

func testDetector() *Detector {
	graph := intentgraph.NewGraph()
	graph.Rebuild([]types.PolicyBundle{
		{
			ID: "b1",
			Intent: types.Intent{
				Name: "frontend-to-backend",
				Rules: []types.Rule{
					{FromService: "frontend", ToService: "backend", Ports: []int{8080}},
				},
			},
			Deployed: true,
		},
	})

	return NewDetector(graph, suffixResolver{})
}

func connectionEvent(source, dest string, port int) types.ObservedEvent {
	return types.ObservedEvent{
		Time:           time.Now().UTC(),
		Kind:           types.EventKindConnection,
		SourcePod:      source,
		DestinationPod: dest,
		Port:           port,
		Protocol:       "TCP",
	}
}

type emptyResolver struct{}

func (emptyResolver) ResolveService(pod string) string {
	return ""
}

// ==================== //
// == Classification == //
// ==================== //

func TestUnresolvableEventSkipped(t *testing.T) {
	dt := NewDetector(intentgraph.NewGraph(), emptyResolver{})

	drift := dt.Process(connectionEvent("ghost-1", "backend-1", 8080))
	assert.Nil(t, drift)
	assert.Equal(t, uint64(1), dt.SkippedCount())
	assert.Empty(t, dt.ObservedPairs())
}

func TestClassifyAuthorizedConnection(t *testing.T) {
	dt := testDetector()

	drift := dt.Classify(connectionEvent("frontend-1", "backend-1", 8080))
	assert.Nil(t, drift)
}

func TestClassifyPortMismatch(t *testing.T) {
	dt := testDetector()

	drift := dt.Classify(connectionEvent("frontend-1", "backend-1", 9090))
	assert.NotNil(t, drift)
	assert.Equal(t, types.DriftUnauthorizedConnection, drift.EventType)
	assert.Equal(t, types.SeverityHigh, drift.Severity)
	assert.Equal(t, types.ActionBlocked, drift.Action)
}

func TestClassifyUnknownPair(t *testing.T) {
	dt := testDetector()

	drift := dt.Classify(connectionEvent("attacker-1", "backend-1", 8080))
	assert.NotNil(t, drift)
	assert.Equal(t, types.DriftUnauthorizedConnection, drift.EventType)
	assert.Equal(t, types.SeverityCritical, drift.Severity)
	assert.Equal(t, types.ActionAllowed, drift.Action)
}

func TestClassifySyscalls(t *testing.T) {
	dt := testDetector()

	testCases := []struct {
		name      string
		event     types.ObservedEvent
		eventType string
		severity  string
	}{
		{
			name:      "privilege escalation",
			event:     types.ObservedEvent{Kind: types.EventKindSyscall, SourcePod: "backend-1", Syscall: "setuid"},
			eventType: types.DriftPrivilegeEscalation,
			severity:  types.SeverityCritical,
		},
		{
			name:      "suspicious syscall",
			event:     types.ObservedEvent{Kind: types.EventKindSyscall, SourcePod: "backend-1", Syscall: "bpf"},
			eventType: types.DriftSuspiciousSyscall,
			severity:  types.SeverityHigh,
		},
		{
			name:      "sensitive file",
			event:     types.ObservedEvent{Kind: types.EventKindSyscall, SourcePod: "backend-1", Syscall: "openat", Path: "/etc/shadow"},
			eventType: types.DriftFileAccess,
			severity:  types.SeverityMedium,
		},
		{
			name:      "config path",
			event:     types.ObservedEvent{Kind: types.EventKindSyscall, SourcePod: "backend-1", Syscall: "openat", Path: "/etc/kubernetes/manifests/etcd.yaml"},
			eventType: types.DriftConfigChange,
			severity:  types.SeverityHigh,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			drift := dt.Classify(tc.event)
			assert.NotNil(t, drift)
			assert.Equal(t, tc.eventType, drift.EventType)
			assert.Equal(t, tc.severity, drift.Severity)
			assert.Equal(t, types.ActionFlagged, drift.Action)
		})
	}
}

func TestClassifyBenignSyscall(t *testing.T) {
	dt := testDetector()

	drift := dt.Classify(types.ObservedEvent{
		Kind: types.EventKindSyscall, SourcePod: "backend-1", Syscall: "openat", Path: "/tmp/scratch",
	})
	assert.Nil(t, drift)
}

// ============= //
// == History == //
// ============= //

func TestProcessRecordsDrift(t *testing.T) {
	dt := testDetector()

	drift := dt.Process(connectionEvent("attacker-1", "backend-1", 8080))
	assert.NotNil(t, drift)
	assert.True(t, strings.HasPrefix(drift.ID, "drift-"))

	events := dt.Events(0)
	assert.Equal(t, 1, len(events))
	assert.Equal(t, drift.ID, events[0].ID)
	assert.False(t, events[0].Acknowledged)
	assert.False(t, events[0].Resolved)
}

func TestEventsNewestFirst(t *testing.T) {
	dt := testDetector()

	for i := 0; i < 5; i++ {
		dt.Process(connectionEvent("attacker-1", "backend-1", 8080))
	}

	events := dt.Events(3)
	assert.Equal(t, 3, len(events))

	all := dt.Events(0)
	assert.Equal(t, 5, len(all))
	assert.Equal(t, all[0].ID, events[0].ID)
}

func TestAcknowledgeAndResolve(t *testing.T) {
	dt := testDetector()

	drift := dt.Process(connectionEvent("attacker-1", "backend-1", 8080))

	assert.NoError(t, dt.Acknowledge(drift.ID))

	event, err := dt.GetEvent(drift.ID)
	assert.NoError(t, err)
	assert.True(t, event.Acknowledged)
	assert.False(t, event.Resolved)

	assert.NoError(t, dt.Resolve(drift.ID))

	event, _ = dt.GetEvent(drift.ID)
	assert.True(t, event.Acknowledged)
	assert.True(t, event.Resolved)

	// resolving again changes nothing
	assert.NoError(t, dt.Resolve(drift.ID))

	event, _ = dt.GetEvent(drift.ID)
	assert.True(t, event.Resolved)
}

func TestResolveImpliesAcknowledge(t *testing.T) {
	dt := testDetector()

	drift := dt.Process(connectionEvent("attacker-1", "backend-1", 8080))

	assert.NoError(t, dt.Resolve(drift.ID))

	event, _ := dt.GetEvent(drift.ID)
	assert.True(t, event.Acknowledged)
}

func TestStateChangeUnknownEvent(t *testing.T) {
	dt := testDetector()

	assert.True(t, errors.Is(dt.Acknowledge("drift-missing"), types.ErrNotFound))
	assert.True(t, errors.Is(dt.Resolve("drift-missing"), types.ErrNotFound))
}

func TestUnresolvedBySeverity(t *testing.T) {
	dt := testDetector()

	for i := 0; i < 20; i++ {
		dt.Process(connectionEvent("attacker-1", "backend-1", 8080))
	}
	mismatch := dt.Process(connectionEvent("frontend-1", "backend-1", 9090))

	counts := dt.UnresolvedBySeverity()
	assert.Equal(t, 20, counts[types.SeverityCritical])
	assert.Equal(t, 1, counts[types.SeverityHigh])

	assert.NoError(t, dt.Resolve(mismatch.ID))

	counts = dt.UnresolvedBySeverity()
	assert.Equal(t, 0, counts[types.SeverityHigh])
}

func TestObservedPairs(t *testing.T) {
	dt := testDetector()

	dt.Process(connectionEvent("frontend-1", "backend-1", 8080))
	dt.Process(connectionEvent("frontend-1", "backend-1", 8080))
	dt.Process(connectionEvent("attacker-1", "backend-1", 8080))

	pairs := dt.ObservedPairs()
	assert.Equal(t, 2, len(pairs))
	assert.Equal(t, "frontend", pairs[0].SourcePod)
	assert.Equal(t, 2, pairs[0].Count)
}

// =========== //
// == Queue == //
// =========== //

func TestQueueSaturation(t *testing.T) {
	config.CurrentCfg.ConfigDrift.QueueSize = 2
	defer func() {
		config.CurrentCfg.ConfigDrift.QueueSize = 0
	}()

	dt := testDetector()

	assert.NoError(t, dt.Ingest(connectionEvent("frontend-1", "backend-1", 8080)))
	assert.NoError(t, dt.Ingest(connectionEvent("frontend-1", "backend-1", 8080)))

	err := dt.Ingest(connectionEvent("frontend-1", "backend-1", 8080))
	assert.True(t, errors.Is(err, types.ErrQueueSaturated))
	assert.Equal(t, uint64(1), dt.DroppedCount())
}

func TestWorkerLifecycle(t *testing.T) {
	dt := testDetector()

	dt.StartWorker()

	assert.NoError(t, dt.Ingest(connectionEvent("attacker-1", "backend-1", 8080)))

	assert.Eventually(t, func() bool {
		return len(dt.Events(0)) == 1
	}, time.Second, 10*time.Millisecond)

	dt.StopWorker()

	// a second stop is a no-op
	dt.StopWorker()
}
