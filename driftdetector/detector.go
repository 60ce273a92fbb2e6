package driftdetector

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nithish-ponnusamy/new-k8s/config"
	"github.com/Nithish-ponnusamy/new-k8s/intentgraph"
	"github.com/Nithish-ponnusamy/new-k8s/libs"
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

const defaultQueueSize = 1024

// Resolver maps a pod name to the service identity used by the intent
// graph.
type Resolver interface {
	ResolveService(pod string) string
}

type pairKey struct {
	Source string
	Dest   string
}

// Detector classifies observed events against the intent graph and keeps
// the append-only drift history. Ingestion is non-blocking; a single
// worker goroutine drains the queue.
type Detector struct {
	graph    *intentgraph.Graph
	resolver Resolver

	queue    chan types.ObservedEvent
	stopChan chan struct{}
	waitG    sync.WaitGroup
	status   string
	statusMu sync.Mutex

	dropped uint64
	skipped uint64

	mu       sync.Mutex
	events   []types.DriftEvent
	index    map[string]int
	seq      int64
	observed map[pairKey]int
}

func NewDetector(graph *intentgraph.Graph, resolver Resolver) *Detector {
	queueSize := config.GetCfgDrift().QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	return &Detector{
		graph:    graph,
		resolver: resolver,
		queue:    make(chan types.ObservedEvent, queueSize),
		status:   STATUS_IDLE,
		index:    map[string]int{},
		observed: map[pairKey]int{},
	}
}

// ============ //
// == Worker == //
// ============ //

func (dt *Detector) StartWorker() {
	dt.statusMu.Lock()
	defer dt.statusMu.Unlock()

	if dt.status != STATUS_IDLE {
		log.Info().Msg("There is no idle drift detection worker")
		return
	}

	dt.status = STATUS_RUNNING
	dt.stopChan = make(chan struct{})

	dt.waitG.Add(1)
	go dt.run()

	log.Info().Msg("Drift detection worker started")
}

func (dt *Detector) StopWorker() {
	dt.statusMu.Lock()
	defer dt.statusMu.Unlock()

	if dt.status != STATUS_RUNNING {
		log.Info().Msg("There is no running drift detection worker")
		return
	}

	close(dt.stopChan)
	dt.waitG.Wait()

	dt.status = STATUS_IDLE

	log.Info().Msg("Drift detection worker stopped")
}

func (dt *Detector) run() {
	defer dt.waitG.Done()

	for {
		select {
		case <-dt.stopChan:
			return
		case event := <-dt.queue:
			dt.Process(event)
		}
	}
}

// =============== //
// == Ingestion == //
// =============== //

// Ingest enqueues one observed event without blocking. When the queue is
// full the event is dropped and counted.
func (dt *Detector) Ingest(event types.ObservedEvent) error {
	select {
	case dt.queue <- event:
		observability.RecordObservedEvent()
		return nil
	default:
		atomic.AddUint64(&dt.dropped, 1)
		observability.RecordDroppedEvent()
		return types.ErrQueueSaturated
	}
}

func (dt *Detector) DroppedCount() uint64 {
	return atomic.LoadUint64(&dt.dropped)
}

func (dt *Detector) SkippedCount() uint64 {
	return atomic.LoadUint64(&dt.skipped)
}

// ==================== //
// == Classification == //
// ==================== //

// Classify maps one observed event to a drift event, or nil when the
// event conforms to the deployed intents.
func (dt *Detector) Classify(event types.ObservedEvent) *types.DriftEvent {
	switch event.Kind {
	case types.EventKindConnection:
		return dt.classifyConnection(event)
	case types.EventKindSyscall:
		return classifySyscall(event)
	}

	return nil
}

func (dt *Detector) classifyConnection(event types.ObservedEvent) *types.DriftEvent {
	source := dt.resolver.ResolveService(event.SourcePod)
	dest := dt.resolver.ResolveService(event.DestinationPod)

	// events without a resolvable service identity cannot be classified
	if source == "" || dest == "" {
		atomic.AddUint64(&dt.skipped, 1)
		observability.RecordSkippedEvent()

		log.Debug().Msgf("skipping event between %s and %s: unresolved service identity",
			event.SourcePod, event.DestinationPod)

		return nil
	}

	dt.mu.Lock()
	dt.observed[pairKey{Source: source, Dest: dest}]++
	dt.mu.Unlock()

	switch dt.graph.Lookup(source, dest, event.Port, event.Protocol) {
	case intentgraph.VerdictAuthorized:
		return nil

	case intentgraph.VerdictPortMismatch:
		return &types.DriftEvent{
			Timestamp:      eventTime(event),
			EventType:      types.DriftUnauthorizedConnection,
			SourcePod:      event.SourcePod,
			DestinationPod: event.DestinationPod,
			Severity:       types.SeverityHigh,
			Action:         types.ActionBlocked,
			Details: fmt.Sprintf("port %d/%s is not authorized between %s and %s",
				event.Port, event.Protocol, source, dest),
		}

	default:
		return &types.DriftEvent{
			Timestamp:      eventTime(event),
			EventType:      types.DriftUnauthorizedConnection,
			SourcePod:      event.SourcePod,
			DestinationPod: event.DestinationPod,
			Severity:       types.SeverityCritical,
			Action:         types.ActionAllowed,
			Details: fmt.Sprintf("no authorization exists between %s and %s",
				source, dest),
		}
	}
}

func eventTime(event types.ObservedEvent) time.Time {
	if event.Time.IsZero() {
		return time.Now().UTC()
	}

	return event.Time.UTC()
}

// Process classifies one event and records the resulting drift, if any.
func (dt *Detector) Process(event types.ObservedEvent) *types.DriftEvent {
	drift := dt.Classify(event)
	if drift == nil {
		return nil
	}

	dt.record(drift)

	return drift
}

func (dt *Detector) record(drift *types.DriftEvent) {
	dt.mu.Lock()

	dt.seq++
	drift.ID = "drift-" + drift.Timestamp.Format(libs.TimeFormID) + "-" + strconv.FormatInt(dt.seq, 10)

	dt.events = append(dt.events, *drift)
	dt.index[drift.ID] = len(dt.events) - 1

	dt.mu.Unlock()

	observability.RecordDriftEvent(drift.Severity)

	if err := libs.InsertDriftEvent(config.GetCfgDB(), *drift); err != nil {
		log.Error().Msg(err.Error())
	}

	log.Warn().Msgf("drift detected [%s/%s]: %s", drift.EventType, drift.Severity, drift.Details)
}

// ============= //
// == History == //
// ============= //

// Events returns the drift history newest first, capped at limit when
// limit is positive.
func (dt *Detector) Events(limit int) []types.DriftEvent {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	results := []types.DriftEvent{}
	for i := len(dt.events) - 1; i >= 0; i-- {
		if limit > 0 && len(results) >= limit {
			break
		}
		results = append(results, dt.events[i])
	}

	return results
}

// EventsSince returns drift events recorded at or after the given time,
// oldest first.
func (dt *Detector) EventsSince(since time.Time) []types.DriftEvent {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	results := []types.DriftEvent{}
	for _, event := range dt.events {
		if !event.Timestamp.Before(since) {
			results = append(results, event)
		}
	}

	return results
}

func (dt *Detector) GetEvent(eventID string) (types.DriftEvent, error) {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	idx, ok := dt.index[eventID]
	if !ok {
		return types.DriftEvent{}, fmt.Errorf("%w: drift event %s", types.ErrNotFound, eventID)
	}

	return dt.events[idx], nil
}

// Acknowledge marks an event as seen. Acknowledgement never unsets.
func (dt *Detector) Acknowledge(eventID string) error {
	return dt.updateState(eventID, true, false)
}

// Resolve marks an event as resolved, which implies acknowledgement.
// Resolving an already resolved event is a no-op.
func (dt *Detector) Resolve(eventID string) error {
	return dt.updateState(eventID, true, true)
}

func (dt *Detector) updateState(eventID string, acknowledged, resolved bool) error {
	dt.mu.Lock()

	idx, ok := dt.index[eventID]
	if !ok {
		dt.mu.Unlock()
		return fmt.Errorf("%w: drift event %s", types.ErrNotFound, eventID)
	}

	if acknowledged {
		dt.events[idx].Acknowledged = true
	}
	if resolved {
		dt.events[idx].Resolved = true
	}

	event := dt.events[idx]

	dt.mu.Unlock()

	if err := libs.UpdateDriftEventState(config.GetCfgDB(), eventID,
		event.Acknowledged, event.Resolved); err != nil {
		log.Error().Msg(err.Error())
	}

	return nil
}

// UnresolvedBySeverity counts unresolved drift events per severity.
func (dt *Detector) UnresolvedBySeverity() map[string]int {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	counts := map[string]int{}
	for _, event := range dt.events {
		if !event.Resolved {
			counts[event.Severity]++
		}
	}

	return counts
}

// ObservedPairs returns every service pair seen on the connection feed
// with its occurrence count, most frequent first.
func (dt *Detector) ObservedPairs() []types.PairCount {
	dt.mu.Lock()
	defer dt.mu.Unlock()

	pairs := []types.PairCount{}
	for key, count := range dt.observed {
		pairs = append(pairs, types.PairCount{
			SourcePod:      key.Source,
			DestinationPod: key.Dest,
			EventType:      types.EventKindConnection,
			Count:          count,
		})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Count != pairs[j].Count {
			return pairs[i].Count > pairs[j].Count
		}
		if pairs[i].SourcePod != pairs[j].SourcePod {
			return pairs[i].SourcePod < pairs[j].SourcePod
		}
		return pairs[i].DestinationPod < pairs[j].DestinationPod
	})

	return pairs
}
