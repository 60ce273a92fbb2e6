package intentgraph

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	logger "github.com/Nithish-ponnusamy/new-k8s/logging"
	"github.com/Nithish-ponnusamy/new-k8s/types"
)

var log *zerolog.Logger

func init() {
	log = logger.GetInstance()
}

// Verdict of one lookup against the authorized communication graph.
const (
	VerdictAuthorized   = "authorized"
	VerdictPortMismatch = "port_mismatch"
	VerdictUnknownPair  = "unknown_pair"
)

type edgeKey struct {
	Source string
	Dest   string
}

type portKey struct {
	Port     int
	Protocol string
}

type snapshot struct {
	// authorized ports per service pair, port 0 admitting all ports of
	// the protocol
	edges map[edgeKey]map[portKey]string

	bundleCount int
	builtAt     time.Time
}

func emptySnapshot() *snapshot {
	return &snapshot{
		edges:   map[edgeKey]map[portKey]string{},
		builtAt: time.Now().UTC(),
	}
}

// Graph is the in-memory authorized communication graph. Readers load an
// immutable snapshot pointer; Rebuild swaps in a freshly built snapshot,
// so lookups never block and never observe a half-built graph.
type Graph struct {
	current atomic.Pointer[snapshot]
}

func NewGraph() *Graph {
	graph := &Graph{}
	graph.current.Store(emptySnapshot())

	return graph
}

// ============= //
// == Rebuild == //
// ============= //

// Rebuild replaces the graph with the edges of the deployed bundles.
// Bundles not yet deployed contribute nothing.
func (g *Graph) Rebuild(bundles []types.PolicyBundle) {
	next := emptySnapshot()

	for _, bundle := range bundles {
		if !bundle.Deployed {
			continue
		}

		next.bundleCount++

		for _, rule := range bundle.Intent.Rules {
			key := edgeKey{Source: rule.FromService, Dest: rule.ToService}
			if next.edges[key] == nil {
				next.edges[key] = map[portKey]string{}
			}

			protocols := rule.Protocols
			if len(protocols) == 0 {
				protocols = []string{types.ProtocolTCP}
			}

			for _, protocol := range protocols {
				proto := strings.ToUpper(protocol)

				if len(rule.Ports) == 0 {
					next.edges[key][portKey{Port: 0, Protocol: proto}] = bundle.ID
					continue
				}

				for _, port := range rule.Ports {
					next.edges[key][portKey{Port: port, Protocol: proto}] = bundle.ID
				}
			}
		}
	}

	g.current.Store(next)

	log.Debug().Msgf("intent graph rebuilt: %d bundles, %d edges",
		next.bundleCount, len(next.edges))
}

// ============ //
// == Lookup == //
// ============ //

// Lookup classifies one observed service-to-service connection. An empty
// protocol defaults to TCP.
func (g *Graph) Lookup(source, dest string, port int, protocol string) string {
	snap := g.current.Load()

	ports, ok := snap.edges[edgeKey{Source: source, Dest: dest}]
	if !ok {
		return VerdictUnknownPair
	}

	proto := strings.ToUpper(protocol)
	if proto == "" {
		proto = types.ProtocolTCP
	}

	if _, ok := ports[portKey{Port: port, Protocol: proto}]; ok {
		return VerdictAuthorized
	}

	if _, ok := ports[portKey{Port: 0, Protocol: proto}]; ok {
		return VerdictAuthorized
	}

	return VerdictPortMismatch
}

// HasPair reports whether any authorization exists between the pair,
// regardless of port.
func (g *Graph) HasPair(source, dest string) bool {
	snap := g.current.Load()

	_, ok := snap.edges[edgeKey{Source: source, Dest: dest}]

	return ok
}

// =========== //
// == Stats == //
// =========== //

func (g *Graph) EdgeCount() int {
	return len(g.current.Load().edges)
}

func (g *Graph) BundleCount() int {
	return g.current.Load().bundleCount
}

func (g *Graph) BuiltAt() time.Time {
	return g.current.Load().builtAt
}
