package intentgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Nithish-ponnusamy/new-k8s/types"
)

func deployedBundle(id string, rules ...types.Rule) types.PolicyBundle {
	return types.PolicyBundle{
		ID:       id,
		Intent:   types.Intent{Name: id, Rules: rules},
		Deployed: true,
	}
}

func TestLookupAuthorized(t *testing.T) {
	graph := NewGraph()
	graph.Rebuild([]types.PolicyBundle{
		deployedBundle("b1", types.Rule{FromService: "frontend", ToService: "backend", Ports: []int{8080}}),
	})

	assert.Equal(t, VerdictAuthorized, graph.Lookup("frontend", "backend", 8080, "TCP"))
	assert.Equal(t, VerdictAuthorized, graph.Lookup("frontend", "backend", 8080, "tcp"))
	assert.Equal(t, VerdictAuthorized, graph.Lookup("frontend", "backend", 8080, ""))
}

func TestLookupPortMismatch(t *testing.T) {
	graph := NewGraph()
	graph.Rebuild([]types.PolicyBundle{
		deployedBundle("b1", types.Rule{FromService: "frontend", ToService: "backend", Ports: []int{8080}}),
	})

	assert.Equal(t, VerdictPortMismatch, graph.Lookup("frontend", "backend", 9090, "TCP"))
	assert.Equal(t, VerdictPortMismatch, graph.Lookup("frontend", "backend", 8080, "UDP"))
}

func TestLookupUnknownPair(t *testing.T) {
	graph := NewGraph()
	graph.Rebuild([]types.PolicyBundle{
		deployedBundle("b1", types.Rule{FromService: "frontend", ToService: "backend", Ports: []int{8080}}),
	})

	assert.Equal(t, VerdictUnknownPair, graph.Lookup("backend", "frontend", 8080, "TCP"))
	assert.Equal(t, VerdictUnknownPair, graph.Lookup("attacker", "backend", 8080, "TCP"))
}

func TestLookupWildcardPort(t *testing.T) {
	graph := NewGraph()
	graph.Rebuild([]types.PolicyBundle{
		deployedBundle("b1", types.Rule{FromService: "frontend", ToService: "backend"}),
	})

	assert.Equal(t, VerdictAuthorized, graph.Lookup("frontend", "backend", 1234, "TCP"))
	assert.Equal(t, VerdictPortMismatch, graph.Lookup("frontend", "backend", 1234, "UDP"))
}

func TestRebuildSkipsUndeployed(t *testing.T) {
	graph := NewGraph()

	bundle := deployedBundle("b1", types.Rule{FromService: "frontend", ToService: "backend", Ports: []int{8080}})
	bundle.Deployed = false

	graph.Rebuild([]types.PolicyBundle{bundle})

	assert.Equal(t, 0, graph.EdgeCount())
	assert.Equal(t, 0, graph.BundleCount())
	assert.Equal(t, VerdictUnknownPair, graph.Lookup("frontend", "backend", 8080, "TCP"))
}

func TestRebuildReplacesEdges(t *testing.T) {
	graph := NewGraph()
	graph.Rebuild([]types.PolicyBundle{
		deployedBundle("b1", types.Rule{FromService: "frontend", ToService: "backend", Ports: []int{8080}}),
	})
	assert.True(t, graph.HasPair("frontend", "backend"))

	graph.Rebuild([]types.PolicyBundle{
		deployedBundle("b2", types.Rule{FromService: "backend", ToService: "db", Ports: []int{5432}}),
	})

	assert.False(t, graph.HasPair("frontend", "backend"))
	assert.True(t, graph.HasPair("backend", "db"))
	assert.Equal(t, 1, graph.EdgeCount())
}
