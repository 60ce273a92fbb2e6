package networkpolicy

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	networkingv1 "k8s.io/api/networking/v1"

	"github.com/Nithish-ponnusamy/new-k8s/types"
)

func compileTestBundle(t *testing.T) types.PolicyBundle {
	t.Helper()

	bundle, err := CompileIntent(types.Intent{
		Name:      "frontend-to-backend",
		Namespace: "default",
		Rules: []types.Rule{
			{FromService: "frontend", ToService: "backend", Ports: []int{8080}},
		},
	})
	assert.NoError(t, err)

	return bundle
}

func TestToK8sDefaultDeny(t *testing.T) {
	bundle := compileTestBundle(t)

	policy := ToK8sNetworkPolicy(bundle.Rules[0])
	assert.Equal(t, "NetworkPolicy", policy.Kind)
	assert.Equal(t, "default-backend-default-deny", policy.Name)
	assert.Equal(t, "backend", policy.Spec.PodSelector.MatchLabels[ServiceLabelKey])
	assert.ElementsMatch(t, []networkingv1.PolicyType{
		networkingv1.PolicyTypeIngress,
		networkingv1.PolicyTypeEgress,
	}, policy.Spec.PolicyTypes)
	assert.Empty(t, policy.Spec.Ingress)
	assert.Empty(t, policy.Spec.Egress)
}

func TestToK8sIngress(t *testing.T) {
	bundle := compileTestBundle(t)

	policy := ToK8sNetworkPolicy(bundle.Rules[1])
	assert.Equal(t, []networkingv1.PolicyType{networkingv1.PolicyTypeIngress}, policy.Spec.PolicyTypes)
	assert.Equal(t, 1, len(policy.Spec.Ingress))

	ingress := policy.Spec.Ingress[0]
	assert.Equal(t, 1, len(ingress.From))
	assert.Equal(t, "frontend", ingress.From[0].PodSelector.MatchLabels[ServiceLabelKey])
	assert.Equal(t, 1, len(ingress.Ports))
	assert.Equal(t, 8080, ingress.Ports[0].Port.IntValue())
}

func TestToK8sDNSEgress(t *testing.T) {
	bundle := compileTestBundle(t)

	policy := ToK8sNetworkPolicy(bundle.Rules[3])
	assert.Equal(t, []networkingv1.PolicyType{networkingv1.PolicyTypeEgress}, policy.Spec.PolicyTypes)
	assert.Equal(t, 1, len(policy.Spec.Egress))

	egress := policy.Spec.Egress[0]
	assert.NotNil(t, egress.To[0].NamespaceSelector)
	assert.Equal(t, 2, len(egress.Ports))
	assert.Equal(t, 53, egress.Ports[0].Port.IntValue())
}

func TestToYAML(t *testing.T) {
	bundle := compileTestBundle(t)

	manifest, err := ToYAML(bundle.Rules)
	assert.NoError(t, err)

	assert.Equal(t, 3, strings.Count(manifest, "---\n"))
	assert.Contains(t, manifest, "kind: NetworkPolicy")
	assert.Contains(t, manifest, "name: default-backend-ingress")
	assert.Contains(t, manifest, "policy-type: default-deny")
}

func TestToJSON(t *testing.T) {
	bundle := compileTestBundle(t)

	raw, err := ToJSON(bundle.Rules)
	assert.NoError(t, err)

	policies := []networkingv1.NetworkPolicy{}
	assert.NoError(t, json.Unmarshal([]byte(raw), &policies))
	assert.Equal(t, 4, len(policies))
	assert.Equal(t, "default-backend-default-deny", policies[0].Name)
}
