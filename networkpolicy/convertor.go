package networkpolicy

import (
	"strings"

	"github.com/clarketm/json"
	v1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"sigs.k8s.io/yaml"

	"github.com/Nithish-ponnusamy/new-k8s/types"
)

// ==================== //
// == K8s Conversion == //
// ==================== //

func convertSpecPorts(ports []types.SpecPort) []networkingv1.NetworkPolicyPort {
	converted := []networkingv1.NetworkPolicyPort{}

	for _, port := range ports {
		proto := v1.Protocol(strings.ToUpper(port.Protocol))

		npPort := networkingv1.NetworkPolicyPort{
			Protocol: &proto,
		}

		if port.Port > 0 {
			portVal := intstr.FromInt(port.Port)
			npPort.Port = &portVal
		}

		converted = append(converted, npPort)
	}

	return converted
}

func convertPeer(peer types.AllowPeer) networkingv1.NetworkPolicyPeer {
	converted := networkingv1.NetworkPolicyPeer{
		PodSelector: &metav1.LabelSelector{
			MatchLabels: peer.PodSelector.MatchLabels,
		},
	}

	if peer.NamespaceSelector != nil {
		converted.NamespaceSelector = &metav1.LabelSelector{
			MatchLabels: peer.NamespaceSelector.MatchLabels,
		}
	}

	return converted
}

// ToK8sNetworkPolicy converts one enforcement rule into a Kubernetes
// NetworkPolicy object.
func ToK8sNetworkPolicy(rule types.EnforcementRule) networkingv1.NetworkPolicy {
	policy := networkingv1.NetworkPolicy{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "networking.k8s.io/v1",
			Kind:       "NetworkPolicy",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      rule.Name,
			Namespace: rule.Namespace,
			Labels:    rule.Labels,
		},
		Spec: networkingv1.NetworkPolicySpec{
			PodSelector: metav1.LabelSelector{
				MatchLabels: rule.TargetSelector.MatchLabels,
			},
		},
	}

	switch rule.Direction {
	case types.DirectionDefaultDeny:
		policy.Spec.PolicyTypes = []networkingv1.PolicyType{
			networkingv1.PolicyTypeIngress,
			networkingv1.PolicyTypeEgress,
		}

	case types.DirectionIngress:
		policy.Spec.PolicyTypes = []networkingv1.PolicyType{networkingv1.PolicyTypeIngress}

		for _, peer := range rule.Peers {
			policy.Spec.Ingress = append(policy.Spec.Ingress, networkingv1.NetworkPolicyIngressRule{
				From:  []networkingv1.NetworkPolicyPeer{convertPeer(peer)},
				Ports: convertSpecPorts(peer.Ports),
			})
		}

	case types.DirectionEgress, types.DirectionDNS:
		policy.Spec.PolicyTypes = []networkingv1.PolicyType{networkingv1.PolicyTypeEgress}

		for _, peer := range rule.Peers {
			policy.Spec.Egress = append(policy.Spec.Egress, networkingv1.NetworkPolicyEgressRule{
				To:    []networkingv1.NetworkPolicyPeer{convertPeer(peer)},
				Ports: convertSpecPorts(peer.Ports),
			})
		}
	}

	return policy
}

// ToK8sNetworkPolicies converts a compiled rule set in order.
func ToK8sNetworkPolicies(rules []types.EnforcementRule) []networkingv1.NetworkPolicy {
	policies := []networkingv1.NetworkPolicy{}

	for _, rule := range rules {
		policies = append(policies, ToK8sNetworkPolicy(rule))
	}

	return policies
}

// ============ //
// == Export == //
// ============ //

// ToYAML renders a compiled rule set as a multi-document YAML manifest,
// one document per enforcement object, in compilation order.
func ToYAML(rules []types.EnforcementRule) (string, error) {
	docs := []string{}

	for _, policy := range ToK8sNetworkPolicies(rules) {
		doc, err := yaml.Marshal(&policy)
		if err != nil {
			return "", err
		}
		docs = append(docs, string(doc))
	}

	return strings.Join(docs, "---\n"), nil
}

// ToJSON renders a compiled rule set as a JSON array of NetworkPolicy
// objects in compilation order.
func ToJSON(rules []types.EnforcementRule) (string, error) {
	raw, err := json.MarshalIndent(ToK8sNetworkPolicies(rules), "", "  ")
	if err != nil {
		return "", err
	}

	return string(raw), nil
}
