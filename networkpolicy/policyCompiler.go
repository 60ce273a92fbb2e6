package networkpolicy

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Nithish-ponnusamy/new-k8s/config"
	"github.com/Nithish-ponnusamy/new-k8s/libs"
	logger "github.com/Nithish-ponnusamy/new-k8s/logging"
	"github.com/Nithish-ponnusamy/new-k8s/types"
)

var log *zerolog.Logger

func init() {
	log = logger.GetInstance()
}

const (
	// pod selector label carrying the service identity
	ServiceLabelKey = "app"

	defaultNamespace = "default"

	dnsPort = 53

	defaultDNSNamespace = "kube-system"
)

var defaultDNSSelector = map[string]string{"k8s-app": "kube-dns"}

var knownProtocols = []string{types.ProtocolTCP, types.ProtocolUDP}

// ================ //
// == Validation == //
// ================ //

func validateIntent(intent types.Intent) error {
	if len(intent.Rules) == 0 {
		return fmt.Errorf("%w: intent %q has no rules", types.ErrInvalidIntent, intent.Name)
	}

	for i, rule := range intent.Rules {
		if strings.TrimSpace(rule.FromService) == "" {
			return fmt.Errorf("%w: rule %d has an empty from service", types.ErrInvalidIntent, i)
		}

		if strings.TrimSpace(rule.ToService) == "" {
			return fmt.Errorf("%w: rule %d has an empty to service", types.ErrInvalidIntent, i)
		}

		for _, port := range rule.Ports {
			if port < 1 || port > 65535 {
				return fmt.Errorf("%w: rule %d port %d out of range", types.ErrInvalidIntent, i, port)
			}
		}

		for _, protocol := range rule.Protocols {
			if !libs.ContainsElement(knownProtocols, strings.ToUpper(protocol)) {
				return fmt.Errorf("%w: rule %d unknown protocol %q", types.ErrInvalidIntent, i, protocol)
			}
		}
	}

	return nil
}

// ============= //
// == Helpers == //
// ============= //

func serviceSelector(service string) types.Selector {
	return types.Selector{
		MatchLabels: map[string]string{ServiceLabelKey: service},
	}
}

func ruleName(namespace, service, direction string) string {
	return namespace + "-" + service + "-" + direction
}

func ruleLabels(direction, intentName string) map[string]string {
	return map[string]string{
		types.LabelManagedBy:  types.ManagedByValue,
		types.LabelPolicyType: direction,
		types.LabelIntent:     intentName,
	}
}

func normalizeProtocols(protocols []string) []string {
	if len(protocols) == 0 {
		return []string{types.ProtocolTCP}
	}

	seen := map[string]bool{}
	normalized := []string{}

	for _, protocol := range protocols {
		proto := strings.ToUpper(protocol)
		if !seen[proto] {
			seen[proto] = true
			normalized = append(normalized, proto)
		}
	}

	sort.Strings(normalized)

	return normalized
}

// buildSpecPorts expands the port/protocol lists of one intent rule into
// the cross product of concrete spec ports. An empty port list admits all
// ports of each protocol.
func buildSpecPorts(ports []int, protocols []string) []types.SpecPort {
	protos := normalizeProtocols(protocols)

	specPorts := []types.SpecPort{}

	if len(ports) == 0 {
		for _, proto := range protos {
			specPorts = append(specPorts, types.SpecPort{Port: 0, Protocol: proto})
		}
		return specPorts
	}

	for _, port := range ports {
		for _, proto := range protos {
			specPorts = append(specPorts, types.SpecPort{Port: port, Protocol: proto})
		}
	}

	sortSpecPorts(specPorts)

	return specPorts
}

func sortSpecPorts(ports []types.SpecPort) {
	sort.Slice(ports, func(i, j int) bool {
		if ports[i].Port != ports[j].Port {
			return ports[i].Port < ports[j].Port
		}
		return ports[i].Protocol < ports[j].Protocol
	})
}

func dedupSpecPorts(ports []types.SpecPort) []types.SpecPort {
	sortSpecPorts(ports)

	deduped := []types.SpecPort{}
	for _, port := range ports {
		if len(deduped) > 0 && deduped[len(deduped)-1] == port {
			continue
		}
		deduped = append(deduped, port)
	}

	return deduped
}

func sortedKeys(peers map[string][]types.SpecPort) []string {
	keys := []string{}
	for key := range peers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}

func dnsPeer() types.AllowPeer {
	cfg := config.GetCfgEnforcer()

	namespace := cfg.DNSNamespace
	if namespace == "" {
		namespace = defaultDNSNamespace
	}

	selector := cfg.DNSSelector
	if len(selector) == 0 {
		selector = defaultDNSSelector
	}

	matchLabels := map[string]string{}
	for key, val := range selector {
		matchLabels[key] = val
	}

	return types.AllowPeer{
		PodSelector: types.Selector{MatchLabels: matchLabels},
		NamespaceSelector: &types.Selector{
			MatchLabels: map[string]string{"kubernetes.io/metadata.name": namespace},
		},
		Ports: []types.SpecPort{
			{Port: dnsPort, Protocol: types.ProtocolTCP},
			{Port: dnsPort, Protocol: types.ProtocolUDP},
		},
	}
}

// ============== //
// == Compiler == //
// ============== //

// CompileIntent compiles one declarative intent into an ordered set of
// enforcement rules wrapped in a policy bundle. The rule set is a pure
// function of the intent: compiling the same intent twice yields the
// same rules in the same order.
func CompileIntent(intent types.Intent) (types.PolicyBundle, error) {
	if err := validateIntent(intent); err != nil {
		return types.PolicyBundle{}, err
	}

	namespace := intent.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}

	// peer ports folded per (target selector, peer selector) pair so that
	// repeated from/to pairs merge into a single peer entry
	ingressPeers := map[string]map[string][]types.SpecPort{}
	egressPeers := map[string]map[string][]types.SpecPort{}

	for _, rule := range intent.Rules {
		ports := buildSpecPorts(rule.Ports, rule.Protocols)

		if ingressPeers[rule.ToService] == nil {
			ingressPeers[rule.ToService] = map[string][]types.SpecPort{}
		}
		ingressPeers[rule.ToService][rule.FromService] = append(
			ingressPeers[rule.ToService][rule.FromService], ports...)

		if egressPeers[rule.FromService] == nil {
			egressPeers[rule.FromService] = map[string][]types.SpecPort{}
		}
		egressPeers[rule.FromService][rule.ToService] = append(
			egressPeers[rule.FromService][rule.ToService], ports...)
	}

	rules := []types.EnforcementRule{}

	// 1. default-deny per distinct destination selector
	destinations := []string{}
	for dest := range ingressPeers {
		destinations = append(destinations, dest)
	}
	sort.Strings(destinations)

	for _, dest := range destinations {
		rules = append(rules, types.EnforcementRule{
			Name:           ruleName(namespace, dest, types.DirectionDefaultDeny),
			Namespace:      namespace,
			Direction:      types.DirectionDefaultDeny,
			TargetSelector: serviceSelector(dest),
			Labels:         ruleLabels(types.DirectionDefaultDeny, intent.Name),
		})
	}

	// 2. one merged ingress object per destination selector
	for _, dest := range destinations {
		rules = append(rules, types.EnforcementRule{
			Name:           ruleName(namespace, dest, types.DirectionIngress),
			Namespace:      namespace,
			Direction:      types.DirectionIngress,
			TargetSelector: serviceSelector(dest),
			Peers:          buildPeers(ingressPeers[dest]),
			Labels:         ruleLabels(types.DirectionIngress, intent.Name),
		})
	}

	// 3. one merged egress object per source selector
	sources := []string{}
	for source := range egressPeers {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	for _, source := range sources {
		rules = append(rules, types.EnforcementRule{
			Name:           ruleName(namespace, source, types.DirectionEgress),
			Namespace:      namespace,
			Direction:      types.DirectionEgress,
			TargetSelector: serviceSelector(source),
			Peers:          buildPeers(egressPeers[source]),
			Labels:         ruleLabels(types.DirectionEgress, intent.Name),
		})
	}

	// 4. dns egress per selector that carries egress rules, so allowed
	// destinations stay resolvable under default deny
	for _, source := range sources {
		rules = append(rules, types.EnforcementRule{
			Name:           ruleName(namespace, source, types.DirectionDNS),
			Namespace:      namespace,
			Direction:      types.DirectionDNS,
			TargetSelector: serviceSelector(source),
			Peers:          []types.AllowPeer{dnsPeer()},
			Labels:         ruleLabels(types.DirectionDNS, intent.Name),
		})
	}

	compiled := intent
	if compiled.ID == "" {
		compiled.ID = "intent-" + libs.RandSeq(8)
	}

	bundle := types.PolicyBundle{
		ID:        libs.RandSeq(8),
		Name:      intent.Name,
		Namespace: namespace,
		Intent:    compiled,
		Rules:     rules,
		CreatedAt: time.Now().UTC(),
	}

	log.Info().Msgf("compiled intent %q into %d enforcement rules",
		intent.Name, len(rules))

	return bundle, nil
}

func buildPeers(portsByPeer map[string][]types.SpecPort) []types.AllowPeer {
	peers := []types.AllowPeer{}

	for _, peerService := range sortedKeys(portsByPeer) {
		peers = append(peers, types.AllowPeer{
			PodSelector: serviceSelector(peerService),
			Ports:       dedupSpecPorts(portsByPeer[peerService]),
		})
	}

	return peers
}
