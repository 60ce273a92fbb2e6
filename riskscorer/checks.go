package riskscorer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Nithish-ponnusamy/new-k8s/types"
)

// each failed checklist entry adds a fixed penalty
const checkPenalty = 25.0

func (s *Scorer) configurationChecks() []types.ComplianceCheck {
	bundles := []types.PolicyBundle{}
	if s.bundles != nil {
		bundles = s.bundles.ListBundles()
	}

	deployed := 0
	undeployed := 0
	deployedWithDeny := 0

	for _, bundle := range bundles {
		if !bundle.Deployed {
			undeployed++
			continue
		}

		deployed++

		for _, rule := range bundle.Rules {
			if rule.Direction == types.DirectionDefaultDeny {
				deployedWithDeny++
				break
			}
		}
	}

	return []types.ComplianceCheck{
		{
			Name:        "intents-deployed",
			Passed:      deployed > 0,
			Description: "at least one compiled intent is deployed",
		},
		{
			Name:        "default-deny-present",
			Passed:      deployed == deployedWithDeny,
			Description: "every deployed bundle establishes a default-deny baseline",
		},
		{
			Name:        "no-stale-bundles",
			Passed:      undeployed == 0,
			Description: fmt.Sprintf("%d compiled bundles await deployment", undeployed),
		},
		{
			Name:        "ingest-queue-healthy",
			Passed:      s.detector.DroppedCount() == 0,
			Description: "no observed events dropped from the classification queue",
		},
	}
}

func selectorKey(selector types.Selector) string {
	labels := make([]string, 0, len(selector.MatchLabels))
	for key, val := range selector.MatchLabels {
		labels = append(labels, key+"="+val)
	}
	sort.Strings(labels)

	return strings.Join(labels, ",")
}

// egressWithoutDNS counts egress selectors in deployed bundles that lack
// a matching dns rule.
func (s *Scorer) egressWithoutDNS() int {
	if s.bundles == nil {
		return 0
	}

	missing := 0

	for _, bundle := range s.bundles.ListBundles() {
		if !bundle.Deployed {
			continue
		}

		dnsSelectors := map[string]bool{}
		for _, rule := range bundle.Rules {
			if rule.Direction == types.DirectionDNS {
				dnsSelectors[selectorKey(rule.TargetSelector)] = true
			}
		}

		for _, rule := range bundle.Rules {
			if rule.Direction == types.DirectionEgress && !dnsSelectors[selectorKey(rule.TargetSelector)] {
				missing++
			}
		}
	}

	return missing
}

// namespaces the engine never places policies in
var systemNamespaces = map[string]bool{
	"kube-system":     true,
	"kube-public":     true,
	"kube-node-lease": true,
}

// namespacesWithoutPolicy counts active namespaces carrying no deployed
// bundle. Without a namespace lister there is no cluster view to check.
func (s *Scorer) namespacesWithoutPolicy() int {
	if s.namespaces == nil || s.bundles == nil {
		return 0
	}

	covered := map[string]bool{}
	for _, bundle := range s.bundles.ListBundles() {
		if bundle.Deployed {
			covered[bundle.Namespace] = true
		}
	}

	missing := 0
	for _, namespace := range s.namespaces.ListNamespaces() {
		if systemNamespaces[namespace] || covered[namespace] {
			continue
		}
		missing++
	}

	return missing
}

func (s *Scorer) complianceChecks(events []types.DriftEvent) []types.ComplianceCheck {
	unresolvedCritical := 0
	privilegeEscalations := 0

	for _, event := range events {
		if event.Severity == types.SeverityCritical && !event.Resolved {
			unresolvedCritical++
		}
		if event.EventType == types.DriftPrivilegeEscalation && !event.Resolved {
			privilegeEscalations++
		}
	}

	egressMissingDNS := s.egressWithoutDNS()
	namespacesMissing := s.namespacesWithoutPolicy()

	pairs := s.detector.ObservedPairs()
	covered := 0
	for _, pair := range pairs {
		if s.graph.HasPair(pair.SourcePod, pair.DestinationPod) {
			covered++
		}
	}
	coverageOK := len(pairs) == 0 || float64(covered)/float64(len(pairs)) >= 0.9

	return []types.ComplianceCheck{
		{
			Name:        "no-unresolved-critical",
			Passed:      unresolvedCritical == 0,
			Description: fmt.Sprintf("%d critical drift events remain unresolved", unresolvedCritical),
		},
		{
			Name:        "no-privilege-escalation",
			Passed:      privilegeEscalations == 0,
			Description: fmt.Sprintf("%d privilege escalation events remain unresolved", privilegeEscalations),
		},
		{
			Name:        "dns-scoped-egress",
			Passed:      egressMissingDNS == 0,
			Description: fmt.Sprintf("%d egress selectors lack a scoped dns rule", egressMissingDNS),
		},
		{
			Name:        "namespace-policy-present",
			Passed:      namespacesMissing == 0,
			Description: fmt.Sprintf("%d active namespaces carry no deployed policy", namespacesMissing),
		},
		{
			Name:        "traffic-covered",
			Passed:      coverageOK,
			Description: "at least 90% of observed service pairs carry an intent",
		},
	}
}
