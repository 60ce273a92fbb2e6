package types

import "time"

// protocols
const (
	ProtocolTCP = "TCP"
	ProtocolUDP = "UDP"
)

// enforcement rule directions
const (
	DirectionDefaultDeny = "default-deny"
	DirectionIngress     = "ingress"
	DirectionEgress      = "egress"
	DirectionDNS         = "dns"
)

// labels attached to every compiled enforcement object
const (
	LabelManagedBy  = "app.kubernetes.io/managed-by"
	LabelPolicyType = "policy-type"
	LabelIntent     = "intent"

	ManagedByValue = "intent-policy-engine"
)

// ====================== //
// == Enforcement Rule == //
// ====================== //

// SpecPort Structure
// Port 0 means all ports of the given protocol
type SpecPort struct {
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
	Protocol string `json:"protocol" yaml:"protocol"`
}

// Selector Structure
type Selector struct {
	MatchLabels map[string]string `json:"matchLabels,omitempty" yaml:"matchLabels,omitempty"`
}

// AllowPeer - one allowed peer of an ingress/egress/dns enforcement rule
type AllowPeer struct {
	PodSelector       Selector   `json:"podSelector" yaml:"podSelector"`
	NamespaceSelector *Selector  `json:"namespaceSelector,omitempty" yaml:"namespaceSelector,omitempty"`
	Ports             []SpecPort `json:"ports,omitempty" yaml:"ports,omitempty"`
}

// EnforcementRule - structural representation of one enforcement object.
// A default-deny rule carries no peers; an allow rule carries one peer
// entry per admitted source/destination.
type EnforcementRule struct {
	Name      string `json:"name" yaml:"name"`
	Namespace string `json:"namespace" yaml:"namespace"`
	Direction string `json:"direction" yaml:"direction"`

	TargetSelector Selector    `json:"targetSelector" yaml:"targetSelector"`
	Peers          []AllowPeer `json:"peers,omitempty" yaml:"peers,omitempty"`

	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// =================== //
// == Policy Bundle == //
// =================== //

// PolicyBundle - a compiled intent. Immutable after compilation except
// for the Deployed flag, which flips on successful deployment.
type PolicyBundle struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Namespace string `json:"namespace" yaml:"namespace"`

	Intent Intent            `json:"intent" yaml:"intent"`
	Rules  []EnforcementRule `json:"rules" yaml:"rules"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Deployed  bool      `json:"deployed" yaml:"deployed"`
}
