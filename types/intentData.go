package types

// ================== //
// == Intent Model == //
// ================== //

// Rule - one service-to-service communication allowance
type Rule struct {
	FromService string `json:"from" yaml:"from"`
	ToService   string `json:"to" yaml:"to"`

	// nil or empty means all ports
	Ports []int `json:"ports,omitempty" yaml:"ports,omitempty"`

	// defaults to ["TCP"] when omitted
	Protocols []string `json:"protocols,omitempty" yaml:"protocols,omitempty"`
}

// Intent - declarative statement of which services may communicate
type Intent struct {
	ID        string `json:"id,omitempty" yaml:"id,omitempty"`
	Name      string `json:"name" yaml:"name"`
	Namespace string `json:"namespace" yaml:"namespace"`

	Rules []Rule `json:"rules" yaml:"rules"`
}

// IntentRequest - external input format for intent submission
type IntentRequest struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace,omitempty"`
	Rules     []Rule `json:"rules"`
}
