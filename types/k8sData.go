package types

// Pod Structure
type Pod struct {
	Namespace string `json:"namespace"`

	PodUID  string `json:"pod_uid"`
	PodName string `json:"pod_name"`

	Labels map[string]string `json:"labels"`
}

// Service Structure
type Service struct {
	Namespace   string `json:"namespace,omitempty"`
	ServiceName string `json:"service_name,omitempty"`

	Selector map[string]string `json:"selector"`

	ServicePort int    `json:"service_port"`
	Protocol    string `json:"protocol,omitempty"`
}
