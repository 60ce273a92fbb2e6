package cluster

import (
	"strings"
	"sync"
	"unicode"

	"github.com/Nithish-ponnusamy/new-k8s/networkpolicy"
	"github.com/Nithish-ponnusamy/new-k8s/types"
)

// ServiceResolver maps pod names to the service identity carried by the
// pod's app label. Unknown pods fall back to stripping the replica
// suffixes a workload controller appends.
type ServiceResolver struct {
	mu           sync.RWMutex
	podToService map[string]string
}

func NewServiceResolver() *ServiceResolver {
	return &ServiceResolver{
		podToService: map[string]string{},
	}
}

// Refresh pulls the current pod list from the cluster.
func (r *ServiceResolver) Refresh() {
	r.Update(GetPodsFromK8sClient())
}

// Update replaces the pod mapping.
func (r *ServiceResolver) Update(pods []types.Pod) {
	mapping := map[string]string{}

	for _, pod := range pods {
		if service, ok := pod.Labels[networkpolicy.ServiceLabelKey]; ok {
			mapping[pod.PodName] = service
		}
	}

	r.mu.Lock()
	r.podToService = mapping
	r.mu.Unlock()
}

func (r *ServiceResolver) ResolveService(pod string) string {
	r.mu.RLock()
	service, ok := r.podToService[pod]
	r.mu.RUnlock()

	if ok {
		return service
	}

	return stripReplicaSuffix(pod)
}

func isReplicaSuffix(segment string) bool {
	if segment == "" {
		return false
	}

	for _, r := range segment {
		if !unicode.IsDigit(r) && !(r >= 'a' && r <= 'z') {
			return false
		}
	}

	hasDigit := false
	for _, r := range segment {
		if unicode.IsDigit(r) {
			hasDigit = true
			break
		}
	}

	return hasDigit
}

// stripReplicaSuffix reduces deployment pod names to the workload name:
// frontend-5d8c7b9f4d-x2vqp -> frontend, backend-1 -> backend.
func stripReplicaSuffix(pod string) string {
	name := pod

	for i := 0; i < 2; i++ {
		idx := strings.LastIndex(name, "-")
		if idx <= 0 {
			break
		}

		if !isReplicaSuffix(name[idx+1:]) {
			break
		}

		name = name[:idx]
	}

	return name
}
