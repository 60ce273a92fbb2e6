package cluster

import (
	"context"
	"fmt"
	"time"

	k8serrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/Nithish-ponnusamy/new-k8s/config"
	"github.com/Nithish-ponnusamy/new-k8s/networkpolicy"
	"github.com/Nithish-ponnusamy/new-k8s/types"

	networkingv1 "k8s.io/api/networking/v1"
)

// GatewayError wraps one failed gateway call. Transient failures are
// worth retrying; fatal ones are not.
type GatewayError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %s", e.Op, e.Err.Error())
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func classifyK8sError(op string, err error) error {
	if err == nil {
		return nil
	}

	transient := k8serrors.IsServerTimeout(err) ||
		k8serrors.IsTimeout(err) ||
		k8serrors.IsTooManyRequests(err) ||
		k8serrors.IsServiceUnavailable(err) ||
		k8serrors.IsInternalError(err) ||
		k8serrors.IsConflict(err)

	return &GatewayError{Op: op, Transient: transient, Err: err}
}

// EnforcementGateway applies compiled enforcement rules to the backend.
type EnforcementGateway interface {
	Apply(ctx context.Context, rules []types.EnforcementRule) error
	Delete(ctx context.Context, rules []types.EnforcementRule) error
	List(ctx context.Context, namespace string) ([]networkingv1.NetworkPolicy, error)
}

// K8sGateway enforces rules as Kubernetes NetworkPolicy objects.
type K8sGateway struct {
	client kubernetes.Interface
}

func NewK8sGateway(client kubernetes.Interface) *K8sGateway {
	return &K8sGateway{client: client}
}

func (gw *K8sGateway) Apply(ctx context.Context, rules []types.EnforcementRule) error {
	for _, rule := range rules {
		policy := networkpolicy.ToK8sNetworkPolicy(rule)

		_, err := gw.client.NetworkingV1().NetworkPolicies(policy.Namespace).
			Create(ctx, &policy, metav1.CreateOptions{})

		if k8serrors.IsAlreadyExists(err) {
			_, err = gw.client.NetworkingV1().NetworkPolicies(policy.Namespace).
				Update(ctx, &policy, metav1.UpdateOptions{})
		}

		if err != nil {
			return classifyK8sError("apply "+policy.Name, err)
		}
	}

	return nil
}

func (gw *K8sGateway) Delete(ctx context.Context, rules []types.EnforcementRule) error {
	for _, rule := range rules {
		err := gw.client.NetworkingV1().NetworkPolicies(rule.Namespace).
			Delete(ctx, rule.Name, metav1.DeleteOptions{})

		if err != nil && !k8serrors.IsNotFound(err) {
			return classifyK8sError("delete "+rule.Name, err)
		}
	}

	return nil
}

// List returns the enforcement objects managed by this engine.
func (gw *K8sGateway) List(ctx context.Context, namespace string) ([]networkingv1.NetworkPolicy, error) {
	policies, err := gw.client.NetworkingV1().NetworkPolicies(namespace).
		List(ctx, metav1.ListOptions{
			LabelSelector: types.LabelManagedBy + "=" + types.ManagedByValue,
		})
	if err != nil {
		return nil, classifyK8sError("list", err)
	}

	return policies.Items, nil
}

// =========== //
// == Retry == //
// =========== //

func gatewayTimeout() time.Duration {
	timeout := time.Duration(config.GetCfgEnforcer().TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return timeout
}

// DeleteWithTimeout withdraws rules under the configured per-call
// gateway deadline.
func DeleteWithTimeout(ctx context.Context, gateway EnforcementGateway, rules []types.EnforcementRule) error {
	ctx, cancel := context.WithTimeout(ctx, gatewayTimeout())
	defer cancel()

	return gateway.Delete(ctx, rules)
}

// ApplyWithRetry applies the rules with bounded exponential backoff on
// transient failures. Fatal failures abort immediately. Either way a
// terminal failure is reported as a deploy failure.
func ApplyWithRetry(ctx context.Context, gateway EnforcementGateway, rules []types.EnforcementRule) error {
	cfg := config.GetCfgEnforcer()

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}

	backoff := time.Duration(cfg.BackoffBaseMsec) * time.Millisecond
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	timeout := gatewayTimeout()

	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %s", types.ErrDeployFailed, ctx.Err().Error())
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		lastErr = gateway.Apply(attemptCtx, rules)
		cancel()

		if lastErr == nil {
			return nil
		}

		gwErr, ok := lastErr.(*GatewayError)
		if ok && !gwErr.Transient {
			return fmt.Errorf("%w: %s", types.ErrDeployFailed, lastErr.Error())
		}

		log.Warn().Msgf("transient deploy failure, attempt %d/%d: %s",
			attempt+1, maxRetries, lastErr.Error())
	}

	return fmt.Errorf("%w: retries exhausted: %s", types.ErrDeployFailed, lastErr.Error())
}
