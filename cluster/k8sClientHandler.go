package cluster

import (
	"context"
	"flag"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	rest "k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	logger "github.com/Nithish-ponnusamy/new-k8s/logging"
	"github.com/Nithish-ponnusamy/new-k8s/types"
)

var log *zerolog.Logger

func init() {
	log = logger.GetInstance()
}

var parsed = false
var kubeconfig *string

func isInCluster() bool {
	if _, ok := os.LookupEnv("KUBERNETES_PORT"); ok {
		return true
	}

	return false
}

func ConnectK8sClient() *kubernetes.Clientset {
	if isInCluster() {
		return ConnectInClusterAPIClient()
	}

	return ConnectLocalAPIClient()
}

func ConnectLocalAPIClient() *kubernetes.Clientset {
	if !parsed {
		homeDir := ""
		if h := os.Getenv("HOME"); h != "" {
			homeDir = h
		} else {
			homeDir = os.Getenv("USERPROFILE") // windows
		}

		envKubeConfig := os.Getenv("KUBECONFIG")
		if envKubeConfig != "" {
			kubeconfig = &envKubeConfig
		} else {
			if home := homeDir; home != "" {
				kubeconfig = flag.String("kubeconfig", filepath.Join(home, ".kube", "config"), "(optional) absolute path to the kubeconfig file")
			} else {
				kubeconfig = flag.String("kubeconfig", "", "absolute path to the kubeconfig file")
			}
			flag.Parse()
		}

		parsed = true
	}

	// use the current context in kubeconfig
	config, err := clientcmd.BuildConfigFromFlags("", *kubeconfig)
	if err != nil {
		log.Error().Msg(err.Error())
		return nil
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		log.Error().Msg(err.Error())
		return nil
	}

	return clientset
}

func ConnectInClusterAPIClient() *kubernetes.Clientset {
	host := ""
	port := ""
	token := ""

	if val, ok := os.LookupEnv("KUBERNETES_SERVICE_HOST"); ok {
		host = val
	} else {
		host = "127.0.0.1"
	}

	if val, ok := os.LookupEnv("KUBERNETES_PORT_443_TCP_PORT"); ok {
		port = val
	} else {
		port = "6443"
	}

	read, err := os.ReadFile("/var/run/secrets/kubernetes.io/serviceaccount/token")
	if err != nil {
		log.Error().Msg(err.Error())
		return nil
	}

	token = string(read)

	kubeConfig := &rest.Config{
		Host:        "https://" + host + ":" + port,
		BearerToken: token,
		TLSClientConfig: rest.TLSClientConfig{
			Insecure: true,
		},
	}

	client, err := kubernetes.NewForConfig(kubeConfig)
	if err != nil {
		log.Error().Msg(err.Error())
		return nil
	}

	return client
}

// =============== //
// == Namespace == //
// =============== //

func GetNamespacesFromK8sClient() []string {
	results := []string{}

	client := ConnectK8sClient()
	if client == nil {
		log.Error().Msg("failed to create k8s client")
		return results
	}

	namespaces, err := client.CoreV1().Namespaces().List(context.Background(), metav1.ListOptions{})
	if err != nil {
		log.Error().Msg(err.Error())
		return results
	}

	for _, namespace := range namespaces.Items {
		if namespace.Status.Phase != "Active" {
			continue
		}

		results = append(results, namespace.Name)
	}

	return results
}

// ClusterNamespaceLister adapts the namespace scan for posture checks.
type ClusterNamespaceLister struct{}

func (ClusterNamespaceLister) ListNamespaces() []string {
	return GetNamespacesFromK8sClient()
}

// ========= //
// == Pod == //
// ========= //

var skipLabelKey = []string{
	"pod-template-hash",
	"controller-revision-hash",
	"statefulset.kubernetes.io/pod-name",
}

func GetPodsFromK8sClient() []types.Pod {
	results := []types.Pod{}

	client := ConnectK8sClient()
	if client == nil {
		log.Error().Msg("failed to create k8s client")
		return nil
	}

	pods, err := client.CoreV1().Pods("").List(context.Background(), metav1.ListOptions{})
	if err != nil {
		log.Error().Msg(err.Error())
		return results
	}

	for _, pod := range pods.Items {
		converted := types.Pod{
			Namespace: pod.Namespace,
			PodUID:    string(pod.UID),
			PodName:   pod.Name,
			Labels:    map[string]string{},
		}

		for k, v := range pod.Labels {
			skip := false
			for _, skipKey := range skipLabelKey {
				if k == skipKey {
					skip = true
					break
				}
			}
			if skip {
				continue
			}

			converted.Labels[k] = v
		}

		results = append(results, converted)
	}

	return results
}

// ============= //
// == Service == //
// ============= //

func GetServicesFromK8sClient() []types.Service {
	results := []types.Service{}

	client := ConnectK8sClient()
	if client == nil {
		log.Error().Msg("failed to create k8s client")
		return results
	}

	svcs, err := client.CoreV1().Services("").List(context.Background(), metav1.ListOptions{})
	if err != nil {
		log.Error().Msg(err.Error())
		return results
	}

	for _, svc := range svcs.Items {
		for _, port := range svc.Spec.Ports {
			converted := types.Service{
				Namespace:   svc.Namespace,
				ServiceName: svc.Name,
				ServicePort: int(port.Port),
				Protocol:    string(port.Protocol),
				Selector:    map[string]string{},
			}

			for k, v := range svc.Spec.Selector {
				converted.Selector[k] = v
			}

			results = append(results, converted)
		}
	}

	return results
}
